package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
	UserIDKey   contextKey = "user_id"
)

// Identity is the verified subject of a token minted by the hosted auth
// provider. Sign-in/up flows live entirely on the provider side; this service
// only checks the signature and trusts the claims.
type Identity struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// Middleware validates the provider token and attaches the identity to the
// request context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		identity, err := j.ParseToken(parts[1])
		if err != nil {
			if strings.Contains(err.Error(), "expired") {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), IdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseToken verifies an HS256 provider token and extracts the identity
// claims. The subject claim is the external identity id.
func (j *JWTAuth) ParseToken(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	avatar, _ := claims["avatar_url"].(string)

	return Identity{
		ExternalID: sub,
		Email:      email,
		Name:       name,
		AvatarURL:  avatar,
	}, nil
}

// GetIdentity extracts the verified identity from the request context.
func GetIdentity(ctx context.Context) Identity {
	id, _ := ctx.Value(IdentityKey).(Identity)
	return id
}

// UserResolver maps an external identity id to an internal user id.
type UserResolver interface {
	ResolveExternalID(ctx context.Context, externalID string) (uuid.UUID, error)
}

// UserContext resolves the identity to an internal user record and attaches
// its id. Routes behind it require the profile to have been synced first
// (POST /users/sync).
func UserContext(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity.ExternalID == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", r)
				return
			}

			userID, err := resolver.ResolveExternalID(r.Context(), identity.ExternalID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Profile not synced", r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the internal user id from the request context.
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type UserHandler struct {
	userRepo        userRepository
	leaderboardRepo leaderboardRepository
}

type userRepository interface {
	Upsert(ctx context.Context, externalID string, req models.SyncUserRequest) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
}

type leaderboardRepository interface {
	GetSlice(ctx context.Context, period, metric string, limit int) ([]*models.LeaderboardEntry, error)
}

func NewUserHandler(userRepo userRepository, leaderboardRepo leaderboardRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo, leaderboardRepo: leaderboardRepo}
}

// Sync upserts the local profile from the verified identity token. It runs
// behind token verification only, before the user row exists.
func (h *UserHandler) Sync(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity.ExternalID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing identity", r))
		return
	}

	var req models.SyncUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	// Token claims win over whatever the client sent.
	if identity.Email != "" {
		req.Email = identity.Email
	}
	if req.Name == "" {
		req.Name = identity.Name
	}
	if req.AvatarURL == nil && identity.AvatarURL != "" {
		avatarURL := identity.AvatarURL
		req.AvatarURL = &avatarURL
	}

	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	user, err := h.userRepo.Upsert(r.Context(), identity.ExternalID, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to sync user", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}

	// Public profile only.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":           user.ID,
			"name":         user.Name,
			"avatar_url":   user.AvatarURL,
			"level":        user.Level,
			"study_streak": user.StudyStreak,
		},
	})
}

func (h *UserHandler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stats, err := h.userRepo.GetStats(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = models.PeriodWeekly
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = models.MetricXP
	}

	if !models.ValidPeriod(period) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown leaderboard period", r))
		return
	}
	if !models.ValidMetric(metric) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown leaderboard metric", r))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := h.leaderboardRepo.GetSlice(r.Context(), period, metric, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load leaderboard", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":  period,
		"metric":  metric,
		"entries": entries,
	})
}

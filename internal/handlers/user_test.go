package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type stubUserRepo struct {
	user *models.User

	upserted     bool
	lastExternal string
	lastReq      models.SyncUserRequest
}

func (s *stubUserRepo) Upsert(ctx context.Context, externalID string, req models.SyncUserRequest) (*models.User, error) {
	s.upserted = true
	s.lastExternal = externalID
	s.lastReq = req
	return &models.User{ID: uuid.New(), Email: req.Email, Name: req.Name}, nil
}

func (s *stubUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil {
		return nil, context.Canceled
	}
	return s.user, nil
}

func (s *stubUserRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	return &models.UserStats{Level: 2, XP: 1200}, nil
}

type stubLeaderboardRepo struct {
	lastPeriod string
	lastMetric string
}

func (s *stubLeaderboardRepo) GetSlice(ctx context.Context, period, metric string, limit int) ([]*models.LeaderboardEntry, error) {
	s.lastPeriod = period
	s.lastMetric = metric
	return []*models.LeaderboardEntry{}, nil
}

func TestUserHandler_Sync_TokenClaimsWin(t *testing.T) {
	repo := &stubUserRepo{}
	h := NewUserHandler(repo, &stubLeaderboardRepo{})

	body := `{"email":"spoofed@example.com","name":"Client Name"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/sync", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), middleware.IdentityKey, middleware.Identity{
		ExternalID: "auth0|abc123",
		Email:      "real@example.com",
		Name:       "Token Name",
	}))

	rr := httptest.NewRecorder()
	h.Sync(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !repo.upserted {
		t.Fatalf("expected an upsert")
	}
	if repo.lastExternal != "auth0|abc123" {
		t.Fatalf("unexpected external id: %q", repo.lastExternal)
	}
	if repo.lastReq.Email != "real@example.com" {
		t.Fatalf("token email must override the client body, got %q", repo.lastReq.Email)
	}
	if repo.lastReq.Name != "Client Name" {
		t.Fatalf("client display name should be kept when present, got %q", repo.lastReq.Name)
	}
}

func TestUserHandler_Sync_MissingIdentity(t *testing.T) {
	repo := &stubUserRepo{}
	h := NewUserHandler(repo, &stubLeaderboardRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/sync", strings.NewReader(`{}`))

	rr := httptest.NewRecorder()
	h.Sync(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if repo.upserted {
		t.Fatalf("no upsert without identity")
	}
}

func TestUserHandler_Leaderboard_Defaults(t *testing.T) {
	repo := &stubLeaderboardRepo{}
	h := NewUserHandler(&stubUserRepo{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))

	rr := httptest.NewRecorder()
	h.Leaderboard(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if repo.lastPeriod != models.PeriodWeekly || repo.lastMetric != models.MetricXP {
		t.Fatalf("unexpected defaults: period=%q metric=%q", repo.lastPeriod, repo.lastMetric)
	}
}

func TestUserHandler_Leaderboard_RejectsUnknownPeriod(t *testing.T) {
	h := NewUserHandler(&stubUserRepo{}, &stubLeaderboardRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard?period=decade", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))

	rr := httptest.NewRecorder()
	h.Leaderboard(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code: %q", resp.Error.Code)
	}
}

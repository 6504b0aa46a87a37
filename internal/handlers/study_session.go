package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/services"
)

type StudySessionHandler struct {
	sessionRepo sessionRepository
	userRepo    sessionUserRepository
	quizRepo    sessionQuizRepository
	docRepo     roomDocumentRepository
	roomRepo    sessionRoomRepository
}

type sessionRepository interface {
	Start(ctx context.Context, s *models.StudySession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	IncrementPomodoro(ctx context.Context, id uuid.UUID, increment int) (int, error)
	End(ctx context.Context, id uuid.UUID, endTime time.Time, duration int, notes *string, focusRating *int) error
	ListByUser(ctx context.Context, userID uuid.UUID, completed *bool, limit int) ([]*models.StudySession, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*models.StudySession, error)
	GetStats(ctx context.Context, userID uuid.UUID, start, end time.Time) (*models.StudyStats, error)
}

type sessionUserRepository interface {
	ApplyStudyStats(ctx context.Context, userID uuid.UUID, minutes, streakIncrement, xpGained int) error
	TouchLastActive(ctx context.Context, userID uuid.UUID) error
}

type sessionQuizRepository interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Quiz, error)
}

type sessionRoomRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudyRoom, error)
}

func NewStudySessionHandler(
	sessionRepo sessionRepository,
	userRepo sessionUserRepository,
	quizRepo sessionQuizRepository,
	docRepo roomDocumentRepository,
	roomRepo sessionRoomRepository,
) *StudySessionHandler {
	return &StudySessionHandler{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		quizRepo:    quizRepo,
		docRepo:     docRepo,
		roomRepo:    roomRepo,
	}
}

func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}
	if req.SessionType == models.SessionGroup && req.RoomID == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "room_id is required for group sessions", r))
		return
	}

	session := &models.StudySession{
		UserID:      userID,
		DocumentID:  req.DocumentID,
		RoomID:      req.RoomID,
		SessionType: req.SessionType,
		StartTime:   time.Now(),
	}

	if err := h.sessionRepo.Start(r.Context(), session); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start study session", r))
		return
	}

	if err := h.userRepo.TouchLastActive(r.Context(), userID); err != nil {
		log.Printf("failed to touch last_active_at for user %s: %v", userID, err)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Pomodoro(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if session.IsCompleted {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Session already ended", r))
		return
	}

	// Clients batch offline pomodoros, so the increment is adjustable.
	increment := 1
	var req models.PomodoroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Increment != nil {
		if *req.Increment < 1 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "increment must be positive", r))
			return
		}
		increment = *req.Increment
	}

	count, err := h.sessionRepo.IncrementPomodoro(r.Context(), session.ID, increment)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record pomodoro", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"pomodoro_count": count})
}

func (h *StudySessionHandler) End(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if session.IsCompleted {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Session already ended", r))
		return
	}

	var req models.EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	endTime := time.Now()
	duration := services.SessionDuration(session.StartTime, endTime)

	if err := h.sessionRepo.End(r.Context(), session.ID, endTime, duration, req.Notes, req.FocusRating); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to end study session", r))
		return
	}

	xp, streakIncrement := services.SessionRewards(duration)
	if err := h.userRepo.ApplyStudyStats(r.Context(), session.UserID, duration, streakIncrement, xp); err != nil {
		log.Printf("failed to apply study stats for user %s: %v", session.UserID, err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"duration":        duration,
		"xp_gained":       xp,
		"streak_extended": streakIncrement > 0,
	})
}

func (h *StudySessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var completed *bool
	switch r.URL.Query().Get("completed") {
	case "true":
		v := true
		completed = &v
	case "false":
		v := false
		completed = &v
	}

	sessions, err := h.sessionRepo.ListByUser(r.Context(), userID, completed, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list sessions", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *StudySessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessionRepo.GetActive(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"session": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Details(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	quizzes, err := h.quizRepo.ListBySession(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session details", r))
		return
	}
	if quizzes == nil {
		quizzes = []*models.Quiz{}
	}

	details := models.SessionDetails{StudySession: *session, Quizzes: quizzes}
	if session.DocumentID != nil {
		if doc, err := h.docRepo.GetByID(r.Context(), *session.DocumentID); err == nil {
			details.Document = doc
		}
	}
	if session.RoomID != nil {
		if room, err := h.roomRepo.GetByID(r.Context(), *session.RoomID); err == nil {
			details.Room = room
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": details})
}

func (h *StudySessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	end := time.Now()
	start := end.AddDate(0, 0, -7)
	switch r.URL.Query().Get("range") {
	case "day":
		start = end.AddDate(0, 0, -1)
	case "month":
		start = end.AddDate(0, -1, 0)
	case "all":
		start = time.Time{}
	}
	// Explicit bounds win over the range presets.
	if raw := r.URL.Query().Get("start"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			start = t
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			end = t
		}
	}

	stats, err := h.sessionRepo.GetStats(r.Context(), userID, start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *StudySessionHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.StudySession, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return nil, false
	}

	session, err := h.sessionRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return nil, false
	}

	if session.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return session, true
}

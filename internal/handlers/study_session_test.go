package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type stubSessionRepo struct {
	session *models.StudySession

	ended         bool
	endDuration   int
	pomodoroSeen  bool
	lastIncrement int
}

func (s *stubSessionRepo) Start(ctx context.Context, session *models.StudySession) error {
	session.ID = uuid.New()
	return nil
}

func (s *stubSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	if s.session == nil {
		return nil, context.Canceled
	}
	return s.session, nil
}

func (s *stubSessionRepo) IncrementPomodoro(ctx context.Context, id uuid.UUID, increment int) (int, error) {
	s.pomodoroSeen = true
	s.lastIncrement = increment
	return s.session.PomodoroCount + increment, nil
}

func (s *stubSessionRepo) End(ctx context.Context, id uuid.UUID, endTime time.Time, duration int, notes *string, focusRating *int) error {
	s.ended = true
	s.endDuration = duration
	return nil
}

func (s *stubSessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, completed *bool, limit int) ([]*models.StudySession, error) {
	return nil, nil
}

func (s *stubSessionRepo) GetActive(ctx context.Context, userID uuid.UUID) (*models.StudySession, error) {
	return nil, context.Canceled
}

func (s *stubSessionRepo) GetStats(ctx context.Context, userID uuid.UUID, start, end time.Time) (*models.StudyStats, error) {
	return &models.StudyStats{}, nil
}

type stubStatsUserRepo struct {
	minutes int
	streak  int
	xp      int
	applied bool
	touched bool
}

func (s *stubStatsUserRepo) ApplyStudyStats(ctx context.Context, userID uuid.UUID, minutes, streakIncrement, xpGained int) error {
	s.applied = true
	s.minutes = minutes
	s.streak = streakIncrement
	s.xp = xpGained
	return nil
}

func (s *stubStatsUserRepo) TouchLastActive(ctx context.Context, userID uuid.UUID) error {
	s.touched = true
	return nil
}

type stubSessionQuizRepo struct{}

func (s *stubSessionQuizRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Quiz, error) {
	return nil, nil
}

type stubSessionRoomRepo struct {
	room *models.StudyRoom
}

func (s *stubSessionRoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudyRoom, error) {
	if s.room == nil || s.room.ID != id {
		return nil, context.Canceled
	}
	return s.room, nil
}

func newSessionHandler(repo *stubSessionRepo, userRepo *stubStatsUserRepo) *StudySessionHandler {
	return NewStudySessionHandler(repo, userRepo, &stubSessionQuizRepo{}, &stubDocRepo{}, &stubSessionRoomRepo{})
}

func sessionRequest(method, path string, sessionID, userID uuid.UUID, body string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", sessionID.String())

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	return req
}

func TestStudySessionHandler_End_AwardsRewards(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{
			ID:        sessionID,
			UserID:    userID,
			StartTime: time.Now().Add(-26 * time.Minute),
		},
	}
	userRepo := &stubStatsUserRepo{}
	h := newSessionHandler(repo, userRepo)

	rr := httptest.NewRecorder()
	h.End(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/end", sessionID, userID, `{}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !repo.ended {
		t.Fatalf("session should be ended")
	}
	if repo.endDuration != 26 {
		t.Fatalf("expected duration 26, got %d", repo.endDuration)
	}
	if !userRepo.applied {
		t.Fatalf("study stats should be applied")
	}
	if userRepo.minutes != 26 || userRepo.xp != 50 || userRepo.streak != 1 {
		t.Fatalf("unexpected rewards: minutes=%d xp=%d streak=%d", userRepo.minutes, userRepo.xp, userRepo.streak)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["xp_gained"].(float64) != 50 {
		t.Fatalf("unexpected xp_gained: %v", payload["xp_gained"])
	}
	if payload["streak_extended"] != true {
		t.Fatalf("expected streak_extended true")
	}
}

func TestStudySessionHandler_End_ShortSessionNoStreak(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{
			ID:        sessionID,
			UserID:    userID,
			StartTime: time.Now().Add(-10 * time.Minute),
		},
	}
	userRepo := &stubStatsUserRepo{}
	h := newSessionHandler(repo, userRepo)

	rr := httptest.NewRecorder()
	h.End(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/end", sessionID, userID, `{}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if userRepo.streak != 0 {
		t.Fatalf("10-minute session must not extend the streak")
	}
	if userRepo.xp != 20 {
		t.Fatalf("expected 20 xp for 10 minutes, got %d", userRepo.xp)
	}
}

func TestStudySessionHandler_End_AlreadyCompleted(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{
			ID:          sessionID,
			UserID:      userID,
			StartTime:   time.Now().Add(-30 * time.Minute),
			IsCompleted: true,
		},
	}
	userRepo := &stubStatsUserRepo{}
	h := newSessionHandler(repo, userRepo)

	rr := httptest.NewRecorder()
	h.End(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/end", sessionID, userID, `{}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	if repo.ended || userRepo.applied {
		t.Fatalf("ending twice must not touch state")
	}
}

func TestStudySessionHandler_End_NotOwner(t *testing.T) {
	sessionID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{
			ID:        sessionID,
			UserID:    uuid.New(),
			StartTime: time.Now().Add(-30 * time.Minute),
		},
	}
	h := newSessionHandler(repo, &stubStatsUserRepo{})

	rr := httptest.NewRecorder()
	h.End(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/end", sessionID, uuid.New(), `{}`))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestStudySessionHandler_Start_GroupRequiresRoom(t *testing.T) {
	userID := uuid.New()

	h := newSessionHandler(&stubSessionRepo{}, &stubStatsUserRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/study-sessions/start", strings.NewReader(`{"session_type":"group"}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))

	rr := httptest.NewRecorder()
	h.Start(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestStudySessionHandler_Pomodoro_DefaultIncrement(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{ID: sessionID, UserID: userID, PomodoroCount: 2},
	}
	h := newSessionHandler(repo, &stubStatsUserRepo{})

	rr := httptest.NewRecorder()
	h.Pomodoro(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/pomodoro", sessionID, userID, ``))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if repo.lastIncrement != 1 {
		t.Fatalf("empty body should increment by 1, got %d", repo.lastIncrement)
	}
}

func TestStudySessionHandler_Pomodoro_CustomIncrement(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{ID: sessionID, UserID: userID, PomodoroCount: 2},
	}
	h := newSessionHandler(repo, &stubStatsUserRepo{})

	rr := httptest.NewRecorder()
	h.Pomodoro(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/pomodoro", sessionID, userID, `{"increment":3}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if repo.lastIncrement != 3 {
		t.Fatalf("expected increment 3, got %d", repo.lastIncrement)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["pomodoro_count"].(float64) != 5 {
		t.Fatalf("unexpected pomodoro_count: %v", payload["pomodoro_count"])
	}
}

func TestStudySessionHandler_Pomodoro_RejectsNonPositive(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{ID: sessionID, UserID: userID},
	}
	h := newSessionHandler(repo, &stubStatsUserRepo{})

	rr := httptest.NewRecorder()
	h.Pomodoro(rr, sessionRequest(http.MethodPost, "/api/v1/study-sessions/"+sessionID.String()+"/pomodoro", sessionID, userID, `{"increment":0}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if repo.pomodoroSeen {
		t.Fatalf("a rejected increment must not reach the repository")
	}
}

func TestStudySessionHandler_Details_JoinsReferences(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()
	docID := uuid.New()
	roomID := uuid.New()

	repo := &stubSessionRepo{
		session: &models.StudySession{
			ID:         sessionID,
			UserID:     userID,
			DocumentID: &docID,
			RoomID:     &roomID,
			StartTime:  time.Now(),
		},
	}
	h := NewStudySessionHandler(
		repo,
		&stubStatsUserRepo{},
		&stubSessionQuizRepo{},
		&stubDocRepo{doc: &models.Document{ID: docID, UserID: userID, Title: "Linear Algebra"}},
		&stubSessionRoomRepo{room: &models.StudyRoom{ID: roomID, Name: "Algebra Hour"}},
	)

	rr := httptest.NewRecorder()
	h.Details(rr, sessionRequest(http.MethodGet, "/api/v1/study-sessions/"+sessionID.String(), sessionID, userID, ``))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var payload struct {
		Session models.SessionDetails `json:"session"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Session.Document == nil || payload.Session.Document.Title != "Linear Algebra" {
		t.Fatalf("expected the joined document, got %+v", payload.Session.Document)
	}
	if payload.Session.Room == nil || payload.Session.Room.Name != "Algebra Hour" {
		t.Fatalf("expected the joined room, got %+v", payload.Session.Room)
	}
	if payload.Session.Quizzes == nil {
		t.Fatalf("quizzes should default to an empty slice")
	}
}

func TestStudySessionHandler_Start_TouchesActivity(t *testing.T) {
	userID := uuid.New()

	userRepo := &stubStatsUserRepo{}
	h := newSessionHandler(&stubSessionRepo{}, userRepo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/study-sessions/start", strings.NewReader(`{"session_type":"solo"}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))

	rr := httptest.NewRecorder()
	h.Start(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	if !userRepo.touched {
		t.Fatalf("starting a session should touch last activity")
	}
}

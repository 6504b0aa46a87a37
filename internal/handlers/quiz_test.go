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

type stubQuizRepo struct {
	quiz *models.Quiz

	submitted      bool
	submittedScore int
}

func (s *stubQuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	return nil
}

func (s *stubQuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	if s.quiz == nil {
		return nil, context.Canceled
	}
	return s.quiz, nil
}

func (s *stubQuizRepo) Submit(ctx context.Context, id uuid.UUID, questions []models.QuizQuestion, score, totalTimeSpent int, completedAt time.Time) error {
	s.submitted = true
	s.submittedScore = score
	return nil
}

func (s *stubQuizRepo) ListByUser(ctx context.Context, userID uuid.UUID, completed *bool, limit int) ([]*models.Quiz, error) {
	return nil, nil
}

func (s *stubQuizRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, userID *uuid.UUID, limit int) ([]*models.Quiz, error) {
	return nil, nil
}

func (s *stubQuizRepo) GetPendingForSession(ctx context.Context, sessionID uuid.UUID) (*models.Quiz, error) {
	return nil, context.Canceled
}

func (s *stubQuizRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.QuizStats, error) {
	return &models.QuizStats{}, nil
}

type stubQuizSessionRepo struct {
	session *models.StudySession

	scoreSet  bool
	lastScore int
}

func (s *stubQuizSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	if s.session == nil {
		return nil, context.Canceled
	}
	return s.session, nil
}

func (s *stubQuizSessionRepo) SetQuizScore(ctx context.Context, id uuid.UUID, score int) error {
	s.scoreSet = true
	s.lastScore = score
	return nil
}

type stubQuizUserRepo struct {
	xpAwarded int
}

func (s *stubQuizUserRepo) ApplyStudyStats(ctx context.Context, userID uuid.UUID, minutes, streakIncrement, xpGained int) error {
	s.xpAwarded += xpGained
	return nil
}

func quizQuestions() []models.QuizQuestion {
	return []models.QuizQuestion{
		{ID: "q1", Question: "1+1?", Options: []string{"1", "2"}, CorrectAnswer: 1},
		{ID: "q2", Question: "2+2?", Options: []string{"4", "5"}, CorrectAnswer: 0},
		{ID: "q3", Question: "3+3?", Options: []string{"5", "6"}, CorrectAnswer: 1},
	}
}

func quizRequest(method, path string, quizID, userID uuid.UUID, body string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", quizID.String())

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	return req
}

func TestQuizHandler_Submit_ScoresAndPropagates(t *testing.T) {
	quizID := uuid.New()
	sessionID := uuid.New()
	userID := uuid.New()

	repo := &stubQuizRepo{
		quiz: &models.Quiz{
			ID:        quizID,
			SessionID: sessionID,
			UserID:    userID,
			Questions: quizQuestions(),
		},
	}
	sessionRepo := &stubQuizSessionRepo{session: &models.StudySession{ID: sessionID, UserID: userID}}
	userRepo := &stubQuizUserRepo{}
	h := NewQuizHandler(repo, sessionRepo, userRepo, &stubDocRepo{}, nil, nil)

	body := `{"answers":[
		{"question_id":"q1","user_answer":1,"time_spent":10},
		{"question_id":"q2","user_answer":0,"time_spent":10},
		{"question_id":"q3","user_answer":0,"time_spent":10}
	]}`

	rr := httptest.NewRecorder()
	h.Submit(rr, quizRequest(http.MethodPost, "/api/v1/quizzes/"+quizID.String()+"/submit", quizID, userID, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !repo.submitted || repo.submittedScore != 67 {
		t.Fatalf("expected submitted score 67, got submitted=%v score=%d", repo.submitted, repo.submittedScore)
	}
	if !sessionRepo.scoreSet || sessionRepo.lastScore != 67 {
		t.Fatalf("score must propagate to the session, got set=%v score=%d", sessionRepo.scoreSet, sessionRepo.lastScore)
	}
	// 67/10*5 = 30 xp
	if userRepo.xpAwarded != 30 {
		t.Fatalf("expected 30 xp awarded, got %d", userRepo.xpAwarded)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["score"].(float64) != 67 {
		t.Fatalf("unexpected score in response: %v", payload["score"])
	}
	if payload["total_time_spent"].(float64) != 30 {
		t.Fatalf("unexpected total_time_spent: %v", payload["total_time_spent"])
	}
}

func TestQuizHandler_Submit_AlreadyScored(t *testing.T) {
	quizID := uuid.New()
	userID := uuid.New()
	score := 80

	repo := &stubQuizRepo{
		quiz: &models.Quiz{
			ID:        quizID,
			UserID:    userID,
			Questions: quizQuestions(),
			Score:     &score,
		},
	}
	h := NewQuizHandler(repo, &stubQuizSessionRepo{}, &stubQuizUserRepo{}, &stubDocRepo{}, nil, nil)

	rr := httptest.NewRecorder()
	h.Submit(rr, quizRequest(http.MethodPost, "/api/v1/quizzes/"+quizID.String()+"/submit", quizID, userID, `{"answers":[{"question_id":"q1","user_answer":1}]}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	if repo.submitted {
		t.Fatalf("a scored quiz must not be submitted again")
	}
}

func TestQuizHandler_Submit_QuestionsNotReady(t *testing.T) {
	quizID := uuid.New()
	userID := uuid.New()

	repo := &stubQuizRepo{
		quiz: &models.Quiz{ID: quizID, UserID: userID, Questions: []models.QuizQuestion{}},
	}
	h := NewQuizHandler(repo, &stubQuizSessionRepo{}, &stubQuizUserRepo{}, &stubDocRepo{}, nil, nil)

	rr := httptest.NewRecorder()
	h.Submit(rr, quizRequest(http.MethodPost, "/api/v1/quizzes/"+quizID.String()+"/submit", quizID, userID, `{"answers":[{"question_id":"q1","user_answer":0}]}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
}

func TestQuizHandler_Submit_NotOwner(t *testing.T) {
	quizID := uuid.New()

	repo := &stubQuizRepo{
		quiz: &models.Quiz{ID: quizID, UserID: uuid.New(), Questions: quizQuestions()},
	}
	h := NewQuizHandler(repo, &stubQuizSessionRepo{}, &stubQuizUserRepo{}, &stubDocRepo{}, nil, nil)

	rr := httptest.NewRecorder()
	h.Submit(rr, quizRequest(http.MethodPost, "/api/v1/quizzes/"+quizID.String()+"/submit", quizID, uuid.New(), `{"answers":[{"question_id":"q1","user_answer":0}]}`))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestQuizHandler_Get_HidesAnswersUntilScored(t *testing.T) {
	quizID := uuid.New()
	userID := uuid.New()

	repo := &stubQuizRepo{
		quiz: &models.Quiz{ID: quizID, UserID: userID, Questions: quizQuestions()},
	}
	h := NewQuizHandler(repo, &stubQuizSessionRepo{}, &stubQuizUserRepo{}, &stubDocRepo{}, nil, nil)

	rr := httptest.NewRecorder()
	h.Get(rr, quizRequest(http.MethodGet, "/api/v1/quizzes/"+quizID.String(), quizID, userID, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var payload struct {
		Quiz models.Quiz `json:"quiz"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, q := range payload.Quiz.Questions {
		if q.CorrectAnswer != 0 || q.Explanation != "" {
			t.Fatalf("answer key leaked before submission: %+v", q)
		}
	}
}

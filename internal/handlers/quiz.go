package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/services"
)

type QuizHandler struct {
	quizRepo    quizRepository
	sessionRepo quizSessionRepository
	userRepo    quizUserRepository
	docRepo     roomDocumentRepository
	jobRepo     *repository.JobRepo
	redis       *redis.Client
}

type quizRepository interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	Submit(ctx context.Context, id uuid.UUID, questions []models.QuizQuestion, score, totalTimeSpent int, completedAt time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, completed *bool, limit int) ([]*models.Quiz, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID, userID *uuid.UUID, limit int) ([]*models.Quiz, error)
	GetPendingForSession(ctx context.Context, sessionID uuid.UUID) (*models.Quiz, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*models.QuizStats, error)
}

type quizSessionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	SetQuizScore(ctx context.Context, id uuid.UUID, score int) error
}

type quizUserRepository interface {
	ApplyStudyStats(ctx context.Context, userID uuid.UUID, minutes, streakIncrement, xpGained int) error
}

func NewQuizHandler(
	quizRepo quizRepository,
	sessionRepo quizSessionRepository,
	userRepo quizUserRepository,
	docRepo roomDocumentRepository,
	jobRepo *repository.JobRepo,
	redisClient *redis.Client,
) *QuizHandler {
	return &QuizHandler{
		quizRepo:    quizRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		docRepo:     docRepo,
		jobRepo:     jobRepo,
		redis:       redisClient,
	}
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.CreateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if !h.ownsSession(w, r, req.SessionID, userID) {
		return
	}

	// A new quiz starts ungraded regardless of what the client sent.
	for i := range req.Questions {
		req.Questions[i].UserAnswer = nil
		req.Questions[i].TimeSpent = nil
	}

	quiz := &models.Quiz{
		SessionID:     req.SessionID,
		DocumentID:    req.DocumentID,
		UserID:        userID,
		Questions:     req.Questions,
		Difficulty:    req.Difficulty,
		GeneratedFrom: req.GeneratedFrom,
	}

	if err := h.quizRepo.Create(r.Context(), quiz); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create quiz", r))
		return
	}

	// Answer keys never leave the server before submission.
	quiz.Questions = services.StripAnswers(quiz.Questions)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"quiz": quiz})
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = 5
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if !h.ownsSession(w, r, req.SessionID, userID) {
		return
	}

	doc, err := h.docRepo.GetByID(r.Context(), req.DocumentID)
	if err != nil || (doc.UserID != userID && !doc.IsPublic) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
		return
	}
	if doc.ExtractedText == nil || *doc.ExtractedText == "" {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Document text is not ready yet", r))
		return
	}

	// Placeholder row; the worker fills in the questions.
	quiz := &models.Quiz{
		SessionID:     req.SessionID,
		DocumentID:    req.DocumentID,
		UserID:        userID,
		Questions:     []models.QuizQuestion{},
		Difficulty:    req.Difficulty,
		GeneratedFrom: "ai",
	}
	if err := h.quizRepo.Create(r.Context(), quiz); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create quiz", r))
		return
	}

	configBytes, _ := json.Marshal(map[string]interface{}{
		"num_questions": req.NumQuestions,
		"difficulty":    req.Difficulty,
	})
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.JobQuizGeneration,
		Status:      "pending",
		ReferenceID: quiz.ID,
		ConfigJSON:  configBytes,
		CreatedAt:   time.Now(),
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue generation", r))
		return
	}
	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), "queue:"+models.JobQuizGeneration, string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue quiz generation job %s: %v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"quiz_id": quiz.ID,
		"job_id":  job.ID,
		"status":  "pending",
	})
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if quiz.Score != nil {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Quiz has already been submitted", r))
		return
	}
	if len(quiz.Questions) == 0 {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Quiz questions are not ready yet", r))
		return
	}

	var req models.SubmitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	graded, score, totalTime := services.GradeQuiz(quiz.Questions, req.Answers)

	if err := h.quizRepo.Submit(r.Context(), quiz.ID, graded, score, totalTime, time.Now()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to submit quiz", r))
		return
	}

	if err := h.sessionRepo.SetQuizScore(r.Context(), quiz.SessionID, score); err != nil {
		log.Printf("failed to propagate quiz score to session %s: %v", quiz.SessionID, err)
	}
	if xp := services.QuizXP(score); xp > 0 {
		if err := h.userRepo.ApplyStudyStats(r.Context(), quiz.UserID, 0, 0, xp); err != nil {
			log.Printf("failed to award quiz XP to user %s: %v", quiz.UserID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score":            score,
		"total_time_spent": totalTime,
		"xp_gained":        services.QuizXP(score),
		"questions":        graded,
	})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	// Hide answer keys until the quiz has been scored.
	if quiz.Score == nil {
		quiz.Questions = services.StripAnswers(quiz.Questions)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": quiz})
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
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

	quizzes, err := h.quizRepo.ListByUser(r.Context(), userID, completed, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list quizzes", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *QuizHandler) DocumentQuizzes(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid document ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	quizzes, err := h.quizRepo.ListByDocument(r.Context(), documentID, &userID, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list quizzes", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *QuizHandler) PendingQuiz(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if !h.ownsSession(w, r, sessionID, userID) {
		return
	}

	quiz, err := h.quizRepo.GetPendingForSession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": nil})
		return
	}

	quiz.Questions = services.StripAnswers(quiz.Questions)
	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": quiz})
}

func (h *QuizHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stats, err := h.quizRepo.GetStats(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *QuizHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Quiz, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return nil, false
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return nil, false
	}

	if quiz.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return quiz, true
}

func (h *QuizHandler) ownsSession(w http.ResponseWriter, r *http.Request, sessionID, userID uuid.UUID) bool {
	session, err := h.sessionRepo.GetByID(r.Context(), sessionID)
	if err != nil || session.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return false
	}
	return true
}

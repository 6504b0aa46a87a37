package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Quiz struct {
	ID             uuid.UUID      `json:"id"`
	SessionID      uuid.UUID      `json:"session_id"`
	DocumentID     uuid.UUID      `json:"document_id"`
	UserID         uuid.UUID      `json:"user_id"`
	Questions      []QuizQuestion `json:"questions"`
	Difficulty     string         `json:"difficulty"`
	GeneratedFrom  string         `json:"generated_from"`
	Score          *int           `json:"score"` // 0-100, set once on submission
	CompletedAt    *time.Time     `json:"completed_at"`
	TotalTimeSpent int            `json:"total_time_spent"` // seconds
	CreatedAt      time.Time      `json:"created_at"`
}

type QuizQuestion struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	UserAnswer    *int     `json:"user_answer,omitempty"`
	TimeSpent     *int     `json:"time_spent,omitempty"`
}

type CreateQuizRequest struct {
	SessionID     uuid.UUID      `json:"session_id" validate:"required"`
	DocumentID    uuid.UUID      `json:"document_id" validate:"required"`
	Questions     []QuizQuestion `json:"questions" validate:"required,min=1,dive"`
	Difficulty    string         `json:"difficulty" validate:"required,oneof=easy medium hard"`
	GeneratedFrom string         `json:"generated_from" validate:"required"`
}

type GenerateQuizRequest struct {
	SessionID    uuid.UUID `json:"session_id" validate:"required"`
	DocumentID   uuid.UUID `json:"document_id" validate:"required"`
	NumQuestions int       `json:"num_questions" validate:"min=1,max=20"`
	Difficulty   string    `json:"difficulty" validate:"required,oneof=easy medium hard"`
}

type QuizAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	UserAnswer int    `json:"user_answer" validate:"min=0"`
	TimeSpent  int    `json:"time_spent" validate:"min=0"`
}

type SubmitQuizRequest struct {
	Answers []QuizAnswer `json:"answers" validate:"required,min=1,dive"`
}

// QuizStats covers scored quizzes only.
type QuizStats struct {
	TotalQuizzes        int            `json:"total_quizzes"`
	AverageScore        float64        `json:"average_score"`
	BestScore           int            `json:"best_score"`
	TotalTimeSpent      int            `json:"total_time_spent"`
	DifficultyBreakdown map[string]int `json:"difficulty_breakdown"`
}

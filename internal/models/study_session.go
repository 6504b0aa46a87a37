package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionSolo  = "solo"
	SessionGroup = "group"
)

type StudySession struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	DocumentID    *uuid.UUID `json:"document_id"`
	RoomID        *uuid.UUID `json:"room_id"`
	SessionType   string     `json:"session_type"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Duration      *int       `json:"duration"` // minutes, set on end
	PomodoroCount int        `json:"pomodoro_count"`
	FocusRating   *int       `json:"focus_rating"`
	Notes         *string    `json:"notes"`
	QuizScore     *int       `json:"quiz_score"`
	IsCompleted   bool       `json:"is_completed"`
}

type StartSessionRequest struct {
	DocumentID  *uuid.UUID `json:"document_id"`
	RoomID      *uuid.UUID `json:"room_id"`
	SessionType string     `json:"session_type" validate:"required,oneof=solo group"`
}

type PomodoroRequest struct {
	Increment *int `json:"increment"`
}

type EndSessionRequest struct {
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
	FocusRating *int    `json:"focus_rating" validate:"omitempty,min=1,max=5"`
}

// SessionDetails joins a session with the records it references.
type SessionDetails struct {
	StudySession
	Document *Document  `json:"document,omitempty"`
	Room     *StudyRoom `json:"room,omitempty"`
	Quizzes  []*Quiz    `json:"quizzes"`
}

// StudyStats aggregates completed sessions over a date range. Derived,
// recomputed per call.
type StudyStats struct {
	TotalSessions        int     `json:"total_sessions"`
	TotalStudyTime       int     `json:"total_study_time"`
	TotalPomodoros       int     `json:"total_pomodoros"`
	AverageFocusRating   float64 `json:"average_focus_rating"`
	AverageSessionLength int     `json:"average_session_length"`
}

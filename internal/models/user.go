package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tiers. Tier changes arrive through the billing webhook.
const (
	TierFree    = "free"
	TierPremium = "premium"
	TierPro     = "pro"
)

type User struct {
	ID             uuid.UUID  `json:"id"`
	ExternalID     string     `json:"-"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	AvatarURL      *string    `json:"avatar_url"`
	StudyStreak    int        `json:"study_streak"`
	TotalStudyTime int        `json:"total_study_time"` // minutes
	Level          int        `json:"level"`
	XP             int        `json:"xp"`
	Subscription   string     `json:"subscription"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActiveAt   *time.Time `json:"last_active_at"`
}

type SyncUserRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Name      string  `json:"name" validate:"required,max=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// UserStats is the per-user progress snapshot served by GET /users/me/stats.
type UserStats struct {
	TotalStudyTime    int     `json:"total_study_time"`
	SessionsCompleted int     `json:"sessions_completed"`
	AverageQuizScore  float64 `json:"average_quiz_score"`
	CurrentStreak     int     `json:"current_streak"`
	DocumentsRead     int     `json:"documents_read"`
	Level             int     `json:"level"`
	XP                int     `json:"xp"`
}

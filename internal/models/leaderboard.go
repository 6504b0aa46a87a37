package models

import (
	"time"

	"github.com/google/uuid"
)

// Leaderboard periods and metrics. The table is pre-aggregated by the
// in-process scheduler; the read API only slices it.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAllTime = "all_time"

	MetricStudyTime     = "study_time"
	MetricXP            = "xp"
	MetricQuizScore     = "quiz_score"
	MetricStreak        = "streak"
	MetricDocumentsRead = "documents_read"
)

type LeaderboardEntry struct {
	ID        uuid.UUID `json:"id"`
	Period    string    `json:"period"`
	Metric    string    `json:"metric"`
	Rank      int       `json:"rank"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ValidPeriod(p string) bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

func ValidMetric(m string) bool {
	switch m {
	case MetricStudyTime, MetricXP, MetricQuizScore, MetricStreak, MetricDocumentsRead:
		return true
	}
	return false
}

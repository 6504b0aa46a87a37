package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

const sessionColumns = `id, user_id, document_id, room_id, session_type, start_time, end_time, duration, pomodoro_count, focus_rating, notes, quiz_score, is_completed`

func scanSession(row pgx.Row) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.DocumentID, &s.RoomID, &s.SessionType,
		&s.StartTime, &s.EndTime, &s.Duration, &s.PomodoroCount,
		&s.FocusRating, &s.Notes, &s.QuizScore, &s.IsCompleted,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *StudySessionRepo) Start(ctx context.Context, s *models.StudySession) error {
	s.ID = uuid.New()
	query := `
		INSERT INTO study_sessions (id, user_id, document_id, room_id, session_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING start_time, pomodoro_count, is_completed`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.DocumentID, s.RoomID, s.SessionType,
	).Scan(&s.StartTime, &s.PomodoroCount, &s.IsCompleted)
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM study_sessions WHERE id = $1`, id))
}

// IncrementPomodoro adds to the counter and returns the new value. No upper
// bound is enforced.
func (r *StudySessionRepo) IncrementPomodoro(ctx context.Context, id uuid.UUID, increment int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		UPDATE study_sessions
		SET pomodoro_count = pomodoro_count + $2
		WHERE id = $1
		RETURNING pomodoro_count
	`, id, increment).Scan(&count)
	return count, err
}

// End finalizes the session. Finalizing is irreversible.
func (r *StudySessionRepo) End(ctx context.Context, id uuid.UUID, endTime time.Time, duration int, notes *string, focusRating *int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET end_time = $2,
			duration = $3,
			notes = $4,
			focus_rating = $5,
			is_completed = TRUE
		WHERE id = $1
	`, id, endTime, duration, notes, focusRating)
	return err
}

func (r *StudySessionRepo) SetQuizScore(ctx context.Context, id uuid.UUID, score int) error {
	_, err := r.pool.Exec(ctx, `UPDATE study_sessions SET quiz_score = $2 WHERE id = $1`, id, score)
	return err
}

func (r *StudySessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, completed *bool, limit int) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM study_sessions
		WHERE user_id = $1 AND ($2::boolean IS NULL OR is_completed = $2)
		ORDER BY start_time DESC
		LIMIT $3
	`, userID, completed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.StudySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetActive returns the caller's most recent open session, or pgx.ErrNoRows.
func (r *StudySessionRepo) GetActive(ctx context.Context, userID uuid.UUID) (*models.StudySession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM study_sessions
		WHERE user_id = $1 AND is_completed = FALSE
		ORDER BY start_time DESC
		LIMIT 1
	`, userID))
}

// GetStats aggregates completed sessions whose start falls in [start, end].
// Derived values, recomputed per call.
func (r *StudySessionRepo) GetStats(ctx context.Context, userID uuid.UUID, start, end time.Time) (*models.StudyStats, error) {
	stats := &models.StudyStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(duration), 0),
			COALESCE(SUM(pomodoro_count), 0),
			COALESCE(ROUND(AVG(focus_rating)::numeric, 1), 0),
			COALESCE(ROUND(AVG(duration)), 0)
		FROM study_sessions
		WHERE user_id = $1
		  AND is_completed = TRUE
		  AND start_time BETWEEN $2 AND $3
	`, userID, start, end).Scan(
		&stats.TotalSessions,
		&stats.TotalStudyTime,
		&stats.TotalPomodoros,
		&stats.AverageFocusRating,
		&stats.AverageSessionLength,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

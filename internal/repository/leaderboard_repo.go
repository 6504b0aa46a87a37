package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

// LeaderboardRepo reads and rebuilds the pre-aggregated ranking table. The
// read contract is a plain ordered slice; maintenance happens in the
// background aggregation scheduler, never on the request path.
type LeaderboardRepo struct {
	pool *pgxpool.Pool
}

func NewLeaderboardRepo(pool *pgxpool.Pool) *LeaderboardRepo {
	return &LeaderboardRepo{pool: pool}
}

func (r *LeaderboardRepo) GetSlice(ctx context.Context, period, metric string, limit int) ([]*models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, period, metric, rank, user_id, user_name, value, updated_at
		FROM leaderboards
		WHERE period = $1 AND metric = $2
		ORDER BY rank ASC
		LIMIT $3
	`, period, metric, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.LeaderboardEntry, 0)
	for rows.Next() {
		e := &models.LeaderboardEntry{}
		if err := rows.Scan(&e.ID, &e.Period, &e.Metric, &e.Rank, &e.UserID, &e.UserName, &e.Value, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Rebuild replaces one period x metric slice inside a transaction so readers
// never see a half-built ranking.
func (r *LeaderboardRepo) Rebuild(ctx context.Context, period, metric string, top int) error {
	sourceQuery, err := rankingQuery(metric)
	if err != nil {
		return err
	}

	since := periodStart(period, time.Now())

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM leaderboards WHERE period = $1 AND metric = $2`,
		period, metric); err != nil {
		return err
	}

	insert := fmt.Sprintf(`
		INSERT INTO leaderboards (period, metric, rank, user_id, user_name, value)
		SELECT $1, $2, ROW_NUMBER() OVER (ORDER BY ranked.value DESC, ranked.name ASC), ranked.id, ranked.name, ranked.value
		FROM (%s) ranked
		WHERE ranked.value > 0
		ORDER BY ranked.value DESC
		LIMIT $4
	`, sourceQuery)

	if _, err := tx.Exec(ctx, insert, period, metric, since, top); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// rankingQuery yields (id, name, value) per user for a metric. $3 is the
// period lower bound; all_time passes the zero time so the filter is a no-op.
func rankingQuery(metric string) (string, error) {
	switch metric {
	case models.MetricStudyTime:
		return `
			SELECT u.id, u.name, COALESCE(SUM(s.duration), 0)::float8 AS value
			FROM users u
			LEFT JOIN study_sessions s ON s.user_id = u.id
				AND s.is_completed = TRUE AND s.start_time >= $3
			GROUP BY u.id, u.name`, nil
	case models.MetricXP:
		return `
			SELECT u.id, u.name, u.xp::float8 AS value
			FROM users u
			WHERE $3 <= NOW()`, nil
	case models.MetricQuizScore:
		return `
			SELECT u.id, u.name, COALESCE(AVG(q.score), 0)::float8 AS value
			FROM users u
			LEFT JOIN quizzes q ON q.user_id = u.id
				AND q.score IS NOT NULL AND q.created_at >= $3
			GROUP BY u.id, u.name`, nil
	case models.MetricStreak:
		return `
			SELECT u.id, u.name, u.study_streak::float8 AS value
			FROM users u
			WHERE $3 <= NOW()`, nil
	case models.MetricDocumentsRead:
		return `
			SELECT u.id, u.name, COUNT(d.id)::float8 AS value
			FROM users u
			LEFT JOIN documents d ON d.user_id = u.id
				AND d.reading_progress > 0 AND d.uploaded_at >= $3
			GROUP BY u.id, u.name`, nil
	}
	return "", fmt.Errorf("unknown leaderboard metric: %s", metric)
}

func periodStart(period string, now time.Time) time.Time {
	switch period {
	case models.PeriodDaily:
		return now.AddDate(0, 0, -1)
	case models.PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case models.PeriodMonthly:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

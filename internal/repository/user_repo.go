package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, external_id, email, name, avatar_url, study_streak, total_study_time, level, xp, subscription, created_at, last_active_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.AvatarURL,
		&u.StudyStreak, &u.TotalStudyTime, &u.Level, &u.XP, &u.Subscription,
		&u.CreatedAt, &u.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Upsert creates the user on first sync and patches profile fields on repeat
// calls, keyed by the external identity id. Counters are never touched here.
func (r *UserRepo) Upsert(ctx context.Context, externalID string, req models.SyncUserRequest) (*models.User, error) {
	query := `
		INSERT INTO users (external_id, email, name, avatar_url, last_active_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (external_id) DO UPDATE
		SET email = EXCLUDED.email,
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url,
			last_active_at = NOW()
		RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, externalID, req.Email, req.Name, req.AvatarURL))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
}

// ResolveExternalID satisfies middleware.UserResolver.
func (r *UserRepo) ResolveExternalID(ctx context.Context, externalID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE external_id = $1`, externalID).Scan(&id)
	return id, err
}

// ApplyStudyStats adds minutes, streak and XP in one statement. The level only
// ever rises: GREATEST keeps it monotonic even if the XP formula changes.
func (r *UserRepo) ApplyStudyStats(ctx context.Context, userID uuid.UUID, minutes, streakIncrement, xpGained int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET total_study_time = total_study_time + $2,
			study_streak = study_streak + $3,
			xp = xp + $4,
			level = GREATEST(level, (xp + $4) / 1000 + 1),
			last_active_at = NOW()
		WHERE id = $1
	`, userID, minutes, streakIncrement, xpGained)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepo) TouchLastActive(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), userID)
	return err
}

// SetSubscription applies a tier change from the billing webhook, keyed by the
// external identity id the provider knows the customer by.
func (r *UserRepo) SetSubscription(ctx context.Context, externalID, tier string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET subscription = $1 WHERE external_id = $2`, tier, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListStreakReminderCandidates returns users holding a streak who have not
// been active yet today. The scheduler dedupes sends on top of this.
func (r *UserRepo) ListStreakReminderCandidates(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE study_streak > 0
		  AND (last_active_at IS NULL OR last_active_at::date < CURRENT_DATE)
		ORDER BY study_streak DESC
		LIMIT 500
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetStats assembles the progress snapshot: profile counters plus derived
// counts over sessions, quizzes and documents.
func (r *UserRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats := &models.UserStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			u.total_study_time,
			u.study_streak,
			u.level,
			u.xp,
			(SELECT COUNT(*) FROM study_sessions
				WHERE user_id = u.id AND is_completed = TRUE
				  AND start_time >= NOW() - INTERVAL '7 days'),
			(SELECT COALESCE(ROUND(AVG(score)::numeric, 1), 0) FROM quizzes
				WHERE user_id = u.id AND score IS NOT NULL),
			(SELECT COUNT(*) FROM documents
				WHERE user_id = u.id AND reading_progress > 0)
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(
		&stats.TotalStudyTime,
		&stats.CurrentStreak,
		&stats.Level,
		&stats.XP,
		&stats.SessionsCompleted,
		&stats.AverageQuizScore,
		&stats.DocumentsRead,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

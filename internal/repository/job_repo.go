package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if len(j.ConfigJSON) == 0 {
		j.ConfigJSON = []byte("{}")
	}
	j.Status = "pending"

	query := `
		INSERT INTO jobs (id, user_id, type, reference_id, config_json, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, retry_count, max_retries`

	return r.pool.QueryRow(ctx, query,
		j.ID, j.UserID, j.Type, j.ReferenceID, j.ConfigJSON, j.Status,
	).Scan(&j.CreatedAt, &j.RetryCount, &j.MaxRetries)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, type, reference_id, config_json, status, retry_count, max_retries, error_message, created_at, completed_at
		FROM jobs WHERE id = $1
	`, id).Scan(
		&j.ID, &j.UserID, &j.Type, &j.ReferenceID, &j.ConfigJSON, &j.Status,
		&j.RetryCount, &j.MaxRetries, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE jobs SET status = 'processing' WHERE id = $1`, id)
	return err
}

func (r *JobRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', completed_at = $2 WHERE id = $1`,
		id, time.Now())
	return err
}

// IncrementRetry records one failed attempt. Status is left alone so a
// requeued job still reads as processing until a worker picks it up.
func (r *JobRepo) IncrementRetry(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE jobs SET retry_count = retry_count + 1 WHERE id = $1`, id)
	return err
}

func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = $2, completed_at = $3
		WHERE id = $1
	`, id, errMsg, time.Now())
	return err
}

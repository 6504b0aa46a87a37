package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

const quizColumns = `id, session_id, document_id, user_id, questions, difficulty, generated_from, score, completed_at, total_time_spent, created_at`

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	q := &models.Quiz{}
	var questionsJSON []byte
	err := row.Scan(
		&q.ID, &q.SessionID, &q.DocumentID, &q.UserID, &questionsJSON,
		&q.Difficulty, &q.GeneratedFrom, &q.Score, &q.CompletedAt,
		&q.TotalTimeSpent, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questionsJSON, &q.Questions); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	if q.Questions == nil {
		q.Questions = []models.QuizQuestion{}
	}
	questionsJSON, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quizzes (id, session_id, document_id, user_id, questions, difficulty, generated_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING total_time_spent, created_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.SessionID, q.DocumentID, q.UserID, questionsJSON, q.Difficulty, q.GeneratedFrom,
	).Scan(&q.TotalTimeSpent, &q.CreatedAt)
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
}

// SetQuestions replaces the question set once the generation job finishes.
func (r *QuizRepo) SetQuestions(ctx context.Context, id uuid.UUID, questions []models.QuizQuestion) error {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `UPDATE quizzes SET questions = $2 WHERE id = $1`, id, questionsJSON)
	return err
}

// Submit records the graded question set and the final score in one write.
func (r *QuizRepo) Submit(ctx context.Context, id uuid.UUID, questions []models.QuizQuestion, score, totalTimeSpent int, completedAt time.Time) error {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE quizzes
		SET questions = $2, score = $3, total_time_spent = $4, completed_at = $5
		WHERE id = $1
	`, id, questionsJSON, score, totalTimeSpent, completedAt)
	return err
}

func (r *QuizRepo) ListByUser(ctx context.Context, userID uuid.UUID, completed *bool, limit int) ([]*models.Quiz, error) {
	return r.listQuizzes(ctx, `
		SELECT `+quizColumns+` FROM quizzes
		WHERE user_id = $1
		  AND ($2::boolean IS NULL
			OR ($2 = TRUE AND completed_at IS NOT NULL)
			OR ($2 = FALSE AND completed_at IS NULL))
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, completed, limit)
}

func (r *QuizRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, userID *uuid.UUID, limit int) ([]*models.Quiz, error) {
	return r.listQuizzes(ctx, `
		SELECT `+quizColumns+` FROM quizzes
		WHERE document_id = $1 AND ($2::uuid IS NULL OR user_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, documentID, userID, limit)
}

func (r *QuizRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Quiz, error) {
	return r.listQuizzes(ctx, `
		SELECT `+quizColumns+` FROM quizzes
		WHERE session_id = $1
		ORDER BY created_at DESC
	`, sessionID)
}

// GetPendingForSession returns the session's oldest unscored quiz, or
// pgx.ErrNoRows.
func (r *QuizRepo) GetPendingForSession(ctx context.Context, sessionID uuid.UUID) (*models.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx, `
		SELECT `+quizColumns+` FROM quizzes
		WHERE session_id = $1 AND completed_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1
	`, sessionID))
}

func (r *QuizRepo) listQuizzes(ctx context.Context, query string, args ...interface{}) ([]*models.Quiz, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := make([]*models.Quiz, 0)
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// GetStats covers scored quizzes only.
func (r *QuizRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.QuizStats, error) {
	stats := &models.QuizStats{
		DifficultyBreakdown: map[string]int{
			models.DifficultyEasy:   0,
			models.DifficultyMedium: 0,
			models.DifficultyHard:   0,
		},
	}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(ROUND(AVG(score)::numeric, 1), 0),
			COALESCE(MAX(score), 0),
			COALESCE(SUM(total_time_spent), 0)
		FROM quizzes
		WHERE user_id = $1 AND score IS NOT NULL
	`, userID).Scan(&stats.TotalQuizzes, &stats.AverageScore, &stats.BestScore, &stats.TotalTimeSpent)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT difficulty, COUNT(*)
		FROM quizzes
		WHERE user_id = $1 AND score IS NOT NULL
		GROUP BY difficulty
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var difficulty string
		var count int
		if err := rows.Scan(&difficulty, &count); err != nil {
			return nil, err
		}
		stats.DifficultyBreakdown[difficulty] = count
	}
	return stats, rows.Err()
}

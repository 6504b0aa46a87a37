package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

const documentColumns = `id, user_id, title, file_name, file_size, file_type, storage_path, reading_progress, tags, subject, is_public, extracted_text, total_pages, uploaded_at, last_read_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	d := &models.Document{}
	err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.FileName, &d.FileSize, &d.FileType,
		&d.StoragePath, &d.ReadingProgress, &d.Tags, &d.Subject, &d.IsPublic,
		&d.ExtractedText, &d.TotalPages, &d.UploadedAt, &d.LastReadAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepo) Create(ctx context.Context, d *models.Document) error {
	d.ID = uuid.New()
	if d.Tags == nil {
		d.Tags = []string{}
	}

	query := `
		INSERT INTO documents (id, user_id, title, file_name, file_size, file_type, storage_path, tags, subject, is_public, extracted_text, total_pages)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING uploaded_at, reading_progress`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.Title, d.FileName, d.FileSize, d.FileType,
		d.StoragePath, d.Tags, d.Subject, d.IsPublic, d.ExtractedText, d.TotalPages,
	).Scan(&d.UploadedAt, &d.ReadingProgress)
}

func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID uuid.UUID, subject *string, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE user_id = $1 AND ($2::text IS NULL OR subject = $2)
		ORDER BY uploaded_at DESC
		LIMIT $3`
	return r.listDocuments(ctx, query, userID, subject, limit)
}

func (r *DocumentRepo) ListPublic(ctx context.Context, subject *string, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE is_public = TRUE AND ($1::text IS NULL OR subject = $1)
		ORDER BY uploaded_at DESC
		LIMIT $2`
	return r.listDocuments(ctx, query, subject, limit)
}

func (r *DocumentRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE user_id = $1 AND last_read_at IS NOT NULL
		ORDER BY last_read_at DESC
		LIMIT $2`
	return r.listDocuments(ctx, query, userID, limit)
}

// Search scans the caller's documents with a case-insensitive substring match
// against title, tags and subject. Fine at per-user document counts; there is
// deliberately no free-text index.
func (r *DocumentRepo) Search(ctx context.Context, userID uuid.UUID, term string, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE user_id = $1
		  AND (title ILIKE '%' || $2 || '%'
			OR subject ILIKE '%' || $2 || '%'
			OR EXISTS (SELECT 1 FROM unnest(tags) tag WHERE tag ILIKE '%' || $2 || '%'))
		ORDER BY uploaded_at DESC
		LIMIT $3`
	return r.listDocuments(ctx, query, userID, term, limit)
}

func (r *DocumentRepo) listDocuments(ctx context.Context, query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateProgress stores the clamped value and stamps last_read_at.
func (r *DocumentRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET reading_progress = LEAST(100, GREATEST(0, $2)),
			last_read_at = NOW()
		WHERE id = $1
	`, id, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *DocumentRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, req models.UpdateDocumentRequest) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET title = COALESCE($2, title),
			tags = COALESCE($3, tags),
			subject = COALESCE($4, subject),
			is_public = COALESCE($5, is_public)
		WHERE id = $1
	`, id, req.Title, req.Tags, req.Subject, req.IsPublic)
	return err
}

func (r *DocumentRepo) SetExtractedText(ctx context.Context, id uuid.UUID, text string, totalPages *int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET extracted_text = $2, total_pages = COALESCE($3, total_pages) WHERE id = $1`,
		id, text, totalPages)
	return err
}

func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

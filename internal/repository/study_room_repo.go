package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type StudyRoomRepo struct {
	pool *pgxpool.Pool
}

func NewStudyRoomRepo(pool *pgxpool.Pool) *StudyRoomRepo {
	return &StudyRoomRepo{pool: pool}
}

const roomColumns = `id, name, description, created_by, is_public, max_participants, current_participants, current_document_id, subject, is_active, allow_chat, pomodoro_sync, require_approval, created_at, last_activity_at`

func scanRoom(row pgx.Row) (*models.StudyRoom, error) {
	room := &models.StudyRoom{}
	err := row.Scan(
		&room.ID, &room.Name, &room.Description, &room.CreatedBy, &room.IsPublic,
		&room.MaxParticipants, &room.CurrentParticipants, &room.CurrentDocumentID,
		&room.Subject, &room.IsActive,
		&room.Settings.AllowChat, &room.Settings.PomodoroSync, &room.Settings.RequireApproval,
		&room.CreatedAt, &room.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Create inserts the room with the creator as its first (owner) participant.
// Both rows go in one transaction so the occupancy invariant holds from the
// start.
func (r *StudyRoomRepo) Create(ctx context.Context, room *models.StudyRoom) error {
	room.ID = uuid.New()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO study_rooms (id, name, description, created_by, is_public, max_participants, current_participants, current_document_id, subject, allow_chat, pomodoro_sync, require_approval)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10, $11)
		RETURNING is_active, created_at, last_activity_at
	`, room.ID, room.Name, room.Description, room.CreatedBy, room.IsPublic,
		room.MaxParticipants, room.CurrentDocumentID, room.Subject,
		room.Settings.AllowChat, room.Settings.PomodoroSync, room.Settings.RequireApproval,
	).Scan(&room.IsActive, &room.CreatedAt, &room.LastActivityAt)
	if err != nil {
		return err
	}
	room.CurrentParticipants = 1

	_, err = tx.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id, role, status)
		VALUES ($1, $2, 'owner', 'active')
	`, room.ID, room.CreatedBy)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *StudyRoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudyRoom, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM study_rooms WHERE id = $1`, id))
}

func (r *StudyRoomRepo) ListPublic(ctx context.Context, subject *string, limit int) ([]*models.StudyRoom, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+roomColumns+` FROM study_rooms
		WHERE is_public = TRUE AND is_active = TRUE
		  AND ($1::text IS NULL OR subject = $1)
		ORDER BY last_activity_at DESC
		LIMIT $2
	`, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]*models.StudyRoom, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// ListByUser returns the active rooms the user participates in, annotated
// with their membership.
func (r *StudyRoomRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserRoom, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sr.id, sr.name, sr.description, sr.created_by, sr.is_public,
			sr.max_participants, sr.current_participants, sr.current_document_id,
			sr.subject, sr.is_active, sr.allow_chat, sr.pomodoro_sync, sr.require_approval,
			sr.created_at, sr.last_activity_at,
			rp.role, rp.status
		FROM room_participants rp
		JOIN study_rooms sr ON sr.id = rp.room_id
		WHERE rp.user_id = $1 AND sr.is_active = TRUE
		ORDER BY sr.last_activity_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]*models.UserRoom, 0)
	for rows.Next() {
		ur := &models.UserRoom{}
		err := rows.Scan(
			&ur.ID, &ur.Name, &ur.Description, &ur.CreatedBy, &ur.IsPublic,
			&ur.MaxParticipants, &ur.CurrentParticipants, &ur.CurrentDocumentID,
			&ur.Subject, &ur.IsActive,
			&ur.Settings.AllowChat, &ur.Settings.PomodoroSync, &ur.Settings.RequireApproval,
			&ur.CreatedAt, &ur.LastActivityAt,
			&ur.UserRole, &ur.UserStatus,
		)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, ur)
	}
	return rooms, rows.Err()
}

const participantColumns = `id, room_id, user_id, role, status, joined_at, last_seen_at`

func scanParticipant(row pgx.Row) (*models.RoomParticipant, error) {
	p := &models.RoomParticipant{}
	err := row.Scan(&p.ID, &p.RoomID, &p.UserID, &p.Role, &p.Status, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *StudyRoomRepo) GetParticipant(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomParticipant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM room_participants WHERE room_id = $1 AND user_id = $2`,
		roomID, userID))
}

func (r *StudyRoomRepo) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*models.ParticipantWithUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.id, rp.room_id, rp.user_id, rp.role, rp.status, rp.joined_at, rp.last_seen_at,
			u.id, u.external_id, u.email, u.name, u.avatar_url, u.study_streak,
			u.total_study_time, u.level, u.xp, u.subscription, u.created_at, u.last_active_at
		FROM room_participants rp
		JOIN users u ON u.id = rp.user_id
		WHERE rp.room_id = $1
		ORDER BY rp.joined_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]*models.ParticipantWithUser, 0)
	for rows.Next() {
		p := &models.ParticipantWithUser{User: &models.User{}}
		u := p.User
		err := rows.Scan(
			&p.ID, &p.RoomID, &p.UserID, &p.Role, &p.Status, &p.JoinedAt, &p.LastSeenAt,
			&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.AvatarURL, &u.StudyStreak,
			&u.TotalStudyTime, &u.Level, &u.XP, &u.Subscription, &u.CreatedAt, &u.LastActiveAt,
		)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// AddParticipant inserts a plain participant row and bumps the occupancy
// counter in one transaction.
func (r *StudyRoomRepo) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id, role, status)
		VALUES ($1, $2, 'participant', 'active')
	`, roomID, userID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE study_rooms
		SET current_participants = current_participants + 1,
			last_activity_at = NOW()
		WHERE id = $1
	`, roomID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ReactivateParticipant refreshes a stale membership without touching the
// occupancy counter.
func (r *StudyRoomRepo) ReactivateParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE room_participants
		SET status = 'active', last_seen_at = NOW()
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID)
	return err
}

// RemoveParticipant deletes the membership row and decrements the counter,
// floored at zero. Returns the new occupancy.
func (r *StudyRoomRepo) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`,
		roomID, userID); err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRow(ctx, `
		UPDATE study_rooms
		SET current_participants = GREATEST(0, current_participants - 1),
			last_activity_at = NOW()
		WHERE id = $1
		RETURNING current_participants
	`, roomID).Scan(&count); err != nil {
		return 0, err
	}

	return count, tx.Commit(ctx)
}

// Deactivate is terminal; there is no resurrection path.
func (r *StudyRoomRepo) Deactivate(ctx context.Context, roomID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE study_rooms SET is_active = FALSE WHERE id = $1`, roomID)
	return err
}

func (r *StudyRoomRepo) SetDocument(ctx context.Context, roomID uuid.UUID, documentID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_rooms
		SET current_document_id = $2, last_activity_at = NOW()
		WHERE id = $1
	`, roomID, documentID)
	return err
}

func (r *StudyRoomRepo) UpdateParticipantStatus(ctx context.Context, roomID, userID uuid.UUID, status string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE room_participants
		SET status = $3, last_seen_at = NOW()
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID, status); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE study_rooms SET last_activity_at = NOW() WHERE id = $1`, roomID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type StudyRoomHandler struct {
	roomRepo roomRepository
	docRepo  roomDocumentRepository
	events   roomEventPublisher
}

type roomRepository interface {
	Create(ctx context.Context, room *models.StudyRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudyRoom, error)
	ListPublic(ctx context.Context, subject *string, limit int) ([]*models.StudyRoom, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserRoom, error)
	GetParticipant(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomParticipant, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*models.ParticipantWithUser, error)
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	ReactivateParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) (int, error)
	Deactivate(ctx context.Context, roomID uuid.UUID) error
	SetDocument(ctx context.Context, roomID uuid.UUID, documentID *uuid.UUID) error
	UpdateParticipantStatus(ctx context.Context, roomID, userID uuid.UUID, status string) error
}

type roomDocumentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

type roomEventPublisher interface {
	PublishRoomEvent(ctx context.Context, roomID uuid.UUID, event models.RoomEvent)
}

func NewStudyRoomHandler(roomRepo roomRepository, docRepo roomDocumentRepository, events roomEventPublisher) *StudyRoomHandler {
	return &StudyRoomHandler{roomRepo: roomRepo, docRepo: docRepo, events: events}
}

func (h *StudyRoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if req.DocumentID != nil {
		doc, err := h.docRepo.GetByID(r.Context(), *req.DocumentID)
		if err != nil || (doc.UserID != userID && !doc.IsPublic) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
			return
		}
	}

	room := &models.StudyRoom{
		Name:              req.Name,
		Description:       req.Description,
		CreatedBy:         userID,
		IsPublic:          req.IsPublic,
		MaxParticipants:   req.MaxParticipants,
		CurrentDocumentID: req.DocumentID,
		Subject:           req.Subject,
		Settings:          req.Settings,
	}

	// The creator joins as owner inside the same transaction.
	if err := h.roomRepo.Create(r.Context(), room); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create room", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"room": room})
}

func (h *StudyRoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	if !room.IsActive {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Room is no longer active", r))
		return
	}

	// A full room rejects everyone, returning members included.
	if room.CurrentParticipants >= room.MaxParticipants {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Room is full", r))
		return
	}

	// A returning member keeps their row; rejoining must not inflate the
	// participant counter.
	if existing, err := h.roomRepo.GetParticipant(r.Context(), room.ID, userID); err == nil && existing != nil {
		if err := h.roomRepo.ReactivateParticipant(r.Context(), room.ID, userID); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to join room", r))
			return
		}
		h.events.PublishRoomEvent(r.Context(), room.ID, models.RoomEvent{
			Type: "joined", RoomID: room.ID, UserID: userID, At: time.Now(),
		})
		writeJSON(w, http.StatusOK, map[string]string{"message": "Rejoined room"})
		return
	}

	if err := h.roomRepo.AddParticipant(r.Context(), room.ID, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to join room", r))
		return
	}

	h.events.PublishRoomEvent(r.Context(), room.ID, models.RoomEvent{
		Type: "joined", RoomID: room.ID, UserID: userID, At: time.Now(),
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Joined room"})
}

func (h *StudyRoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	participant, err := h.roomRepo.GetParticipant(r.Context(), room.ID, userID)
	if err != nil || participant == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Not a participant of this room", r))
		return
	}

	remaining, err := h.roomRepo.RemoveParticipant(r.Context(), room.ID, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to leave room", r))
		return
	}

	h.events.PublishRoomEvent(r.Context(), room.ID, models.RoomEvent{
		Type: "left", RoomID: room.ID, UserID: userID, At: time.Now(),
	})

	// The room dies with its owner, or when the last participant leaves.
	if remaining == 0 || participant.Role == models.RoleOwner {
		if err := h.roomRepo.Deactivate(r.Context(), room.ID); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to leave room", r))
			return
		}
		h.events.PublishRoomEvent(r.Context(), room.ID, models.RoomEvent{
			Type: "deactivated", RoomID: room.ID, UserID: userID, At: time.Now(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Left room"})
}

func (h *StudyRoomHandler) SetDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	participant, err := h.roomRepo.GetParticipant(r.Context(), room.ID, userID)
	if err != nil || participant == nil {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not a participant of this room", r))
		return
	}
	if participant.Role != models.RoleOwner && participant.Role != models.RoleModerator {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Only the owner or a moderator can change the shared document", r))
		return
	}

	var req models.SetRoomDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.DocumentID != nil {
		doc, err := h.docRepo.GetByID(r.Context(), *req.DocumentID)
		if err != nil || (doc.UserID != userID && !doc.IsPublic) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
			return
		}
	}

	if err := h.roomRepo.SetDocument(r.Context(), room.ID, req.DocumentID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to set document", r))
		return
	}

	h.events.PublishRoomEvent(r.Context(), room.ID, models.RoomEvent{
		Type: "document", RoomID: room.ID, UserID: userID, At: time.Now(),
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Document updated"})
}

func (h *StudyRoomHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	participant, err := h.roomRepo.GetParticipant(r.Context(), room.ID, userID)
	if err != nil || participant == nil {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not a participant of this room", r))
		return
	}

	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if err := h.roomRepo.UpdateParticipantStatus(r.Context(), room.ID, userID, req.Status); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update status", r))
		return
	}

	h.events.PublishRoomEvent(r.Context(), room.ID, models.RoomEvent{
		Type: "status", RoomID: room.ID, UserID: userID, At: time.Now(),
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

func (h *StudyRoomHandler) Public(w http.ResponseWriter, r *http.Request) {
	var subject *string
	if s := r.URL.Query().Get("subject"); s != "" {
		subject = &s
	}

	rooms, err := h.roomRepo.ListPublic(r.Context(), subject, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list rooms", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (h *StudyRoomHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rooms, err := h.roomRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list rooms", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (h *StudyRoomHandler) Details(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	if !room.IsPublic {
		if p, err := h.roomRepo.GetParticipant(r.Context(), room.ID, userID); err != nil || p == nil {
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
			return
		}
	}

	participants, err := h.roomRepo.ListParticipants(r.Context(), room.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load room", r))
		return
	}

	details := models.RoomDetails{StudyRoom: *room, Participants: participants}
	if room.CurrentDocumentID != nil {
		if doc, err := h.docRepo.GetByID(r.Context(), *room.CurrentDocumentID); err == nil {
			details.CurrentDocument = doc
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"room": details})
}

func (h *StudyRoomHandler) loadRoom(w http.ResponseWriter, r *http.Request) (*models.StudyRoom, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid room ID", r))
		return nil, false
	}

	room, err := h.roomRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Room not found", r))
		return nil, false
	}
	return room, true
}

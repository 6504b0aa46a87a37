package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type ChatHandler struct {
	gemini   documentChatService
	docRepo  roomDocumentRepository
	userRepo chatUserRepository
}

type documentChatService interface {
	ChatWithDocument(ctx context.Context, documentText, message string, history []models.ChatMessage) (string, error)
}

type chatUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func NewChatHandler(gemini documentChatService, docRepo roomDocumentRepository, userRepo chatUserRepository) *ChatHandler {
	return &ChatHandler{gemini: gemini, docRepo: docRepo, userRepo: userRepo}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}
	if user.Subscription != models.TierPremium && user.Subscription != models.TierPro {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "AI chat requires a premium subscription", r))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	doc, err := h.docRepo.GetByID(r.Context(), req.DocumentID)
	if err != nil || (doc.UserID != userID && !doc.IsPublic) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
		return
	}
	if doc.ExtractedText == nil || *doc.ExtractedText == "" {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Document text is not ready yet", r))
		return
	}

	reply, err := h.gemini.ChatWithDocument(r.Context(), *doc.ExtractedText, req.Message, req.History)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("AI_UNAVAILABLE", "AI service is unavailable, try again shortly", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

package models

import "github.com/google/uuid"

type ChatMessage struct {
	Role    string `json:"role"` // "user" | "model"
	Content string `json:"content"`
}

type ChatRequest struct {
	DocumentID uuid.UUID     `json:"document_id" validate:"required"`
	Message    string        `json:"message" validate:"required,max=4000"`
	History    []ChatMessage `json:"history" validate:"max=40"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

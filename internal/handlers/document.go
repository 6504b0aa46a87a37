package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

const maxUploadBytes = 50 * 1024 * 1024 // 50MB

type DocumentHandler struct {
	docRepo     documentRepository
	jobRepo     *repository.JobRepo
	redis       *redis.Client
	storagePath string
}

type documentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID, subject *string, limit int) ([]*models.Document, error)
	ListPublic(ctx context.Context, subject *string, limit int) ([]*models.Document, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Document, error)
	Search(ctx context.Context, userID uuid.UUID, term string, limit int) ([]*models.Document, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, req models.UpdateDocumentRequest) error
	Delete(ctx context.Context, id uuid.UUID) error
}

func NewDocumentHandler(docRepo documentRepository, jobRepo *repository.JobRepo, redisClient *redis.Client, storagePath string) *DocumentHandler {
	return &DocumentHandler{
		docRepo:     docRepo,
		jobRepo:     jobRepo,
		redis:       redisClient,
		storagePath: storagePath,
	}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 50MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	// Magic byte check on the first 512 bytes.
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	mimeType := http.DetectContentType(buf[:n])
	if !isAllowedDocumentType(mimeType, header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return
	}
	file.Seek(0, io.SeekStart)

	userID := middleware.GetUserID(r.Context())

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	var subject *string
	if s := r.FormValue("subject"); s != "" {
		subject = &s
	}
	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	relPath := filepath.Join("users", userID.String(), "documents", uuid.New().String()+ext)
	fullPath := filepath.Join(h.storagePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	dst, err := os.Create(fullPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	written, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(fullPath)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	doc := &models.Document{
		UserID:      userID,
		Title:       title,
		FileName:    header.Filename,
		FileSize:    written,
		FileType:    strings.TrimPrefix(ext, "."),
		StoragePath: &relPath,
		Tags:        tags,
		Subject:     subject,
		IsPublic:    r.FormValue("is_public") == "true",
	}

	if err := h.docRepo.Create(r.Context(), doc); err != nil {
		os.Remove(fullPath)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create document record", r))
		return
	}

	// Trigger async text extraction
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.JobDocumentExtraction,
		Status:      "pending",
		ReferenceID: doc.ID,
		CreatedAt:   time.Now(),
	}
	if err := h.jobRepo.Create(r.Context(), job); err == nil {
		jobBytes, _ := json.Marshal(job)
		if err := h.redis.LPush(r.Context(), "queue:"+models.JobDocumentExtraction, string(jobBytes)).Err(); err != nil {
			log.Printf("failed to enqueue extraction job %s: %v", job.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document": doc,
		"job_id":   job.ID,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var subject *string
	if s := r.URL.Query().Get("subject"); s != "" {
		subject = &s
	}

	docs, err := h.docRepo.ListByUser(r.Context(), userID, subject, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list documents", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentHandler) Public(w http.ResponseWriter, r *http.Request) {
	var subject *string
	if s := r.URL.Query().Get("subject"); s != "" {
		subject = &s
	}

	docs, err := h.docRepo.ListPublic(r.Context(), subject, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list documents", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	docs, err := h.docRepo.ListRecent(r.Context(), userID, queryLimit(r, 10))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list documents", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Search term is required", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	docs, err := h.docRepo.Search(r.Context(), userID, term, queryLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Search failed", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadOwnedOrPublic(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"document": doc})
}

func (h *DocumentHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req models.UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if err := h.docRepo.UpdateMetadata(r.Context(), doc.ID, req); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update document", r))
		return
	}

	updated, err := h.docRepo.GetByID(r.Context(), doc.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load document", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"document": updated})
}

func (h *DocumentHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req models.UpdateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.docRepo.UpdateProgress(r.Context(), doc.ID, req.Progress); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update progress", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress updated"})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	// Remove the blob before the row. A leftover row can be deleted
	// again, an orphaned blob has nothing pointing at it.
	if doc.StoragePath != nil {
		if err := os.Remove(filepath.Join(h.storagePath, *doc.StoragePath)); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove blob for document %s: %v", doc.ID, err)
		}
	}

	if err := h.docRepo.Delete(r.Context(), doc.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete document", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}

// loadOwned fetches the document and requires the caller to be its owner.
func (h *DocumentHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid document ID", r))
		return nil, false
	}

	doc, err := h.docRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
		return nil, false
	}

	if doc.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return doc, true
}

// loadOwnedOrPublic also admits readers of public documents.
func (h *DocumentHandler) loadOwnedOrPublic(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid document ID", r))
		return nil, false
	}

	doc, err := h.docRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
		return nil, false
	}

	if doc.UserID != middleware.GetUserID(r.Context()) && !doc.IsPublic {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return doc, true
}

func isAllowedDocumentType(mime, filename string) bool {
	allowed := map[string]bool{
		"application/pdf":          true,
		"text/plain":               true,
		"application/octet-stream": true,
		"application/zip":          true, // docx
	}
	if allowed[mime] || strings.HasPrefix(mime, "text/plain;") {
		return true
	}
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".docx") ||
		strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md")
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 100 {
		return fallback
	}
	return n
}

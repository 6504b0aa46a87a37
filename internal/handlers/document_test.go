package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type stubDocumentRepo struct {
	doc *models.Document

	metadataUpdated bool
	deleted         bool
	onDelete        func()
}

func (s *stubDocumentRepo) Create(ctx context.Context, d *models.Document) error { return nil }

func (s *stubDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, context.Canceled
	}
	return s.doc, nil
}

func (s *stubDocumentRepo) ListByUser(ctx context.Context, userID uuid.UUID, subject *string, limit int) ([]*models.Document, error) {
	return []*models.Document{}, nil
}

func (s *stubDocumentRepo) ListPublic(ctx context.Context, subject *string, limit int) ([]*models.Document, error) {
	return []*models.Document{}, nil
}

func (s *stubDocumentRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Document, error) {
	return []*models.Document{}, nil
}

func (s *stubDocumentRepo) Search(ctx context.Context, userID uuid.UUID, term string, limit int) ([]*models.Document, error) {
	return []*models.Document{}, nil
}

func (s *stubDocumentRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return nil
}

func (s *stubDocumentRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, req models.UpdateDocumentRequest) error {
	s.metadataUpdated = true
	return nil
}

func (s *stubDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = true
	if s.onDelete != nil {
		s.onDelete()
	}
	return nil
}

func TestDocumentHandler_Get_PublicDocumentReadable(t *testing.T) {
	docID := uuid.New()
	owner := uuid.New()
	reader := uuid.New()

	repo := &stubDocumentRepo{doc: &models.Document{ID: docID, UserID: owner, IsPublic: true}}
	h := NewDocumentHandler(repo, nil, nil, t.TempDir())

	rr := httptest.NewRecorder()
	h.Get(rr, roomRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), docID, reader))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

func TestDocumentHandler_Get_PrivateDocumentHidden(t *testing.T) {
	docID := uuid.New()
	owner := uuid.New()
	reader := uuid.New()

	repo := &stubDocumentRepo{doc: &models.Document{ID: docID, UserID: owner, IsPublic: false}}
	h := NewDocumentHandler(repo, nil, nil, t.TempDir())

	rr := httptest.NewRecorder()
	h.Get(rr, roomRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), docID, reader))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestDocumentHandler_UpdateMetadata_OwnerOnly(t *testing.T) {
	docID := uuid.New()
	owner := uuid.New()

	// Even a public document can only be edited by its owner.
	repo := &stubDocumentRepo{doc: &models.Document{ID: docID, UserID: owner, IsPublic: true}}
	h := NewDocumentHandler(repo, nil, nil, t.TempDir())

	rr := httptest.NewRecorder()
	h.UpdateMetadata(rr, roomRequest(http.MethodPut, "/api/v1/documents/"+docID.String(), docID, uuid.New()))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
	if repo.metadataUpdated {
		t.Fatalf("metadata must not change for a non-owner")
	}
}

func TestDocumentHandler_Delete_RemovesBlobBeforeRow(t *testing.T) {
	docID := uuid.New()
	owner := uuid.New()

	dir := t.TempDir()
	blobName := docID.String() + ".pdf"
	if err := os.WriteFile(filepath.Join(dir, blobName), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := &stubDocumentRepo{doc: &models.Document{ID: docID, UserID: owner, StoragePath: &blobName}}
	repo.onDelete = func() {
		if _, err := os.Stat(filepath.Join(dir, blobName)); !os.IsNotExist(err) {
			t.Error("blob must be removed before the row is deleted")
		}
	}
	h := NewDocumentHandler(repo, nil, nil, dir)

	rr := httptest.NewRecorder()
	h.Delete(rr, roomRequest(http.MethodDelete, "/api/v1/documents/"+docID.String(), docID, owner))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !repo.deleted {
		t.Fatal("expected the document row to be deleted")
	}
}

func TestDocumentHandler_Search_RequiresTerm(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentRepo{}, nil, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/search", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))

	rr := httptest.NewRecorder()
	h.Search(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

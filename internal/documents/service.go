package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/google/uuid"
)

// MaxFileSize is the largest accepted document upload.
const MaxFileSize = 10 << 20

// Upload is a document file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service manages uploaded documents.
type Service struct {
	repo     Repository
	store    gcs.ObjectStore
	notifier realtime.Notifier
}

// NewService creates a Service. notifier may be nil.
func NewService(repo Repository, store gcs.ObjectStore, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{repo: repo, store: store, notifier: notifier}
}

// ObjectPrefix is the storage prefix holding a document's files.
func ObjectPrefix(userID, documentID string) string {
	return fmt.Sprintf("documents/%s/%s/", userID, documentID)
}

// Upload stores a PDF and creates its document row in pending state.
func (s *Service) Upload(ctx context.Context, userID string, u Upload) (*domain.Document, error) {
	if len(u.Data) == 0 {
		return nil, apperr.New(apperr.KindValidation, "File is empty")
	}
	if len(u.Data) > MaxFileSize {
		return nil, apperr.New(apperr.KindValidation, "File exceeds the 10MB limit")
	}
	if u.ContentType != "application/pdf" || !bytes.HasPrefix(u.Data, []byte("%PDF-")) {
		return nil, apperr.New(apperr.KindValidation, "Only PDF files are supported")
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	doc := &domain.Document{
		ID:          id,
		UserID:      userID,
		FileName:    u.FileName,
		StoragePath: ObjectPrefix(userID, id) + gcs.SafeName(u.FileName),
		MimeType:    u.ContentType,
		SizeBytes:   int64(len(u.Data)),
		Status:      domain.DocumentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Upload(ctx, doc.StoragePath, doc.MimeType, bytes.NewReader(u.Data)); err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, err, "Failed to store document")
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		if delErr := s.store.Delete(ctx, doc.StoragePath); delErr != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(delErr).Str("path", doc.StoragePath).Msg("Failed to remove orphaned document object")
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.notify(ctx, doc, realtime.OpInsert)
	return doc, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	doc, err := s.repo.GetDocument(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, notFound()
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes the document's chunks, its row and its stored files.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteChunks(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.DeleteDocument(ctx, userID, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	// The row is gone; a leftover object is only logged.
	if _, err := s.store.DeletePrefix(ctx, ObjectPrefix(userID, doc.ID)); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to delete document files")
	}

	s.notify(ctx, doc, realtime.OpDelete)
	return nil
}

func (s *Service) notify(ctx context.Context, doc *domain.Document, op realtime.Op) {
	realtime.Notify(ctx, s.notifier, realtime.Change{
		Table:    realtime.TableDocuments,
		Op:       op,
		RecordID: doc.ID,
		UserID:   doc.UserID,
	})
}

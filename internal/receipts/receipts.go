// Package receipts stores receipt files attached to transactions and lists
// them with short-lived signed URLs.
package receipts

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

const (
	// MaxFileSize is the largest accepted receipt upload.
	MaxFileSize = 10 << 20

	DefaultLimit = 5
	MaxLimit     = 20

	// SignedURLTTL is how long a listed receipt stays downloadable.
	SignedURLTTL = 15 * time.Minute
)

var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedType     = errors.New("unsupported file type")
)

// Filter narrows a receipt listing. Zero values mean "no constraint".
type Filter struct {
	// Query matches the transaction description or merchant, case-insensitively.
	Query string
	From  time.Time
	To    time.Time
	Limit int
}

// Normalize clamps the limit into [1, MaxLimit], defaulting to DefaultLimit.
func (f Filter) Normalize() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	return f
}

// Repository persists receipt metadata.
type Repository interface {
	Create(ctx context.Context, r *domain.Receipt) error
	// List returns the user's receipts newest first, joined with the
	// transaction description as TransactionName.
	List(ctx context.Context, userID string, f Filter) ([]domain.Receipt, error)
	// TransactionName returns the description of the user's transaction or
	// an error wrapping ErrTransactionNotFound.
	TransactionName(ctx context.Context, userID, transactionID string) (string, error)
}

// Upload is a receipt file received from a client.
type Upload struct {
	TransactionID string
	FileName      string
	ContentType   string
	Data          []byte
}

// Service uploads and lists receipts.
type Service struct {
	repo     Repository
	store    gcs.ObjectStore
	notifier realtime.Notifier
	now      func() time.Time
}

// NewService creates a Service. notifier may be nil.
func NewService(repo Repository, store gcs.ObjectStore, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{repo: repo, store: store, notifier: notifier, now: time.Now}
}

// ObjectName returns where a receipt file is stored.
func ObjectName(userID, transactionID, receiptID, fileName string) string {
	return fmt.Sprintf("receipts/%s/%s/%s-%s", userID, transactionID, receiptID, gcs.SafeName(fileName))
}

// Validate checks the size and type of an upload.
func Validate(u Upload) error {
	if len(u.Data) == 0 {
		return apperr.New(apperr.KindValidation, "File is empty")
	}
	if len(u.Data) > MaxFileSize {
		return apperr.Wrap(apperr.KindValidation, ErrFileTooLarge, "File exceeds the 10MB limit")
	}
	if !allowedTypes[u.ContentType] {
		return apperr.Wrap(apperr.KindValidation, ErrUnsupportedType,
			fmt.Sprintf("Unsupported file type %q: use JPEG, PNG, WebP or PDF", u.ContentType))
	}
	return nil
}

// Upload stores the file and records it against the transaction.
func (s *Service) Upload(ctx context.Context, userID string, u Upload) (*domain.Receipt, error) {
	if err := Validate(u); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, apperr.New(apperr.KindConfiguration, "Server configuration error: missing GCS_BUCKET")
	}

	name, err := s.repo.TransactionName(ctx, userID, u.TransactionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "Transaction not found")
		}
		return nil, fmt.Errorf("look up transaction: %w", err)
	}

	id := uuid.NewString()
	rec := &domain.Receipt{
		ID:              id,
		UserID:          userID,
		TransactionID:   u.TransactionID,
		TransactionName: name,
		FileName:        u.FileName,
		StoragePath:     ObjectName(userID, u.TransactionID, id, u.FileName),
		MimeType:        u.ContentType,
		SizeBytes:       int64(len(u.Data)),
		CreatedAt:       s.now().UTC(),
	}

	if err := s.store.Upload(ctx, rec.StoragePath, rec.MimeType, bytes.NewReader(u.Data)); err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, err, "Failed to store receipt")
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		// Keep storage in step with the table.
		if delErr := s.store.Delete(ctx, rec.StoragePath); delErr != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(delErr).Str("path", rec.StoragePath).Msg("Failed to remove orphaned receipt object")
		}
		return nil, fmt.Errorf("save receipt: %w", err)
	}

	realtime.Notify(ctx, s.notifier, realtime.Change{
		Table:    realtime.TableReceipts,
		Op:       realtime.OpInsert,
		RecordID: rec.ID,
		UserID:   userID,
	})
	return rec, nil
}

// List returns matching receipts, each with a signed URL. A receipt whose URL
// cannot be signed is returned without one.
func (s *Service) List(ctx context.Context, userID string, f Filter) ([]domain.Receipt, error) {
	f = f.Normalize()
	recs, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	if s.store == nil {
		return recs, nil
	}

	log := logger.FromContext(ctx)
	for i := range recs {
		url, err := s.store.SignedURL(ctx, recs[i].StoragePath, SignedURLTTL)
		if err != nil {
			log.Warn().Err(err).Str("receipt_id", recs[i].ID).Msg("Failed to sign receipt URL")
			continue
		}
		recs[i].SignedURL = url
	}
	return recs, nil
}

package receipts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore implements gcs.ObjectStore with function fields.
type mockStore struct {
	UploadFunc    func(ctx context.Context, name, contentType string, r io.Reader) error
	DeleteFunc    func(ctx context.Context, name string) error
	SignedURLFunc func(ctx context.Context, name string, ttl time.Duration) (string, error)
}

func (m *mockStore) Upload(ctx context.Context, name, contentType string, r io.Reader) error {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, name, contentType, r)
	}
	return nil
}

func (m *mockStore) Download(context.Context, string) ([]byte, error) { return nil, nil }

func (m *mockStore) Delete(ctx context.Context, name string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, name)
	}
	return nil
}

func (m *mockStore) DeletePrefix(context.Context, string) (int, error) { return 0, nil }

func (m *mockStore) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if m.SignedURLFunc != nil {
		return m.SignedURLFunc(ctx, name, ttl)
	}
	return "https://signed/" + name, nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		upload  Upload
		wantErr error
	}{
		{name: "png ok", upload: Upload{ContentType: "image/png", Data: []byte("x")}},
		{name: "pdf ok", upload: Upload{ContentType: "application/pdf", Data: []byte("x")}},
		{name: "too large", upload: Upload{ContentType: "image/png", Data: make([]byte, MaxFileSize+1)}, wantErr: ErrFileTooLarge},
		{name: "gif rejected", upload: Upload{ContentType: "image/gif", Data: []byte("x")}, wantErr: ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.upload)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	assert.Error(t, Validate(Upload{ContentType: "image/png"}))
}

func TestUpload_StoresUnderTransactionPath(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddTransaction("u1", "tx-1", "Tesco Superstore")

	var uploaded string
	store := &mockStore{UploadFunc: func(_ context.Context, name, contentType string, r io.Reader) error {
		uploaded = name
		body, _ := io.ReadAll(r)
		assert.Equal(t, "image/jpeg", contentType)
		assert.Equal(t, "jpegdata", string(body))
		return nil
	}}
	svc := NewService(repo, store, nil)

	rec, err := svc.Upload(context.Background(), "u1", Upload{
		TransactionID: "tx-1",
		FileName:      "my receipt.jpg",
		ContentType:   "image/jpeg",
		Data:          []byte("jpegdata"),
	})

	require.NoError(t, err)
	assert.Equal(t, uploaded, rec.StoragePath)
	assert.True(t, strings.HasPrefix(rec.StoragePath, "receipts/u1/tx-1/"+rec.ID+"-"))
	assert.True(t, strings.HasSuffix(rec.StoragePath, "my_receipt.jpg"))
	assert.Equal(t, "Tesco Superstore", rec.TransactionName)
}

func TestUpload_UnknownTransaction(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &mockStore{}, nil)

	_, err := svc.Upload(context.Background(), "u1", Upload{
		TransactionID: "missing", ContentType: "image/png", Data: []byte("x"),
	})

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpload_StorageFailureIsExternal(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddTransaction("u1", "tx-1", "Rent")
	store := &mockStore{UploadFunc: func(context.Context, string, string, io.Reader) error {
		return errors.New("bucket unavailable")
	}}
	svc := NewService(repo, store, nil)

	_, err := svc.Upload(context.Background(), "u1", Upload{TransactionID: "tx-1", ContentType: "image/png", Data: []byte("x")})

	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	recs, _ := repo.List(context.Background(), "u1", Filter{})
	assert.Empty(t, recs)
}

func TestList_FiltersAndSigns(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"Tesco", "Amazon", "Tesco Express", "Shell"} {
		require.NoError(t, repo.Create(context.Background(), &domain.Receipt{
			ID: name, UserID: "u1", TransactionName: name,
			StoragePath: "receipts/" + name, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Create(context.Background(), &domain.Receipt{ID: "other", UserID: "u2", TransactionName: "Tesco"}))

	store := &mockStore{SignedURLFunc: func(_ context.Context, name string, ttl time.Duration) (string, error) {
		assert.Equal(t, SignedURLTTL, ttl)
		if name == "receipts/Tesco" {
			return "", errors.New("signing failed")
		}
		return "https://signed/" + name, nil
	}}
	svc := NewService(repo, store, nil)

	recs, err := svc.List(context.Background(), "u1", Filter{Query: "tesco"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Tesco Express", recs[0].ID)
	assert.Equal(t, "https://signed/receipts/Tesco Express", recs[0].SignedURL)
	assert.Empty(t, recs[1].SignedURL)

	recs, err = svc.List(context.Background(), "u1", Filter{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestFilterNormalize(t *testing.T) {
	assert.Equal(t, DefaultLimit, Filter{}.Normalize().Limit)
	assert.Equal(t, MaxLimit, Filter{Limit: 500}.Normalize().Limit)
	assert.Equal(t, 3, Filter{Limit: 3}.Normalize().Limit)
}

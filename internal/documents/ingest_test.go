package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner = "user-1"
	docID = "doc-1"
	path  = "documents/user-1/doc-1/lease.pdf"
)

type ingestFixture struct {
	repo     *fakeRepo
	store    *mockStore
	pages    []string
	embedder *mockEmbedder
	locker   *mockLocker
	ingestor *Ingestor
}

func newIngestFixture(t *testing.T, pages []string) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		repo: newFakeRepo(domain.Document{
			ID: docID, UserID: owner, FileName: "lease.pdf", StoragePath: path, Status: domain.DocumentPending,
		}),
		store:    newMockStore(),
		pages:    pages,
		embedder: &mockEmbedder{},
		locker:   &mockLocker{},
	}
	f.store.objects[path] = []byte("%PDF-1.7 fake")
	extractor := &mockExtractor{ExtractPagesFunc: func(_ context.Context, pdf []byte) ([]string, error) {
		require.Equal(t, "%PDF-1.7 fake", string(pdf))
		return f.pages, nil
	}}
	f.ingestor = NewIngestor(f.repo, f.store, extractor, f.embedder, f.locker, nil)
	return f
}

func paragraph(words int, tag string) string {
	return strings.TrimSpace(strings.Repeat(tag+" ", words)) + "."
}

func TestIngest_ThreePagePDF(t *testing.T) {
	pages := []string{
		paragraph(100, "first") + "\n\n" + paragraph(100, "lease"),
		paragraph(60, "second"),
		paragraph(250, "third"),
	}
	f := newIngestFixture(t, pages)

	res, err := f.ingestor.Ingest(context.Background(), owner, docID, path)

	require.NoError(t, err)
	chunks := f.repo.storedChunks(docID)
	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, len(chunks), res.ChunkCount)
	for i, c := range chunks {
		assert.Equal(t, docID, c.DocumentID)
		assert.Equal(t, owner, c.UserID)
		assert.Equal(t, i, c.ChunkIndex)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), DefaultChunkSize)
		assert.NotEmpty(t, c.Embedding)
	}

	doc := f.repo.doc(docID)
	assert.Equal(t, domain.DocumentReady, doc.Status)
	assert.Equal(t, len(chunks), doc.ChunkCount)
	assert.Equal(t, []domain.DocumentStatus{domain.DocumentProcessing, domain.DocumentReady}, f.repo.statuses)
	assert.Equal(t, 1, f.locker.released)
}

func TestIngest_EmbedsInBatchesOfFive(t *testing.T) {
	pages := make([]string, 12)
	for i := range pages {
		pages[i] = fmt.Sprintf("Page %d text.", i+1)
	}
	f := newIngestFixture(t, pages)

	res, err := f.ingestor.Ingest(context.Background(), owner, docID, "")

	require.NoError(t, err)
	assert.Equal(t, 12, res.ChunkCount)
	require.Len(t, f.embedder.calls, 3)
	assert.Len(t, f.embedder.calls[0], 5)
	assert.Len(t, f.embedder.calls[1], 5)
	assert.Len(t, f.embedder.calls[2], 2)
}

func TestIngest_FailureRemovesPartialChunks(t *testing.T) {
	pages := make([]string, 8)
	for i := range pages {
		pages[i] = fmt.Sprintf("Page %d text.", i+1)
	}
	f := newIngestFixture(t, pages)
	f.embedder.EmbedFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if len(f.embedder.calls) == 2 {
			return nil, apperr.Wrap(apperr.KindExternal, errors.New("quota exceeded"), "Embedding request failed")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1}
		}
		return out, nil
	}

	_, err := f.ingestor.Ingest(context.Background(), owner, docID, path)

	require.Error(t, err)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	assert.Empty(t, f.repo.storedChunks(docID))
	doc := f.repo.doc(docID)
	assert.Equal(t, domain.DocumentFailed, doc.Status)
	assert.Equal(t, "Embedding request failed", doc.ErrorMessage)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Equal(t, 1, f.locker.released)
}

func TestIngest_FailureMessageKeepsValidUTF8(t *testing.T) {
	f := newIngestFixture(t, []string{"Only page."})
	// 3-byte runes put a rune boundary off the byte limit.
	long := "x" + strings.Repeat("€", maxErrorMessageLen)
	f.embedder.EmbedFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New(long)
	}

	_, err := f.ingestor.Ingest(context.Background(), owner, docID, path)
	require.Error(t, err)

	doc := f.repo.doc(docID)
	assert.Equal(t, domain.DocumentFailed, doc.Status)
	assert.True(t, utf8.ValidString(doc.ErrorMessage))
	assert.LessOrEqual(t, len(doc.ErrorMessage), maxErrorMessageLen)
	assert.Greater(t, len(doc.ErrorMessage), maxErrorMessageLen-utf8.UTFMax)
	assert.True(t, strings.HasPrefix(long, doc.ErrorMessage))
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"a€b", 2, "a"},
		{"a€b", 4, "a€"},
		{"€", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateUTF8(tt.in, tt.n), "truncateUTF8(%q, %d)", tt.in, tt.n)
	}
}

func TestIngest_ReingestionReplacesChunks(t *testing.T) {
	f := newIngestFixture(t, []string{"Only page."})
	ctx := context.Background()

	_, err := f.ingestor.Ingest(ctx, owner, docID, path)
	require.NoError(t, err)
	_, err = f.ingestor.Ingest(ctx, owner, docID, path)
	require.NoError(t, err)

	assert.Len(t, f.repo.storedChunks(docID), 1)
}

func TestIngest_NotFound(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		docID  string
		path   string
	}{
		{name: "unknown document", userID: owner, docID: "missing", path: ""},
		{name: "not owned", userID: "intruder", docID: docID, path: path},
		{name: "path mismatch", userID: owner, docID: docID, path: "documents/user-1/other.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, []string{"text"})

			_, err := f.ingestor.Ingest(context.Background(), tt.userID, tt.docID, tt.path)

			require.Error(t, err)
			assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
			assert.Equal(t, "Document not found", apperr.Message(err))
			assert.Empty(t, f.repo.statuses)
		})
	}
}

func TestIngest_LockHeld(t *testing.T) {
	f := newIngestFixture(t, []string{"text"})
	f.locker.ObtainFunc = func(_ context.Context, key string, _ time.Duration) (Lock, error) {
		assert.Equal(t, "ingest:"+docID, key)
		return nil, ErrLocked
	}

	_, err := f.ingestor.Ingest(context.Background(), owner, docID, path)

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Empty(t, f.repo.statuses)
	assert.Equal(t, domain.DocumentPending, f.repo.doc(docID).Status)
}

func TestIngest_NoText(t *testing.T) {
	f := newIngestFixture(t, []string{"", "   "})

	_, err := f.ingestor.Ingest(context.Background(), owner, docID, path)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, domain.DocumentFailed, f.repo.doc(docID).Status)
	assert.Empty(t, f.embedder.calls)
}

func TestIngest_MissingObject(t *testing.T) {
	f := newIngestFixture(t, []string{"text"})
	delete(f.store.objects, path)

	_, err := f.ingestor.Ingest(context.Background(), owner, docID, path)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, domain.DocumentFailed, f.repo.doc(docID).Status)
}

func TestIngestor_StepOrder(t *testing.T) {
	f := newIngestFixture(t, nil)
	var names []string
	for _, s := range f.ingestor.Steps() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"load_document", "lock", "mark_processing", "fetch",
		"extract_pages", "chunk", "embed_and_store", "mark_ready",
	}, names)
}

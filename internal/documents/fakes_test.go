package documents

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
)

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	chunks    map[string][]domain.DocumentChunk
	statuses  []domain.DocumentStatus
	matchFunc func(p MatchParams) ([]domain.DocumentChunk, error)
	insertErr func(call int) error
	inserts   int
}

func newFakeRepo(docs ...domain.Document) *fakeRepo {
	r := &fakeRepo{docs: make(map[string]*domain.Document), chunks: make(map[string][]domain.DocumentChunk)}
	for _, d := range docs {
		d := d
		r.docs[d.ID] = &d
	}
	return r
}

func (r *fakeRepo) CreateDocument(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.docs[d.ID] = &cp
	return nil
}

func (r *fakeRepo) GetDocument(_ context.Context, userID, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeRepo) ListDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Document
	for _, d := range r.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMsg string, chunkCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	d.Status = status
	d.ErrorMessage = errMsg
	d.ChunkCount = chunkCount
	d.UpdatedAt = time.Now()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *fakeRepo) DeleteDocument(_ context.Context, _ string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

func (r *fakeRepo) InsertChunks(_ context.Context, chunks []domain.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		if err := r.insertErr(r.inserts); err != nil {
			return err
		}
	}
	for _, c := range chunks {
		r.chunks[c.DocumentID] = append(r.chunks[c.DocumentID], c)
	}
	return nil
}

func (r *fakeRepo) DeleteChunks(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chunks, documentID)
	return nil
}

func (r *fakeRepo) MatchChunks(_ context.Context, p MatchParams) ([]domain.DocumentChunk, error) {
	if r.matchFunc != nil {
		return r.matchFunc(p)
	}
	return nil, nil
}

func (r *fakeRepo) ListChunks(_ context.Context, userID, documentID string, limit int) ([]domain.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DocumentChunk
	for _, c := range r.chunks[documentID] {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) storedChunks(documentID string) []domain.DocumentChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DocumentChunk(nil), r.chunks[documentID]...)
}

func (r *fakeRepo) doc(id string) domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.docs[id]
}

var _ Repository = (*fakeRepo)(nil)

type mockStore struct {
	objects          map[string][]byte
	DeletePrefixFunc func(ctx context.Context, prefix string) (int, error)
}

func newMockStore() *mockStore { return &mockStore{objects: make(map[string][]byte)} }

func (m *mockStore) Upload(_ context.Context, name, _ string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[name] = data
	return nil
}

func (m *mockStore) Download(_ context.Context, name string) ([]byte, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gcs.ErrObjectNotFound, name)
	}
	return data, nil
}

func (m *mockStore) Delete(_ context.Context, name string) error {
	delete(m.objects, name)
	return nil
}

func (m *mockStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if m.DeletePrefixFunc != nil {
		return m.DeletePrefixFunc(ctx, prefix)
	}
	n := 0
	for name := range m.objects {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			delete(m.objects, name)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) SignedURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://signed/" + name, nil
}

type mockExtractor struct {
	ExtractPagesFunc func(ctx context.Context, pdf []byte) ([]string, error)
}

func (m *mockExtractor) ExtractPages(ctx context.Context, pdf []byte) ([]string, error) {
	return m.ExtractPagesFunc(ctx, pdf)
}

type mockEmbedder struct {
	mu        sync.Mutex
	calls     [][]string
	EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, texts)
	m.mu.Unlock()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5, 1}
	}
	return out, nil
}

type mockCompleter struct {
	system, prompt string
	CompleteFunc   func(ctx context.Context, system, prompt string) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.system, m.prompt = system, prompt
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt)
	}
	return "The rent is $1200.", nil
}

type mockLocker struct {
	ObtainFunc func(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	released   int
}

func (m *mockLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if m.ObtainFunc != nil {
		return m.ObtainFunc(ctx, key, ttl)
	}
	return &countingLock{owner: m}, nil
}

type countingLock struct{ owner *mockLocker }

func (l *countingLock) Release(context.Context) error {
	l.owner.released++
	return nil
}

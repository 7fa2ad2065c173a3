package documents

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/google/uuid"
)

const (
	// EmbedBatchSize is how many chunks go into one embedding call.
	EmbedBatchSize = 5

	lockTTL = 10 * time.Minute

	maxErrorMessageLen = 2000
)

// IngestResult is returned to the caller of a successful ingestion.
type IngestResult struct {
	Message    string `json:"message"`
	ChunkCount int    `json:"chunkCount"`
}

// Step is one stage of an ingestion run.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State is shared across the steps of one ingestion run.
type State struct {
	UserID     string
	DocumentID string
	FilePath   string

	Document *domain.Document
	Lock     Lock
	PDF      []byte
	Pages    []string
	Chunks   []string
	Stored   int

	// processing is set once the document row has moved to processing; a
	// failure after that point triggers cleanup.
	processing bool
}

// Ingestor runs the ingestion steps for a document.
type Ingestor struct {
	repo      Repository
	store     gcs.ObjectStore
	extractor PageExtractor
	embedder  Embedder
	locker    Locker
	notifier  realtime.Notifier
	chunkSize int
}

// NewIngestor creates an Ingestor. locker and notifier may be nil.
func NewIngestor(repo Repository, store gcs.ObjectStore, extractor PageExtractor, embedder Embedder, locker Locker, notifier realtime.Notifier) *Ingestor {
	if locker == nil {
		locker = NopLocker{}
	}
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Ingestor{
		repo:      repo,
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		locker:    locker,
		notifier:  notifier,
		chunkSize: DefaultChunkSize,
	}
}

// Steps returns the ingestion steps in execution order.
func (in *Ingestor) Steps() []Step {
	return []Step{
		&loadDocumentStep{repo: in.repo},
		&lockStep{locker: in.locker},
		&markProcessingStep{in: in},
		&fetchStep{store: in.store},
		&extractPagesStep{extractor: in.extractor},
		&chunkStep{size: in.chunkSize},
		&embedAndStoreStep{repo: in.repo, embedder: in.embedder},
		&markReadyStep{in: in},
	}
}

// Ingest extracts, chunks and embeds the document. A non-empty filePath must
// match the stored path. On failure after processing has started, every chunk
// of the document is removed and the document is marked failed.
func (in *Ingestor) Ingest(ctx context.Context, userID, documentID, filePath string) (*IngestResult, error) {
	ctx = logger.With(ctx, "document_id", documentID)
	log := logger.FromContext(ctx)

	state := &State{UserID: userID, DocumentID: documentID, FilePath: filePath}
	defer func() {
		if state.Lock != nil {
			// Release with a fresh context so a cancelled request still unlocks.
			if err := state.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("Failed to release ingestion lock")
			}
		}
	}()

	start := time.Now()
	for _, step := range in.Steps() {
		if err := step.Execute(ctx, state); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Msg("Ingestion step failed")
			if state.processing {
				in.fail(ctx, documentID, userID, err)
			}
			return nil, err
		}
		log.Debug().Str("step", step.Name()).Msg("Ingestion step completed")
	}

	log.Info().
		Int("pages", len(state.Pages)).
		Int("chunks", state.Stored).
		Dur("elapsed", time.Since(start)).
		Msg("Document ingested")

	return &IngestResult{Message: "Document processed successfully", ChunkCount: state.Stored}, nil
}

// fail removes partial chunks and records the failure. It runs detached from
// ctx cancellation so an aborted request still cleans up.
func (in *Ingestor) fail(ctx context.Context, documentID, userID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx)

	if err := in.repo.DeleteChunks(ctx, documentID); err != nil {
		log.Error().Err(err).Msg("Failed to delete partial chunks")
	}

	msg := apperr.Message(cause)
	if apperr.KindOf(cause) == apperr.KindInternal {
		msg = cause.Error()
	}
	msg = truncateUTF8(msg, maxErrorMessageLen)
	if err := in.repo.UpdateStatus(ctx, documentID, domain.DocumentFailed, msg, 0); err != nil {
		log.Error().Err(err).Msg("Failed to mark document failed")
	}
	in.notify(ctx, documentID, userID)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (in *Ingestor) notify(ctx context.Context, documentID, userID string) {
	realtime.Notify(ctx, in.notifier, realtime.Change{
		Table:    realtime.TableDocuments,
		Op:       realtime.OpUpdate,
		RecordID: documentID,
		UserID:   userID,
	})
}

type loadDocumentStep struct{ repo Repository }

func (s *loadDocumentStep) Name() string { return "load_document" }

func (s *loadDocumentStep) Execute(ctx context.Context, state *State) error {
	doc, err := s.repo.GetDocument(ctx, state.UserID, state.DocumentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return notFound()
		}
		return fmt.Errorf("load document: %w", err)
	}
	if state.FilePath != "" && state.FilePath != doc.StoragePath {
		return notFound()
	}
	state.Document = doc
	return nil
}

type lockStep struct{ locker Locker }

func (s *lockStep) Name() string { return "lock" }

func (s *lockStep) Execute(ctx context.Context, state *State) error {
	lock, err := s.locker.Obtain(ctx, lockKey(state.DocumentID), lockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return apperr.Wrap(apperr.KindConflict, err, "Document is already being processed")
		}
		return err
	}
	state.Lock = lock
	return nil
}

type markProcessingStep struct{ in *Ingestor }

func (s *markProcessingStep) Name() string { return "mark_processing" }

func (s *markProcessingStep) Execute(ctx context.Context, state *State) error {
	if err := s.in.repo.UpdateStatus(ctx, state.DocumentID, domain.DocumentProcessing, "", 0); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	state.processing = true
	s.in.notify(ctx, state.DocumentID, state.UserID)

	// Re-ingestion replaces whatever an earlier run stored.
	if err := s.in.repo.DeleteChunks(ctx, state.DocumentID); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}
	return nil
}

type fetchStep struct{ store gcs.ObjectStore }

func (s *fetchStep) Name() string { return "fetch" }

func (s *fetchStep) Execute(ctx context.Context, state *State) error {
	data, err := s.store.Download(ctx, state.Document.StoragePath)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			return apperr.Wrap(apperr.KindNotFound, err, "Document file not found")
		}
		return apperr.Wrap(apperr.KindExternal, err, "Failed to download document")
	}
	state.PDF = data
	return nil
}

type extractPagesStep struct{ extractor PageExtractor }

func (s *extractPagesStep) Name() string { return "extract_pages" }

func (s *extractPagesStep) Execute(ctx context.Context, state *State) error {
	pages, err := s.extractor.ExtractPages(ctx, state.PDF)
	if err != nil {
		return err
	}
	state.Pages = pages
	return nil
}

type chunkStep struct{ size int }

func (s *chunkStep) Name() string { return "chunk" }

func (s *chunkStep) Execute(_ context.Context, state *State) error {
	state.Chunks = ChunkPages(state.Pages, s.size)
	if len(state.Chunks) == 0 {
		return apperr.New(apperr.KindValidation, "No text could be extracted from the document")
	}
	return nil
}

type embedAndStoreStep struct {
	repo     Repository
	embedder Embedder
}

func (s *embedAndStoreStep) Name() string { return "embed_and_store" }

func (s *embedAndStoreStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	for start := 0; start < len(state.Chunks); start += EmbedBatchSize {
		end := min(start+EmbedBatchSize, len(state.Chunks))
		batch := state.Chunks[start:end]

		vectors, err := s.embedder.Embed(ctx, batch)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return apperr.New(apperr.KindExternal, "Embedding request failed")
		}

		rows := make([]domain.DocumentChunk, len(batch))
		for i, content := range batch {
			rows[i] = domain.DocumentChunk{
				ID:         uuid.NewString(),
				DocumentID: state.DocumentID,
				UserID:     state.UserID,
				ChunkIndex: start + i,
				Content:    content,
				Embedding:  vectors[i],
			}
		}
		if err := s.repo.InsertChunks(ctx, rows); err != nil {
			return fmt.Errorf("insert chunks %d-%d: %w", start, end-1, err)
		}
		state.Stored += len(rows)

		log.Debug().Int("batch_start", start).Int("batch_size", len(rows)).Msg("Stored chunk batch")
	}
	return nil
}

type markReadyStep struct{ in *Ingestor }

func (s *markReadyStep) Name() string { return "mark_ready" }

func (s *markReadyStep) Execute(ctx context.Context, state *State) error {
	if err := s.in.repo.UpdateStatus(ctx, state.DocumentID, domain.DocumentReady, "", state.Stored); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	s.in.notify(ctx, state.DocumentID, state.UserID)
	return nil
}

func notFound() error {
	return apperr.Wrap(apperr.KindNotFound, ErrDocumentNotFound, "Document not found")
}

package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

const (
	MatchThreshold = 0.5
	MatchCount     = 5
)

const answerSystemPrompt = "You are a helpful assistant that answers questions about a user's document. " +
	"Answer ONLY using the information in the provided context. " +
	"If the context does not contain the answer, say that the document does not provide that information. " +
	"Do not use outside knowledge and do not guess."

// Source is a chunk the answer was grounded on.
type Source struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity,omitempty"`
}

// DocumentRef identifies the queried document.
type DocumentRef struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
}

// Answer is the response to a document question.
type Answer struct {
	Answer   string      `json:"answer"`
	Sources  []Source    `json:"sources"`
	Document DocumentRef `json:"document"`
}

// Answerer answers questions from a document's chunks.
type Answerer struct {
	repo      Repository
	embedder  Embedder
	completer Completer
}

func NewAnswerer(repo Repository, embedder Embedder, completer Completer) *Answerer {
	return &Answerer{repo: repo, embedder: embedder, completer: completer}
}

// Answer retrieves the chunks most similar to question and asks the model to
// answer from them alone. A document without chunks is reported as not found.
func (a *Answerer) Answer(ctx context.Context, userID, documentID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.New(apperr.KindValidation, "Question is required")
	}

	doc, err := a.repo.GetDocument(ctx, userID, documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, notFound()
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	ctx = logger.With(ctx, "document_id", documentID)

	vectors, err := a.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, apperr.New(apperr.KindExternal, "Embedding request failed")
	}

	chunks, err := a.retrieve(ctx, userID, documentID, vectors[0])
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperr.Wrap(apperr.KindNotFound, ErrNoChunks, "No document chunks found")
	}

	prompt := buildPrompt(chunks, question)
	text, err := a.completer.Complete(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(chunks))
	for i, c := range chunks {
		sources[i] = Source{Content: c.Content, Similarity: c.Similarity}
	}
	return &Answer{
		Answer:   text,
		Sources:  sources,
		Document: DocumentRef{ID: doc.ID, FileName: doc.FileName},
	}, nil
}

// retrieve runs the similarity search and falls back to the first chunks of
// the document when the search fails or finds nothing above the threshold.
func (a *Answerer) retrieve(ctx context.Context, userID, documentID string, embedding []float32) ([]domain.DocumentChunk, error) {
	log := logger.FromContext(ctx)

	chunks, err := a.repo.MatchChunks(ctx, MatchParams{
		Embedding:  embedding,
		DocumentID: documentID,
		UserID:     userID,
		Threshold:  MatchThreshold,
		Count:      MatchCount,
	})
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Similarity search failed, falling back to direct fetch")
	case len(chunks) > 0:
		return chunks, nil
	default:
		log.Debug().Msg("No chunks above threshold, falling back to direct fetch")
	}

	chunks, err = a.repo.ListChunks(ctx, userID, documentID, MatchCount)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	return chunks, nil
}

func buildPrompt(chunks []domain.DocumentChunk, question string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(c.Content)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

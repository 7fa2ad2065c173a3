// Package llm wraps the Gemini API calls used for document ingestion and
// question answering.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"google.golang.org/genai"
)

const (
	// AnswerMaxTokens caps the length of a generated answer.
	AnswerMaxTokens = 500

	// EmbeddingDimensions is the vector size of the default embedding model.
	EmbeddingDimensions = 768
)

const extractPagesPrompt = "You are a PDF text extractor.\n\n" +
	"Task:\n" +
	"- Extract the readable text of EVERY page of the attached PDF, in page order.\n" +
	"- Keep paragraph breaks as blank lines. Drop page headers, footers and page numbers.\n" +
	"- Output STRICT JSON only: an array of strings, one string per page.\n" +
	"- A page with no text is an empty string.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// Options configures a Client.
type Options struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
}

// Client calls Gemini for embeddings, completions and PDF text extraction.
type Client struct {
	genai          *genai.Client
	embeddingModel string
	chatModel      string
}

// New creates a Client for the Gemini API.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: client, embeddingModel: opts.EmbeddingModel, chatModel: opts.ChatModel}, nil
}

// Embed returns one embedding per text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := c.genai.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
	if err != nil {
		return nil, external("Embedding request failed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, external("Embedding request failed",
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Embeddings), len(texts)))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Complete runs one deterministic completion under a system instruction.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   AnswerMaxTokens,
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), cfg)
	if err != nil {
		return "", external("Completion request failed", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", external("Completion request failed", errors.New("empty response from model"))
	}
	return text, nil
}

// ExtractPages returns the text of each page of a PDF.
func (c *Client) ExtractPages(ctx context.Context, pdf []byte) ([]string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPagesPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.chatModel, contents, cfg)
	if err != nil {
		return nil, external("PDF extraction failed", err)
	}
	raw := resp.Text()
	if raw == "" {
		return nil, external("PDF extraction failed", errors.New("empty response from model"))
	}

	pages, err := ParsePages(raw)
	if err != nil {
		return nil, external("PDF extraction failed", err)
	}
	return pages, nil
}

// ParsePages decodes a model reply holding a JSON array of page strings.
func ParsePages(raw string) ([]string, error) {
	var pages []string
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &pages); err != nil {
		return nil, fmt.Errorf("unmarshal pages: %w", err)
	}
	return pages, nil
}

// CleanJSON strips Markdown fences and surrounding prose from a model reply
// that should contain a JSON array.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func external(msg string, err error) error {
	return apperr.Wrap(apperr.KindExternal, err, msg)
}

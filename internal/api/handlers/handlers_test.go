package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/auth"
	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/chat"
	"github.com/dvloznov/finance-dashboard/internal/documents"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/ledger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/dvloznov/finance-dashboard/internal/receipts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// Mock implementations

type mockDocumentService struct {
	UploadFunc func(ctx context.Context, userID string, u documents.Upload) (*domain.Document, error)
	ListFunc   func(ctx context.Context, userID string) ([]domain.Document, error)
	GetFunc    func(ctx context.Context, userID, id string) (*domain.Document, error)
	DeleteFunc func(ctx context.Context, userID, id string) error
}

func (m *mockDocumentService) Upload(ctx context.Context, userID string, u documents.Upload) (*domain.Document, error) {
	return m.UploadFunc(ctx, userID, u)
}

func (m *mockDocumentService) List(ctx context.Context, userID string) ([]domain.Document, error) {
	return m.ListFunc(ctx, userID)
}

func (m *mockDocumentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	return m.GetFunc(ctx, userID, id)
}

func (m *mockDocumentService) Delete(ctx context.Context, userID, id string) error {
	return m.DeleteFunc(ctx, userID, id)
}

type mockIngester struct {
	IngestFunc func(ctx context.Context, userID, documentID, filePath string) (*documents.IngestResult, error)
}

func (m *mockIngester) Ingest(ctx context.Context, userID, documentID, filePath string) (*documents.IngestResult, error) {
	return m.IngestFunc(ctx, userID, documentID, filePath)
}

type mockAnswerer struct {
	AnswerFunc func(ctx context.Context, userID, documentID, question string) (*documents.Answer, error)
}

func (m *mockAnswerer) Answer(ctx context.Context, userID, documentID, question string) (*documents.Answer, error) {
	return m.AnswerFunc(ctx, userID, documentID, question)
}

type mockReceiptService struct {
	UploadFunc func(ctx context.Context, userID string, u receipts.Upload) (*domain.Receipt, error)
	ListFunc   func(ctx context.Context, userID string, f receipts.Filter) ([]domain.Receipt, error)
}

func (m *mockReceiptService) Upload(ctx context.Context, userID string, u receipts.Upload) (*domain.Receipt, error) {
	return m.UploadFunc(ctx, userID, u)
}

func (m *mockReceiptService) List(ctx context.Context, userID string, f receipts.Filter) ([]domain.Receipt, error) {
	return m.ListFunc(ctx, userID, f)
}

type mockSubscriber struct {
	SubscribeFunc func(ctx context.Context, userID string, tables []string) (<-chan realtime.Change, error)
}

func (m *mockSubscriber) Subscribe(ctx context.Context, userID string, tables []string) (<-chan realtime.Change, error) {
	return m.SubscribeFunc(ctx, userID, tables)
}

// testServer wires real budget and chat services over memory repositories
// with mocks for everything that talks to external systems.
type testServer struct {
	handler   http.Handler
	verifier  *auth.Verifier
	docs      *mockDocumentService
	ingester  *mockIngester
	answerer  *mockAnswerer
	receipts  *mockReceiptService
	sub       *mockSubscriber
	jobStore  *inmemory.Store
	jobQueue  *inmemory.Queue
	ledger    *ledger.MemoryRepository
	budgetSvc *budget.Service
}

type serverOption func(*serverConfig)

type serverConfig struct {
	missing []string
	noSub   bool
}

func withMissingConfig(keys ...string) serverOption {
	return func(c *serverConfig) { c.missing = keys }
}

func withoutRealtime() serverOption {
	return func(c *serverConfig) { c.noSub = true }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	var cfg serverConfig
	for _, o := range opts {
		o(&cfg)
	}

	budgetRepo := budget.NewMemoryRepository()
	budgetRepo.Seed(
		domain.BudgetCategory{ID: "housing", UserID: "u1", Name: "Housing", Allocated: decimal.NewFromInt(2000), Spent: decimal.NewFromInt(1500)},
		domain.BudgetCategory{ID: "food", UserID: "u1", Name: "Food", Allocated: decimal.NewFromInt(800), Spent: decimal.NewFromInt(450)},
	)
	budgetSvc := budget.NewService(budgetRepo, nil)
	chatSvc := chat.NewService(chat.NewInterpreter(budgetSvc, nil), chat.NewMemoryMessageRepository(), nil)

	ts := &testServer{
		verifier:  auth.NewVerifier(testSecret),
		docs:      &mockDocumentService{},
		ingester:  &mockIngester{},
		answerer:  &mockAnswerer{},
		receipts:  &mockReceiptService{},
		sub:       &mockSubscriber{},
		jobStore:  inmemory.NewStore(),
		ledger:    ledger.NewMemoryRepository(),
		budgetSvc: budgetSvc,
	}
	ts.jobQueue = inmemory.NewQueue(inmemory.Options{}, ts.jobStore)
	t.Cleanup(func() { _ = ts.jobQueue.Close() })

	var sub Subscriber = ts.sub
	if cfg.noSub {
		sub = nil
	}

	mux := NewRouter(Handlers{
		Documents: NewDocumentsHandler(ts.docs, ts.ingester, ts.answerer, ts.jobQueue, cfg.missing),
		Jobs:      NewJobsHandler(ts.jobStore),
		Budget:    NewBudgetHandler(budgetSvc),
		Chat:      NewChatHandler(chatSvc),
		Ledger:    NewLedgerHandler(ts.ledger),
		Receipts:  NewReceiptsHandler(ts.receipts),
		Realtime:  NewRealtimeHandler(sub),
	})
	ts.handler = middleware.Chain(mux, middleware.RequestID, middleware.Auth(ts.verifier))
	return ts
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ts.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+ts.token(t, "u1"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth_NoAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)
	expired, err := ts.verifier.Issue("u1", -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewVerifier("other-secret").Issue("u1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong key", header: "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/documents/query", strings.NewReader(`{}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Unauthorized", errorMessage(t, rec))
		})
	}
}

func TestDocuments_MissingConfiguration(t *testing.T) {
	ts := newTestServer(t, withMissingConfig("GEMINI_API_KEY", "GCS_BUCKET"))

	for _, path := range []string{"/api/documents/process", "/api/documents/query"} {
		rec := ts.do(t, http.MethodPost, path, map[string]string{"documentId": "d1", "filePath": "p", "question": "q"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Equal(t, "Server configuration error: missing GEMINI_API_KEY, GCS_BUCKET", errorMessage(t, rec))
	}
}

func TestDocuments_Process(t *testing.T) {
	ts := newTestServer(t)
	ts.ingester.IngestFunc = func(_ context.Context, userID, documentID, filePath string) (*documents.IngestResult, error) {
		assert.Equal(t, "u1", userID)
		assert.Equal(t, "doc-1", documentID)
		assert.Equal(t, "documents/u1/doc-1/a.pdf", filePath)
		return &documents.IngestResult{Message: "Document processed successfully", ChunkCount: 12}, nil
	}

	rec := ts.do(t, http.MethodPost, "/api/documents/process", map[string]string{
		"documentId": "doc-1",
		"filePath":   "documents/u1/doc-1/a.pdf",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Document processed successfully","chunkCount":12}`, rec.Body.String())
}

func TestDocuments_ProcessErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed body",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "missing document id",
			body:       map[string]string{"filePath": "p"},
			wantStatus: http.StatusBadRequest,
			wantError:  "documentId is required",
		},
		{
			name:       "not owned",
			body:       map[string]string{"documentId": "d", "filePath": "p"},
			err:        apperr.New(apperr.KindNotFound, "Document not found"),
			wantStatus: http.StatusNotFound,
			wantError:  "Document not found",
		},
		{
			name:       "provider failure",
			body:       map[string]string{"documentId": "d", "filePath": "p"},
			err:        apperr.Wrap(apperr.KindExternal, errors.New("quota"), "Embedding request failed"),
			wantStatus: http.StatusBadGateway,
			wantError:  "Embedding request failed",
		},
		{
			name:       "database failure",
			body:       map[string]string{"documentId": "d", "filePath": "p"},
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.ingester.IngestFunc = func(context.Context, string, string, string) (*documents.IngestResult, error) {
				return nil, tt.err
			}

			rec := ts.do(t, http.MethodPost, "/api/documents/process", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, errorMessage(t, rec))
		})
	}
}

func TestDocuments_Query(t *testing.T) {
	ts := newTestServer(t)
	ts.answerer.AnswerFunc = func(_ context.Context, _, documentID, question string) (*documents.Answer, error) {
		if documentID == "empty" {
			return nil, apperr.New(apperr.KindNotFound, "No document chunks found")
		}
		assert.Equal(t, "What is the balance?", question)
		return &documents.Answer{
			Answer:   "The balance is $120.",
			Sources:  []documents.Source{{Content: "Balance: $120", Similarity: 0.91}},
			Document: documents.DocumentRef{ID: documentID, FileName: "statement.pdf"},
		}, nil
	}

	rec := ts.do(t, http.MethodPost, "/api/documents/query", map[string]string{
		"documentId": "doc-1",
		"question":   "  What is the balance?  ",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var answer documents.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "The balance is $120.", answer.Answer)
	assert.Equal(t, "statement.pdf", answer.Document.FileName)
	require.Len(t, answer.Sources, 1)

	rec = ts.do(t, http.MethodPost, "/api/documents/query", map[string]string{"documentId": "empty", "question": "q"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No document chunks found", errorMessage(t, rec))
}

func TestDocuments_Upload(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.UploadFunc = func(_ context.Context, userID string, u documents.Upload) (*domain.Document, error) {
		assert.Equal(t, "statement.pdf", u.FileName)
		assert.Equal(t, "application/pdf", u.ContentType)
		return &domain.Document{ID: "doc-1", UserID: userID, FileName: u.FileName, Status: domain.DocumentPending, SizeBytes: int64(len(u.Data))}, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="statement.pdf"`)
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.7 test"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Authorization", "Bearer "+ts.token(t, "u1"))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var doc domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, domain.DocumentPending, doc.Status)
}

func TestDocuments_UploadWithoutFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/documents", "not multipart")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocuments_ListGetDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.ListFunc = func(context.Context, string) ([]domain.Document, error) {
		return []domain.Document{{ID: "a"}, {ID: "b"}}, nil
	}
	ts.docs.GetFunc = func(_ context.Context, _, id string) (*domain.Document, error) {
		if id != "a" {
			return nil, apperr.New(apperr.KindNotFound, "Document not found")
		}
		return &domain.Document{ID: "a"}, nil
	}
	var deleted string
	ts.docs.DeleteFunc = func(_ context.Context, _, id string) error {
		deleted = id
		return nil
	}

	rec := ts.do(t, http.MethodGet, "/api/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = ts.do(t, http.MethodGet, "/api/documents/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/documents/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/documents/a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a", deleted)
}

func TestDocuments_ReprocessAndJobStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.GetFunc = func(_ context.Context, userID, id string) (*domain.Document, error) {
		return &domain.Document{ID: id, UserID: userID, StoragePath: "documents/u1/" + id + "/a.pdf"}, nil
	}

	rec := ts.do(t, http.MethodPost, "/api/documents/doc-1/reprocess", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "doc-1", body["document_id"])
	assert.Equal(t, string(jobs.JobStatusPending), body["status"])
	require.NotEmpty(t, body["job_id"])

	rec = ts.do(t, http.MethodGet, "/api/jobs/"+body["job_id"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.ProcessDocumentJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "documents/u1/doc-1/a.pdf", job.FilePath)

	// Another user's job is invisible.
	require.NoError(t, ts.jobStore.SaveJob(context.Background(), &jobs.ProcessDocumentJob{JobID: "other", UserID: "u2"}))
	rec = ts.do(t, http.MethodGet, "/api/jobs/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestBudget_Endpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/budget/categories/housing/allocate", `{"amount": 500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var cat domain.BudgetCategory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	assert.True(t, cat.Allocated.Equal(decimal.NewFromInt(2500)), cat.Allocated.String())

	rec = ts.do(t, http.MethodPost, "/api/budget/transfer", `{"from":"food","to":"housing","amount":"900"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "Not enough funds in Food")

	rec = ts.do(t, http.MethodPost, "/api/budget/transfer", `{"from":"food","to":"housing","amount":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Successfully transferred $100 from Food to Housing")

	rec = ts.do(t, http.MethodPost, "/api/budget/categories/travel/allocate", `{"amount": 5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/budget/categories/housing/allocate", `{"amount": -5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/budget/categories", `{"amount": 100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", errorMessage(t, rec))

	rec = ts.do(t, http.MethodPost, "/api/budget/categories", `{"name":"Travel","amount":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/budget/categories", `{"name":"travel","amount":100}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/budget/categories/travel", `{"amount":40}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/budget/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestChat_SendAndHistory(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "Allocate $500 to housing"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reply domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "Successfully allocated $500 to Housing", reply.Content)
	require.NotNil(t, reply.Action)
	assert.True(t, reply.Action.Success)

	rec = ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/chat/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = ts.do(t, http.MethodGet, "/api/chat/messages?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedger_Endpoints(t *testing.T) {
	ts := newTestServer(t)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ts.ledger.Seed(
		[]domain.Account{{ID: "a1", UserID: "u1", Institution: "Chase", Name: "Checking", Active: true}},
		[]domain.Transaction{
			{ID: "t1", UserID: "u1", AccountID: "a1", Description: "Rent", Amount: decimal.NewFromInt(1500), Date: day},
			{ID: "t2", UserID: "u1", AccountID: "a1", Description: "Coffee", Amount: decimal.NewFromInt(4), Date: day.AddDate(0, 1, 0)},
		},
	)

	rec := ts.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = ts.do(t, http.MethodGet, "/api/transactions?start_date=2026-03-01&end_date=2026-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "t1", txs[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/transactions?start_date=03/01/2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid start_date format", errorMessage(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/transactions?start_date=2026-04-01&end_date=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceipts_List(t *testing.T) {
	ts := newTestServer(t)
	ts.receipts.ListFunc = func(_ context.Context, userID string, f receipts.Filter) ([]domain.Receipt, error) {
		assert.Equal(t, "u1", userID)
		assert.Equal(t, "coffee", f.Query)
		assert.Equal(t, 3, f.Limit)
		return []domain.Receipt{{ID: "r1", SignedURL: "https://example.com/r1"}}, nil
	}

	rec := ts.do(t, http.MethodGet, "/api/receipts?q=coffee&limit=3", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "https://example.com/r1")
}

func TestReceipts_UploadUnknownTransaction(t *testing.T) {
	ts := newTestServer(t)
	ts.receipts.UploadFunc = func(_ context.Context, _ string, u receipts.Upload) (*domain.Receipt, error) {
		assert.Equal(t, "tx-9", u.TransactionID)
		return nil, apperr.New(apperr.KindNotFound, "Transaction not found")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "receipt.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/tx-9/receipts", &buf)
	req.Header.Set("Authorization", "Bearer "+ts.token(t, "u1"))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Transaction not found", errorMessage(t, rec))
}

func TestRealtime_Stream(t *testing.T) {
	ts := newTestServer(t)
	ts.sub.SubscribeFunc = func(_ context.Context, userID string, tables []string) (<-chan realtime.Change, error) {
		assert.Equal(t, "u1", userID)
		assert.Equal(t, []string{realtime.TableBudgetCategories}, tables)
		ch := make(chan realtime.Change, 1)
		ch <- realtime.Change{Table: realtime.TableBudgetCategories, Op: realtime.OpUpdate, RecordID: "food", UserID: userID}
		close(ch)
		return ch, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/realtime?tables=budget_categories&access_token="+ts.token(t, "u1"), nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: change\n")
	assert.Contains(t, rec.Body.String(), `"record_id":"food"`)
}

func TestRealtime_Errors(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/realtime?tables=secrets", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.sub.SubscribeFunc = func(context.Context, string, []string) (<-chan realtime.Change, error) {
		t.Fatal("subscribed without tables")
		return nil, nil
	}
	for _, q := range []string{"tables=,", "tables=%20,%20,"} {
		rec = ts.do(t, http.MethodGet, "/api/realtime?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), "Invalid tables")
	}

	ts = newTestServer(t, withoutRealtime())
	rec = ts.do(t, http.MethodGet, "/api/realtime", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// Package handlers implements the HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/auth"
	"github.com/go-playground/validator/v10"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Documents *DocumentsHandler
	Jobs      *JobsHandler
	Budget    *BudgetHandler
	Chat      *ChatHandler
	Ledger    *LedgerHandler
	Receipts  *ReceiptsHandler
	Realtime  *RealtimeHandler
}

// NewRouter registers every route. Authentication is applied by the
// middleware chain, not here.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents/process", h.Documents.Process)
	mux.HandleFunc("POST /api/documents/query", h.Documents.Query)
	mux.HandleFunc("POST /api/documents", h.Documents.Upload)
	mux.HandleFunc("GET /api/documents", h.Documents.List)
	mux.HandleFunc("GET /api/documents/{id}", h.Documents.Get)
	mux.HandleFunc("DELETE /api/documents/{id}", h.Documents.Delete)
	mux.HandleFunc("POST /api/documents/{id}/reprocess", h.Documents.Reprocess)

	mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)

	mux.HandleFunc("GET /api/budget/categories", h.Budget.ListCategories)
	mux.HandleFunc("POST /api/budget/categories", h.Budget.CreateCategory)
	mux.HandleFunc("PUT /api/budget/categories/{id}", h.Budget.UpdateCategory)
	mux.HandleFunc("POST /api/budget/categories/{id}/allocate", h.Budget.Allocate)
	mux.HandleFunc("POST /api/budget/transfer", h.Budget.Transfer)

	mux.HandleFunc("POST /api/chat", h.Chat.Send)
	mux.HandleFunc("GET /api/chat/messages", h.Chat.History)

	mux.HandleFunc("GET /api/accounts", h.Ledger.ListAccounts)
	mux.HandleFunc("GET /api/transactions", h.Ledger.ListTransactions)

	mux.HandleFunc("POST /api/transactions/{id}/receipts", h.Receipts.Upload)
	mux.HandleFunc("GET /api/receipts", h.Receipts.List)

	mux.HandleFunc("GET /api/realtime", h.Realtime.Stream)

	mux.HandleFunc("GET /health", Health)

	return mux
}

// Health handles GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// userID returns the authenticated caller or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}

// decodeJSON decodes and validates a request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// uploadedFile is the "file" part of a multipart request.
type uploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// readFile reads the "file" form field. Parts larger than maxSize are read
// to maxSize+1 bytes so the caller's size check rejects them.
func readFile(w http.ResponseWriter, r *http.Request, maxSize int64) (*uploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Wrap(apperr.KindValidation, err, fmt.Sprintf("File exceeds the %dMB limit", maxSize>>20))
		}
		return nil, apperr.Wrap(apperr.KindValidation, err, "Invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "Failed to read file")
	}
	return &uploadedFile{
		Name:        header.Filename,
		ContentType: contentType(header, data),
		Data:        data,
	}, nil
}

func contentType(header *multipart.FileHeader, data []byte) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	ct, _, _ = strings.Cut(ct, ";")
	return strings.TrimSpace(ct)
}

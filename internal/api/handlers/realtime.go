package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
)

// heartbeatInterval keeps idle streams open through proxies.
const heartbeatInterval = 25 * time.Second

var streamTables = map[string]bool{
	realtime.TableBudgetCategories: true,
	realtime.TableDocuments:        true,
	realtime.TableReceipts:         true,
	realtime.TableMessages:         true,
}

// Subscriber streams a user's table changes.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string, tables []string) (<-chan realtime.Change, error)
}

// RealtimeHandler streams change notifications as Server-Sent Events.
type RealtimeHandler struct {
	sub       Subscriber
	heartbeat time.Duration
}

// NewRealtimeHandler creates the handler. sub may be nil when Redis is not
// configured; the stream endpoint then answers 503.
func NewRealtimeHandler(sub Subscriber) *RealtimeHandler {
	return &RealtimeHandler{sub: sub, heartbeat: heartbeatInterval}
}

// Stream handles GET /api/realtime?tables=a,b
func (h *RealtimeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	if h.sub == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Realtime updates are not configured")
		return
	}

	tables, err := parseTables(r.URL.Query().Get("tables"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid tables: "+err.Error())
		return
	}

	ctx := r.Context()
	changes, err := h.sub.Subscribe(ctx, user, tables)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to subscribe to changes")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to subscribe to changes")
		return
	}

	// Streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// parseTables splits a comma-separated table list. Empty means every table.
func parseTables(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{
			realtime.TableBudgetCategories,
			realtime.TableDocuments,
			realtime.TableReceipts,
			realtime.TableMessages,
		}, nil
	}
	var tables []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !streamTables[t] {
			return nil, fmt.Errorf("unknown table %q", t)
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, realtime.ErrNoTables
	}
	return tables, nil
}

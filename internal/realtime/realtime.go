// Package realtime broadcasts per-table change notifications to subscribed clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Table names used as notification channels.
const (
	TableBudgetCategories = "budget_categories"
	TableDocuments        = "documents"
	TableReceipts         = "receipts"
	TableMessages         = "messages"
)

// ErrNoTables is returned by Subscribe when no table is named.
var ErrNoTables = errors.New("no tables to subscribe to")

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change describes a row mutation visible to one user.
type Change struct {
	Table    string    `json:"table"`
	Op       Op        `json:"op"`
	RecordID string    `json:"record_id"`
	UserID   string    `json:"user_id"`
	At       time.Time `json:"at"`
}

// Notifier publishes changes.
type Notifier interface {
	Publish(ctx context.Context, change Change) error
}

// NopNotifier drops every change.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Change) error { return nil }

// Notify publishes change and logs a failure instead of returning it; a lost
// notification only delays a client reload.
func Notify(ctx context.Context, n Notifier, change Change) {
	if n == nil {
		return
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	if err := n.Publish(ctx, change); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).
			Str("table", change.Table).
			Str("record_id", change.RecordID).
			Msg("Failed to publish change notification")
	}
}

// Channel returns the pub/sub channel for a user's table.
func Channel(userID, table string) string {
	return fmt.Sprintf("changes:%s:%s", userID, table)
}

// RedisBroker publishes and subscribes through Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker creates a broker on an existing client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish implements Notifier.
func (b *RedisBroker) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(change.UserID, change.Table), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe streams the user's changes for tables until ctx is cancelled.
// The returned channel is closed when the subscription ends.
func (b *RedisBroker) Subscribe(ctx context.Context, userID string, tables []string) (<-chan Change, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, Channel(userID, t))
	}

	sub := b.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so errors surface to the caller.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()

		log := logger.FromContext(ctx)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed change")
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ Notifier = (*RedisBroker)(nil)

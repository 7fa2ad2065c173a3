package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/chat"
	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// MessageRepository implements chat.MessageRepository. Structured
// attachments are stored as JSONB.
type MessageRepository struct {
	db DB
}

func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) SaveMessage(ctx context.Context, m *domain.Message) error {
	action, err := jsonOrNil(m.Action)
	if err != nil {
		return fmt.Errorf("SaveMessage: encoding action: %w", err)
	}
	receiptsJSON, err := jsonOrNil(m.Receipts)
	if err != nil {
		return fmt.Errorf("SaveMessage: encoding receipts: %w", err)
	}
	insights, err := jsonOrNil(m.Insights)
	if err != nil {
		return fmt.Errorf("SaveMessage: encoding insights: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO chat_messages (id, user_id, role, content, action, receipts, insights, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.UserID, m.Role, m.Content, action, receiptsJSON, insights, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("SaveMessage: insert: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, role, content, action, receipts, insights, created_at
		FROM (
			SELECT *
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListMessages: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var action, receiptsJSON, insights []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &action, &receiptsJSON, &insights, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListMessages: scan: %w", err)
		}
		if err := decodeJSON(action, &m.Action); err != nil {
			return nil, fmt.Errorf("ListMessages: decoding action: %w", err)
		}
		if err := decodeJSON(receiptsJSON, &m.Receipts); err != nil {
			return nil, fmt.Errorf("ListMessages: decoding receipts: %w", err)
		}
		if err := decodeJSON(insights, &m.Insights); err != nil {
			return nil, fmt.Errorf("ListMessages: decoding insights: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListMessages: rows: %w", err)
	}
	return out, nil
}

func jsonOrNil[T any](v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

func decodeJSON(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

var _ chat.MessageRepository = (*MessageRepository)(nil)

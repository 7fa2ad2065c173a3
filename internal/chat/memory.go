package chat

import (
	"context"
	"sync"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// MemoryMessageRepository keeps messages in memory.
type MemoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string][]domain.Message)}
}

func (r *MemoryMessageRepository) SaveMessage(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.UserID] = append(r.messages[m.UserID], *m)
	return nil
}

func (r *MemoryMessageRepository) ListMessages(_ context.Context, userID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.messages[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.Message, len(all))
	copy(out, all)
	return out, nil
}

var _ MessageRepository = (*MemoryMessageRepository)(nil)

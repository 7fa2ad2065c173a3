package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/google/uuid"
)

const (
	MaxMessageLength   = 2000
	DefaultHistorySize = 50
	MaxHistorySize     = 200
)

// MessageRepository persists chat turns.
type MessageRepository interface {
	SaveMessage(ctx context.Context, m *domain.Message) error
	// ListMessages returns the user's latest limit messages in chronological order.
	ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error)
}

// Service records a conversation and answers each user turn.
type Service struct {
	interpreter *Interpreter
	messages    MessageRepository
	notifier    realtime.Notifier
}

// NewService creates a Service. notifier may be nil.
func NewService(interpreter *Interpreter, messages MessageRepository, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{interpreter: interpreter, messages: messages, notifier: notifier}
}

// Send stores the user's message, executes it and stores the reply.
func (s *Service) Send(ctx context.Context, userID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindValidation, "Message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("Message exceeds %d characters", MaxMessageLength))
	}

	userMsg := &domain.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, userMsg); err != nil {
		return nil, err
	}

	cmd := s.interpreter.Classify(text)

	ctx = logger.With(ctx, "intent", intentName(cmd))
	log := logger.FromContext(ctx)

	reply, err := s.interpreter.Execute(ctx, userID, cmd)
	if err != nil {
		log.Error().Err(err).Msg("Chat command failed")
		return nil, err
	}
	reply.ID = uuid.NewString()
	if !reply.CreatedAt.After(userMsg.CreatedAt) {
		reply.CreatedAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	if err := s.save(ctx, reply); err != nil {
		return nil, err
	}

	if reply.Action != nil {
		log.Info().Bool("success", reply.Action.Success).Msg("Chat command executed")
	}
	return reply, nil
}

// History returns the user's recent messages, oldest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistorySize
	case limit > MaxHistorySize:
		limit = MaxHistorySize
	}
	msgs, err := s.messages.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) save(ctx context.Context, m *domain.Message) error {
	if err := s.messages.SaveMessage(ctx, m); err != nil {
		return fmt.Errorf("save %s message: %w", m.Role, err)
	}
	realtime.Notify(ctx, s.notifier, realtime.Change{
		Table:    realtime.TableMessages,
		Op:       realtime.OpInsert,
		RecordID: m.ID,
		UserID:   m.UserID,
	})
	return nil
}

func intentName(cmd Command) string {
	if a := cmd.Action(); a != "" {
		return string(a)
	}
	return "fallback"
}

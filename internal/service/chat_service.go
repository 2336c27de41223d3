package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/liliang-cn/agriassist/internal/domain"
	"go.uber.org/zap"
)

const persistenceErrorMessage = "the conversation could not be saved"

// HistoryStore reads prior messages and the owner of a session
type HistoryStore interface {
	Owner(ctx context.Context, sessionID string) (string, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error)
}

// ChatService answers chat messages and records them
type ChatService struct {
	history  HistoryStore
	resolver *Resolver
	tracker  *Tracker
	log      *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(history HistoryStore, resolver *Resolver, tracker *Tracker, log *zap.Logger) *ChatService {
	return &ChatService{
		history:  history,
		resolver: resolver,
		tracker:  tracker,
		log:      log.Named("chat"),
	}
}

// Chat handles one chat message. Only malformed requests fail, including a
// session id owned by another user; every other outcome returns an answer,
// with Persisted reporting whether the turn was stored.
func (s *ChatService) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: user_id and message are required", domain.ErrInvalidRequest)
	}

	// Get or mint session
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if req.SessionID != "" {
		owner, err := s.history.Owner(ctx, sessionID)
		if err != nil {
			s.log.Warn("failed to load session owner", zap.String("session_id", sessionID), zap.Error(err))
		} else if owner != "" && owner != req.UserID {
			return nil, fmt.Errorf("%w: session belongs to another user", domain.ErrInvalidRequest)
		}
	}

	var history []*domain.Message
	if req.SessionID != "" && s.resolver.Window() > 0 {
		var err error
		history, err = s.history.RecentMessages(ctx, sessionID, s.resolver.Window())
		if err != nil {
			s.log.Warn("failed to load session history", zap.String("session_id", sessionID), zap.Error(err))
			history = nil
		}
	}

	res := s.resolver.Resolve(ctx, Query{
		Message:     req.Message,
		Language:    req.Language,
		UserContext: req.UserContext,
		History:     history,
	})

	resp := &domain.ChatResponse{
		SessionID: sessionID,
		Answer:    res.Answer,
		Source:    res.Source,
		Persisted: true,
	}

	err := s.tracker.RecordTurn(ctx, domain.Turn{
		UserID:           req.UserID,
		SessionID:        sessionID,
		Language:         req.Language,
		UserContext:      req.UserContext,
		UserMessage:      req.Message,
		AssistantMessage: res.Answer,
		Source:           res.Source,
	})
	if errors.Is(err, domain.ErrInvalidRequest) {
		return nil, err
	}
	if err != nil {
		resp.Persisted = false
		resp.PersistenceError = persistenceErrorMessage
	}

	s.log.Info("chat answered",
		zap.String("session_id", sessionID),
		zap.String("source", string(res.Source)),
		zap.Bool("persisted", resp.Persisted),
	)
	return resp, nil
}

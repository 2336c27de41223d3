package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"go.uber.org/zap"
)

// SessionStore persists conversation turns
type SessionStore interface {
	RecordTurn(ctx context.Context, turn domain.Turn, now time.Time) (bool, error)
}

// UsageStore maintains per-user usage counters
type UsageStore interface {
	RecordUsage(ctx context.Context, userID string, newSession bool, sample string, now time.Time, sampleLimit int) error
}

// TrackerOptions bounds the question samples kept per user
type TrackerOptions struct {
	SampleLength int
	SampleLimit  int
}

// Tracker records chat turns and usage statistics
type Tracker struct {
	sessions SessionStore
	usage    UsageStore
	opts     TrackerOptions
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewTracker creates a new tracker
func NewTracker(sessions SessionStore, usage UsageStore, opts TrackerOptions, m *metrics.Metrics, log *zap.Logger) *Tracker {
	return &Tracker{
		sessions: sessions,
		usage:    usage,
		opts:     opts,
		metrics:  m,
		log:      log.Named("tracker"),
		now:      time.Now,
	}
}

// RecordTurn appends the turn to its session, then updates usage stats.
// Usage failures are logged and dropped; a session failure is returned.
// A turn rejected as invalid leaves usage untouched.
func (t *Tracker) RecordTurn(ctx context.Context, turn domain.Turn) error {
	now := t.now()

	isNew, sessionErr := t.sessions.RecordTurn(ctx, turn, now)
	if errors.Is(sessionErr, domain.ErrInvalidRequest) {
		return fmt.Errorf("record turn: %w", sessionErr)
	}
	if sessionErr != nil {
		t.metrics.PersistenceFailure("session")
		t.log.Error("failed to persist chat turn",
			zap.String("session_id", turn.SessionID),
			zap.String("user_id", turn.UserID),
			zap.Error(sessionErr),
		)
		// Without a stored session there is no way to tell whether it is
		// new, so the message is counted and the session is not.
		isNew = false
	}

	sample := TruncateSample(turn.UserMessage, t.opts.SampleLength)
	if err := t.usage.RecordUsage(ctx, turn.UserID, isNew, sample, now, t.opts.SampleLimit); err != nil {
		t.metrics.PersistenceFailure("usage")
		t.log.Warn("failed to update usage stats",
			zap.String("user_id", turn.UserID),
			zap.Error(err),
		)
	}

	if sessionErr != nil {
		return fmt.Errorf("record turn: %w", sessionErr)
	}
	return nil
}

// TruncateSample trims s and keeps at most n runes
func TruncateSample(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

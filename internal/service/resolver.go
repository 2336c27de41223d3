package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/llm"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"go.uber.org/zap"
)

// Canned answers for the terminal states of the resolver
const (
	NoAnswerMessage = "I don't have information about that yet. Please try rephrasing your question."
	ErrorMessage    = "Sorry, something went wrong while answering. Please try again in a moment."
)

// Tier is one ordered stage of the response chain
type Tier struct {
	Name   string
	Source domain.Source
	Answer func(ctx context.Context, req llm.Request) (string, error)
}

// Query is the input of one resolution
type Query struct {
	Message     string
	Language    string
	UserContext string
	History     []*domain.Message
}

// Resolution is the answer and the tier that produced it
type Resolution struct {
	Answer string
	Source domain.Source
	Tier   string
}

// Resolver tries its tiers in order and returns the first answer
type Resolver struct {
	tiers   []Tier
	window  int
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewResolver creates a resolver over tiers. window bounds how many prior
// messages are passed to the models.
func NewResolver(tiers []Tier, window int, m *metrics.Metrics, log *zap.Logger) *Resolver {
	return &Resolver{
		tiers:   tiers,
		window:  window,
		metrics: m,
		log:     log.Named("resolver"),
	}
}

// Window returns the number of prior messages used as context
func (r *Resolver) Window() int {
	return r.window
}

// Resolve never fails: exhausting every tier or a panic in any of them
// yields the apology with SourceError.
func (r *Resolver) Resolve(ctx context.Context, q Query) (res Resolution) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("resolver panic",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			res = Resolution{Answer: ErrorMessage, Source: domain.SourceError}
		}
		r.metrics.ChatResponse(string(res.Source))
	}()

	req := llm.Request{
		Message:     q.Message,
		Context:     llm.BuildContext(q.History, r.window),
		Language:    q.Language,
		UserContext: q.UserContext,
	}

	for _, tier := range r.tiers {
		answer, err := tier.Answer(ctx, req)
		if err == nil {
			return Resolution{Answer: answer, Source: tier.Source, Tier: tier.Name}
		}

		r.metrics.TierFailure(tier.Name)
		if errors.Is(err, domain.ErrTierUnavailable) {
			r.log.Debug("tier not configured", zap.String("tier", tier.Name))
		} else {
			r.log.Warn("tier failed, escalating", zap.String("tier", tier.Name), zap.Error(err))
		}
	}

	r.log.Error("all tiers failed")
	return Resolution{Answer: ErrorMessage, Source: domain.SourceError}
}

// RemoteGenerator is a hosted model
type RemoteGenerator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// LocalGenerator is a model that must pass a liveness probe before use
type LocalGenerator interface {
	Probe(ctx context.Context) error
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// KnowledgeLookup finds the best static answer for a question
type KnowledgeLookup interface {
	Lookup(ctx context.Context, query string) (*domain.KnowledgeEntry, error)
}

// RemoteTier answers with the hosted model. A nil model is reported as unavailable.
func RemoteTier(m RemoteGenerator) Tier {
	return Tier{
		Name:   "remote",
		Source: domain.SourceOnline,
		Answer: func(ctx context.Context, req llm.Request) (string, error) {
			if m == nil {
				return "", domain.ErrTierUnavailable
			}
			return m.Generate(ctx, req)
		},
	}
}

// LocalTier probes the local model and answers with it when alive
func LocalTier(m LocalGenerator) Tier {
	return Tier{
		Name:   "local",
		Source: domain.SourceOffline,
		Answer: func(ctx context.Context, req llm.Request) (string, error) {
			if m == nil {
				return "", domain.ErrTierUnavailable
			}
			if err := m.Probe(ctx); err != nil {
				return "", err
			}
			return m.Generate(ctx, req)
		},
	}
}

// KnowledgeTier answers from the static knowledge base. A miss is still an
// answer: the generic rephrase hint.
func KnowledgeTier(kb KnowledgeLookup) Tier {
	return Tier{
		Name:   "knowledge",
		Source: domain.SourceFallback,
		Answer: func(ctx context.Context, req llm.Request) (string, error) {
			if kb == nil {
				return NoAnswerMessage, nil
			}
			entry, err := kb.Lookup(ctx, req.Message)
			if errors.Is(err, domain.ErrNoKnowledgeMatch) {
				return NoAnswerMessage, nil
			}
			if err != nil {
				return "", fmt.Errorf("knowledge lookup: %w", err)
			}
			return entry.Answer, nil
		},
	}
}

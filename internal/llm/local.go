package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
	ragodomain "github.com/liliang-cn/rago/v2/pkg/domain"
	"github.com/liliang-cn/rago/v2/pkg/providers"
)

// LocalConfig configures the local OpenAI-compatible model
type LocalConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	ProbeTimeout time.Duration
	Timeout      time.Duration
}

// Provider is the part of a rago LLM provider the local model uses
type Provider interface {
	Health(ctx context.Context) error
	Generate(ctx context.Context, prompt string, opts *ragodomain.GenerationOptions) (string, error)
}

// LocalModel generates answers with a model served on the local network
type LocalModel struct {
	provider     Provider
	temperature  float64
	probeTimeout time.Duration
	timeout      time.Duration
}

// NewLocalModel creates a local model backed by a rago OpenAI-compatible provider
func NewLocalModel(ctx context.Context, cfg LocalConfig) (*LocalModel, error) {
	factory := providers.NewFactory()

	provider, err := factory.CreateLLMProvider(ctx, &ragodomain.OpenAIProviderConfig{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		LLMModel: cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local LLM provider: %w", err)
	}

	return NewLocalModelWithProvider(provider, cfg), nil
}

// NewLocalModelWithProvider wraps an existing provider
func NewLocalModelWithProvider(p Provider, cfg LocalConfig) *LocalModel {
	return &LocalModel{
		provider:     p,
		temperature:  cfg.Temperature,
		probeTimeout: cfg.ProbeTimeout,
		timeout:      cfg.Timeout,
	}
}

// Probe checks liveness within the probe timeout
func (m *LocalModel) Probe(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := m.provider.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalModelUnavailable, err)
	}
	return nil
}

// Generate asks the model for one answer within the generation timeout
func (m *LocalModel) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	text, err := m.provider.Generate(ctx, flatPrompt(req), &ragodomain.GenerationOptions{
		Temperature: m.temperature,
		MaxTokens:   512,
	})
	if err != nil {
		return "", fmt.Errorf("local generate: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("local model returned an empty answer")
	}
	return text, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

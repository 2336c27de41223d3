package service

import (
	"context"
	"sync"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/llm"
)

type remoteStub struct {
	mu       sync.Mutex
	answer   string
	err      error
	panicMsg string
	requests []llm.Request
}

func (s *remoteStub) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.answer, s.err
}

func (s *remoteStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type localStub struct {
	mu         sync.Mutex
	probeErr   error
	answer     string
	genErr     error
	probeCalls int
	genCalls   int
}

func (s *localStub) Probe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCalls++
	return s.probeErr
}

func (s *localStub) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genCalls++
	return s.answer, s.genErr
}

func (s *localStub) Calls() (probe, generate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeCalls, s.genCalls
}

type knowledgeStub struct {
	mu      sync.Mutex
	entry   *domain.KnowledgeEntry
	err     error
	queries []string
}

func (s *knowledgeStub) Lookup(ctx context.Context, query string) (*domain.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.entry, s.err
}

func (s *knowledgeStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type usageCall struct {
	userID     string
	newSession bool
	sample     string
	limit      int
}

type sessionStoreStub struct {
	mu    sync.Mutex
	isNew bool
	err   error
	turns []domain.Turn
}

func (s *sessionStoreStub) RecordTurn(ctx context.Context, turn domain.Turn, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return s.isNew, s.err
}

type usageStoreStub struct {
	mu    sync.Mutex
	err   error
	calls []usageCall
}

func (s *usageStoreStub) RecordUsage(ctx context.Context, userID string, newSession bool, sample string, now time.Time, sampleLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, usageCall{userID: userID, newSession: newSession, sample: sample, limit: sampleLimit})
	return s.err
}

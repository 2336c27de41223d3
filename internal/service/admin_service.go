package service

import (
	"context"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/repository"
)

// AdminService handles read-side and maintenance operations
type AdminService struct {
	sessionRepo   *repository.SessionRepository
	usageRepo     *repository.UsageRepository
	knowledgeRepo *repository.KnowledgeRepository
}

// NewAdminService creates a new admin service
func NewAdminService(
	sessionRepo *repository.SessionRepository,
	usageRepo *repository.UsageRepository,
	knowledgeRepo *repository.KnowledgeRepository,
) *AdminService {
	return &AdminService{
		sessionRepo:   sessionRepo,
		usageRepo:     usageRepo,
		knowledgeRepo: knowledgeRepo,
	}
}

// Session operations

func (s *AdminService) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.sessionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

func (s *AdminService) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	return sessions, nil
}

// Usage operations

func (s *AdminService) GetUsageStats(ctx context.Context, userID string) (*domain.UsageStats, error) {
	stats, err := s.usageRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, domain.ErrNotFound
	}
	return stats, nil
}

// Knowledge base operations

func (s *AdminService) ImportKnowledge(ctx context.Context, entries []domain.KnowledgeEntry) (int, error) {
	return s.knowledgeRepo.Import(ctx, entries)
}

func (s *AdminService) SearchKnowledge(ctx context.Context, query string) (*domain.KnowledgeEntry, error) {
	return s.knowledgeRepo.Lookup(ctx, query)
}

// SeedKnowledge imports entries only when the knowledge base is empty
func (s *AdminService) SeedKnowledge(ctx context.Context, entries []domain.KnowledgeEntry) (int, error) {
	n, err := s.knowledgeRepo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	return s.knowledgeRepo.Import(ctx, entries)
}

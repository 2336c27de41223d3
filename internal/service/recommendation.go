package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/liliang-cn/agriassist/internal/catalog"
	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"go.uber.org/zap"
)

// MaxRecommendations caps the recommendation list
const MaxRecommendations = 3

const heatThresholdC = 35.0

// RuleEngine maps a risk assessment to ranked plan recommendations.
// It is pure: the same assessment always yields the same list.
type RuleEngine struct {
	catalog catalog.Catalog
}

// NewRuleEngine creates a rule engine over the given plan catalog
func NewRuleEngine(c catalog.Catalog) *RuleEngine {
	return &RuleEngine{catalog: c}
}

// Recommend evaluates the rules in order and returns at most three
// recommendations sorted by priority, unique by name.
//
// Livestock cover is only suggested when the crop rule did not fire. Crop
// cover already answers the flood and drought hazards that raise the overall
// weather risk, so a high flood or drought reading yields crop cover without
// livestock cover even when heat is also elevated. Drought HIGH with heat
// MEDIUM therefore gives crop then life, not crop, livestock and life.
func (e *RuleEngine) Recommend(a *domain.RiskAssessment) []domain.Recommendation {
	w := a.Weather
	var recs []domain.Recommendation
	add := func(key string, priority int, reason string) {
		plan, ok := e.catalog.Get(key)
		if !ok {
			return
		}
		recs = append(recs, toRecommendation(plan, priority, reason))
	}

	cropFired := false
	switch {
	case w.FloodRisk == domain.RiskHigh:
		add(catalog.PlanCrop, 1, fmt.Sprintf("High flood risk: %.1f mm of rain can wash out standing crops.", w.RainfallMm))
		cropFired = true
	case w.DroughtRisk == domain.RiskHigh:
		add(catalog.PlanCrop, 1, fmt.Sprintf("High drought risk: only %.1f mm of rain and dry air can ruin the harvest.", w.RainfallMm))
		cropFired = true
	}

	if a.Disaster.DisasterRisk == domain.RiskHigh {
		add(catalog.PlanAccident, 1, fmt.Sprintf("High disaster risk: %d disaster events were reported recently.", a.Disaster.RecentEventCount))
	}

	if w.TemperatureC > heatThresholdC || w.HeatRisk == domain.RiskHigh {
		add(catalog.PlanHealth, 2, fmt.Sprintf("Heat risk: temperatures around %.1f°C can cause heat illness.", w.TemperatureC))
	}

	if a.Soil.FertilityRisk == domain.RiskHigh || a.Soil.SoilHealth == domain.SoilPoor {
		add(catalog.PlanWeather, 2, "Weak soil makes yields sensitive to weather, so index-based cover pays out without field inspection.")
	}

	if overall := w.OverallWeatherRisk(); !cropFired && overall != domain.RiskLow {
		add(catalog.PlanLivestock, 3, fmt.Sprintf("%s weather risk can harm animals and fodder supply.", overall))
	}

	if len(recs) < MaxRecommendations {
		add(catalog.PlanLife, 3, "Basic life cover protects every family at a very low premium.")
	}

	return rank(recs)
}

// rank sorts by priority keeping rule order among ties, drops repeated names and truncates
func rank(recs []domain.Recommendation) []domain.Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority < recs[j].Priority
	})

	seen := make(map[string]bool, len(recs))
	out := make([]domain.Recommendation, 0, MaxRecommendations)
	for _, r := range recs {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		out = append(out, r)
		if len(out) == MaxRecommendations {
			break
		}
	}
	return out
}

func toRecommendation(p domain.Plan, priority int, reason string) domain.Recommendation {
	return domain.Recommendation{
		PlanID:             p.Key,
		Name:               p.Name,
		Type:               p.Type,
		Category:           p.Category,
		Covers:             p.Covers,
		PremiumDescription: p.Premium,
		Benefits:           p.Benefits,
		GovernmentSupport:  p.GovernmentSupport,
		Reason:             reason,
		Priority:           priority,
	}
}

// Assessor produces a risk assessment for a location
type Assessor interface {
	Assess(ctx context.Context, loc domain.Location) (*domain.RiskAssessment, error)
}

// RecommendationService combines the risk gateway with the rule engine
type RecommendationService struct {
	assessor  Assessor
	recommend func(*domain.RiskAssessment) []domain.Recommendation
	catalog   catalog.Catalog
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(assessor Assessor, c catalog.Catalog, m *metrics.Metrics, log *zap.Logger) *RecommendationService {
	return &RecommendationService{
		assessor:  assessor,
		recommend: NewRuleEngine(c).Recommend,
		catalog:   c,
		metrics:   m,
		log:       log.Named("recommendation"),
	}
}

// Recommend assesses loc and returns ranked recommendations. When no real
// risk data could be obtained, or rule evaluation fails, the result holds
// the single generic crop plan and has Error set. Only invalid coordinates
// return an error.
func (s *RecommendationService) Recommend(ctx context.Context, loc domain.Location) (*domain.RecommendationResult, error) {
	assessment, err := s.assessor.Assess(ctx, loc)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return nil, err
		}
		s.log.Error("risk assessment failed", zap.Error(err))
		return s.fallback(nil, "risk assessment failed"), nil
	}

	if assessment == nil {
		return s.fallback(nil, "risk assessment failed"), nil
	}

	if assessment.AllDegraded() {
		s.log.Warn("all risk sources degraded",
			zap.String("weather_error", assessment.Weather.Error),
			zap.String("disaster_error", assessment.Disaster.Error),
			zap.String("district", loc.District),
		)
		return s.fallback(assessment, "risk data unavailable"), nil
	}

	recs, err := s.evaluate(assessment)
	if err != nil {
		s.log.Error("rule evaluation failed", zap.Error(err))
		return s.fallback(assessment, "recommendation failed"), nil
	}

	return &domain.RecommendationResult{
		Recommendations: recs,
		Assessment:      assessment,
	}, nil
}

func (s *RecommendationService) evaluate(a *domain.RiskAssessment) (recs []domain.Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule engine panic: %v", r)
		}
	}()
	recs = s.recommend(a)
	if len(recs) == 0 {
		return nil, errors.New("no recommendation produced")
	}
	return recs, nil
}

func (s *RecommendationService) fallback(a *domain.RiskAssessment, msg string) *domain.RecommendationResult {
	s.metrics.RecommendationFallback()

	var recs []domain.Recommendation
	if plan, ok := s.catalog.Get(catalog.PlanCrop); ok {
		recs = append(recs, toRecommendation(plan, 1,
			"We could not check local risks right now. Crop insurance is the safest basic protection for a farm."))
	}

	return &domain.RecommendationResult{
		Recommendations: recs,
		Assessment:      a,
		Error:           true,
		ErrorMessage:    msg,
	}
}

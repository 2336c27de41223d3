// Package risk turns the weather, disaster and soil sources into classified
// risk levels. Every source degrades to a documented fallback instead of
// failing the assessment.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const disasterCacheKey = "risk:disaster"

// WeatherSource fetches classified weather for a coordinate
type WeatherSource interface {
	Fetch(ctx context.Context, lat, lon float64) (domain.WeatherRisk, error)
}

// DisasterSource fetches the classified global disaster frequency
type DisasterSource interface {
	Fetch(ctx context.Context) (domain.DisasterRisk, error)
}

// SoilSource classifies soil by district
type SoilSource interface {
	Lookup(district string) domain.SoilRisk
}

// GatewayOptions configures optional gateway collaborators
type GatewayOptions struct {
	Cache       Cache
	WeatherTTL  time.Duration
	DisasterTTL time.Duration
	Metrics     *metrics.Metrics
}

// Gateway fans out to the three risk sources and joins their results
type Gateway struct {
	weather  WeatherSource
	disaster DisasterSource
	soil     SoilSource
	opts     GatewayOptions
	log      *zap.Logger
}

// NewGateway creates a new risk signal gateway
func NewGateway(weather WeatherSource, disaster DisasterSource, soil SoilSource, opts GatewayOptions, log *zap.Logger) *Gateway {
	return &Gateway{
		weather:  weather,
		disaster: disaster,
		soil:     soil,
		opts:     opts,
		log:      log.Named("risk.gateway"),
	}
}

// Assess computes a RiskAssessment for loc. The three sources are queried
// concurrently. An error is returned only for invalid coordinates or when
// the caller's context ends; source failures degrade to fallbacks.
func (g *Gateway) Assess(ctx context.Context, loc domain.Location) (*domain.RiskAssessment, error) {
	if err := validateLocation(loc); err != nil {
		return nil, err
	}

	var a domain.RiskAssessment
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		a.Weather = g.fetchWeather(egCtx, loc.Lat, loc.Lon)
		return nil
	})
	eg.Go(func() error {
		a.Disaster = g.fetchDisaster(egCtx)
		return nil
	})
	eg.Go(func() error {
		a.Soil = g.soil.Lookup(loc.District)
		return nil
	})

	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("risk assessment aborted: %w", err)
	}
	return &a, nil
}

func (g *Gateway) fetchWeather(ctx context.Context, lat, lon float64) domain.WeatherRisk {
	key := fmt.Sprintf("risk:weather:%.2f:%.2f", lat, lon)

	var cached domain.WeatherRisk
	if g.cacheGet(ctx, key, &cached) {
		return cached
	}

	w, err := g.weather.Fetch(ctx, lat, lon)
	if err != nil || w.Degraded {
		g.log.Warn("weather source unavailable, using fallback",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err),
		)
		g.opts.Metrics.RiskFallback("weather")
		if !w.Degraded {
			w = FallbackWeather(err)
		}
		return w
	}

	g.cacheSet(ctx, key, w, g.opts.WeatherTTL)
	return w
}

func (g *Gateway) fetchDisaster(ctx context.Context) domain.DisasterRisk {
	var cached domain.DisasterRisk
	if g.cacheGet(ctx, disasterCacheKey, &cached) {
		return cached
	}

	d, err := g.disaster.Fetch(ctx)
	if err != nil || d.Degraded {
		g.log.Warn("disaster feed unavailable, using fallback", zap.Error(err))
		g.opts.Metrics.RiskFallback("disaster")
		if !d.Degraded {
			d = FallbackDisaster(err)
		}
		return d
	}

	g.cacheSet(ctx, disasterCacheKey, d, g.opts.DisasterTTL)
	return d
}

func (g *Gateway) cacheGet(ctx context.Context, key string, dest any) bool {
	if g.opts.Cache == nil {
		return false
	}
	err := g.opts.Cache.GetJSON(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		g.log.Warn("risk cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (g *Gateway) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if g.opts.Cache == nil || ttl <= 0 {
		return
	}
	if err := g.opts.Cache.SetJSON(ctx, key, value, ttl); err != nil {
		g.log.Warn("risk cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func validateLocation(loc domain.Location) error {
	if math.IsNaN(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", domain.ErrInvalidRequest, loc.Lat)
	}
	if math.IsNaN(loc.Lon) || loc.Lon < -180 || loc.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", domain.ErrInvalidRequest, loc.Lon)
	}
	return nil
}

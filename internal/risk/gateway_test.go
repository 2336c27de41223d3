package risk

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type weatherStub struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	result  domain.WeatherRisk
	err     error
}

func (s *weatherStub) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherRisk, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return FallbackWeather(ctx.Err()), ctx.Err()
		}
	}
	return s.result, s.err
}

func (s *weatherStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type disasterStub struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	result  domain.DisasterRisk
	err     error
}

func (s *disasterStub) Fetch(ctx context.Context) (domain.DisasterRisk, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return FallbackDisaster(ctx.Err()), ctx.Err()
		}
	}
	return s.result, s.err
}

func (s *disasterStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type soilStub struct{ risk domain.SoilRisk }

func (s soilStub) Lookup(district string) domain.SoilRisk {
	r := s.risk
	r.District = district
	return r
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]any
	fail    bool
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: map[string]any{}} }

func (c *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("redis down")
	}
	v, ok := c.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	switch d := dest.(type) {
	case *domain.WeatherRisk:
		*d = v.(domain.WeatherRisk)
	case *domain.DisasterRisk:
		*d = v.(domain.DisasterRisk)
	}
	return nil
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("redis down")
	}
	c.entries[key] = value
	return nil
}

func knownSoil() soilStub {
	return soilStub{risk: domain.SoilRisk{FertilityRisk: domain.RiskLow, SoilHealth: domain.SoilGood, Known: true}}
}

func TestAssessJoinsAllSources(t *testing.T) {
	weather := &weatherStub{result: ClassifyWeather(25, 28, 60)}
	disaster := &disasterStub{result: ClassifyDisasters(2)}

	g := NewGateway(weather, disaster, knownSoil(), GatewayOptions{}, zap.NewNop())
	a, err := g.Assess(context.Background(), domain.Location{Lat: 20, Lon: 78, District: "Nagpur"})
	require.NoError(t, err)

	assert.Equal(t, domain.RiskHigh, a.Weather.FloodRisk)
	assert.Equal(t, domain.RiskLow, a.Disaster.DisasterRisk)
	assert.Equal(t, "Nagpur", a.Soil.District)
	assert.False(t, a.AllDegraded())
}

func TestAssessFetchesConcurrently(t *testing.T) {
	weatherStarted := make(chan struct{})
	disasterStarted := make(chan struct{})
	release := make(chan struct{})

	weather := &weatherStub{started: weatherStarted, release: release, result: ClassifyWeather(0, 25, 60)}
	disaster := &disasterStub{started: disasterStarted, release: release, result: ClassifyDisasters(0)}
	g := NewGateway(weather, disaster, knownSoil(), GatewayOptions{}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := g.Assess(context.Background(), domain.Location{Lat: 1, Lon: 1})
		done <- err
	}()

	// Both sources must be in flight at the same time before either is released.
	for _, ch := range []chan struct{}{weatherStarted, disasterStarted} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("risk sources were not fetched concurrently")
		}
	}
	close(release)
	require.NoError(t, <-done)
}

func TestAssessDegradesPerSource(t *testing.T) {
	weather := &weatherStub{result: FallbackWeather(errors.New("down")), err: errors.New("down")}
	disaster := &disasterStub{result: ClassifyDisasters(12)}
	m := metrics.New()

	g := NewGateway(weather, disaster, knownSoil(), GatewayOptions{Metrics: m}, zap.NewNop())
	a, err := g.Assess(context.Background(), domain.Location{Lat: 1, Lon: 1})
	require.NoError(t, err)

	assert.True(t, a.Weather.Degraded)
	assert.Equal(t, domain.RiskMedium, a.Weather.FloodRisk)
	assert.False(t, a.Disaster.Degraded)
	assert.Equal(t, domain.RiskHigh, a.Disaster.DisasterRisk)
	assert.False(t, a.AllDegraded())
}

func TestAssessAllDegraded(t *testing.T) {
	weather := &weatherStub{result: FallbackWeather(errors.New("down")), err: errors.New("down")}
	disaster := &disasterStub{result: FallbackDisaster(errors.New("down")), err: errors.New("down")}

	g := NewGateway(weather, disaster, soilStub{risk: domain.SoilRisk{FertilityRisk: domain.RiskMedium}}, GatewayOptions{}, zap.NewNop())
	a, err := g.Assess(context.Background(), domain.Location{Lat: 1, Lon: 1, District: "Nowhere"})
	require.NoError(t, err)
	assert.True(t, a.AllDegraded())
}

func TestAssessInvalidLocation(t *testing.T) {
	weather := &weatherStub{}
	disaster := &disasterStub{}
	g := NewGateway(weather, disaster, knownSoil(), GatewayOptions{}, zap.NewNop())

	_, err := g.Assess(context.Background(), domain.Location{Lat: 91, Lon: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = g.Assess(context.Background(), domain.Location{Lat: 0, Lon: -181})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	for _, loc := range []domain.Location{
		{Lat: math.NaN(), Lon: 0},
		{Lat: 0, Lon: math.NaN()},
		{Lat: math.Inf(1), Lon: 0},
		{Lat: 0, Lon: math.Inf(-1)},
	} {
		_, err = g.Assess(context.Background(), loc)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	}

	assert.Zero(t, weather.Calls())
	assert.Zero(t, disaster.Calls())
}

func TestAssessCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	weather := &weatherStub{release: make(chan struct{})}
	disaster := &disasterStub{release: make(chan struct{})}
	g := NewGateway(weather, disaster, knownSoil(), GatewayOptions{}, zap.NewNop())

	_, err := g.Assess(ctx, domain.Location{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssessUsesCache(t *testing.T) {
	cache := newMemoryCache()
	weather := &weatherStub{result: ClassifyWeather(6, 31, 50)}
	disaster := &disasterStub{result: ClassifyDisasters(5)}
	opts := GatewayOptions{Cache: cache, WeatherTTL: time.Minute, DisasterTTL: time.Minute}

	g := NewGateway(weather, disaster, knownSoil(), opts, zap.NewNop())
	loc := domain.Location{Lat: 12.3456, Lon: 77.6543}

	first, err := g.Assess(context.Background(), loc)
	require.NoError(t, err)
	second, err := g.Assess(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, first.Weather, second.Weather)
	assert.Equal(t, first.Disaster, second.Disaster)
	assert.Equal(t, 1, weather.Calls())
	assert.Equal(t, 1, disaster.Calls())
}

func TestAssessDoesNotCacheFallbacks(t *testing.T) {
	cache := newMemoryCache()
	weather := &weatherStub{result: FallbackWeather(errors.New("down")), err: errors.New("down")}
	disaster := &disasterStub{result: FallbackDisaster(errors.New("down")), err: errors.New("down")}
	opts := GatewayOptions{Cache: cache, WeatherTTL: time.Minute, DisasterTTL: time.Minute}

	g := NewGateway(weather, disaster, knownSoil(), opts, zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := g.Assess(context.Background(), domain.Location{Lat: 1, Lon: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, weather.Calls())
	assert.Equal(t, 2, disaster.Calls())
	assert.Empty(t, cache.entries)
}

func TestAssessIgnoresCacheFailures(t *testing.T) {
	cache := newMemoryCache()
	cache.fail = true
	weather := &weatherStub{result: ClassifyWeather(0, 20, 50)}
	disaster := &disasterStub{result: ClassifyDisasters(0)}
	opts := GatewayOptions{Cache: cache, WeatherTTL: time.Minute, DisasterTTL: time.Minute}

	g := NewGateway(weather, disaster, knownSoil(), opts, zap.NewNop())
	a, err := g.Assess(context.Background(), domain.Location{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.False(t, a.Weather.Degraded)
}

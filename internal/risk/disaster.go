package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
)

// DisasterClient counts recent events from a global disaster feed
type DisasterClient struct {
	feedURL    string
	limit      int
	timeout    time.Duration
	httpClient *http.Client
}

// NewDisasterClient creates a new disaster feed client. A nil httpClient uses http.DefaultClient.
func NewDisasterClient(feedURL string, limit int, timeout time.Duration, httpClient *http.Client) *DisasterClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DisasterClient{
		feedURL:    feedURL,
		limit:      limit,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type disasterFeed struct {
	Data []json.RawMessage `json:"data"`
}

// Fetch returns the classified disaster frequency, or the conservative fallback on any failure
func (c *DisasterClient) Fetch(ctx context.Context) (domain.DisasterRisk, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.feedURL)
	if err != nil {
		return FallbackDisaster(err), err
	}
	if c.limit > 0 {
		q := u.Query()
		q.Set("limit", strconv.Itoa(c.limit))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FallbackDisaster(err), err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FallbackDisaster(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("disaster feed returned status %d", resp.StatusCode)
		return FallbackDisaster(err), err
	}

	var feed disasterFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		err = fmt.Errorf("failed to decode disaster feed: %w", err)
		return FallbackDisaster(err), err
	}

	return ClassifyDisasters(len(feed.Data)), nil
}

// ClassifyDisasters maps a recent event count to a risk level
func ClassifyDisasters(count int) domain.DisasterRisk {
	level := domain.RiskLow
	switch {
	case count > 10:
		level = domain.RiskHigh
	case count > 3:
		level = domain.RiskMedium
	}
	return domain.DisasterRisk{DisasterRisk: level, RecentEventCount: count}
}

// FallbackDisaster is returned when the feed fails. MEDIUM, not LOW: an
// unknown disaster picture is not a safe one.
func FallbackDisaster(cause error) domain.DisasterRisk {
	d := domain.DisasterRisk{
		DisasterRisk:     domain.RiskMedium,
		RecentEventCount: 0,
		Degraded:         true,
	}
	if cause != nil {
		d.Error = cause.Error()
	}
	return d
}

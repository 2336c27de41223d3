package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
)

// Fallback weather values used when the weather source is unavailable
const (
	fallbackRainfallMm   = 2.5
	fallbackTemperatureC = 28.0
	fallbackHumidity     = 65.0
)

// WeatherClient fetches current conditions from an Open-Meteo compatible API
type WeatherClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewWeatherClient creates a new weather client. A nil httpClient uses http.DefaultClient.
func NewWeatherClient(baseURL string, timeout time.Duration, httpClient *http.Client) *WeatherClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WeatherClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type currentConditions struct {
	Temperature float64 `json:"temperature_2m"`
	Humidity    float64 `json:"relative_humidity_2m"`
	WindSpeed   float64 `json:"wind_speed_10m"`
	WeatherCode int     `json:"weather_code"`
}

type forecastResponse struct {
	Current *currentConditions `json:"current"`
	Hourly struct {
		Rain []float64 `json:"rain"`
	} `json:"hourly"`
}

// Fetch returns the classified weather at (lat, lon), or the fixed fallback record on any failure
func (c *WeatherClient) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherRisk, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	q.Set("hourly", "rain")
	q.Set("forecast_days", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return FallbackWeather(err), err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FallbackWeather(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("weather source returned status %d", resp.StatusCode)
		return FallbackWeather(err), err
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		err = fmt.Errorf("failed to decode weather response: %w", err)
		return FallbackWeather(err), err
	}

	if body.Current == nil || len(body.Hourly.Rain) == 0 {
		err := errors.New("failed to decode weather response: missing current conditions or hourly rain")
		return FallbackWeather(err), err
	}

	cur := body.Current
	w := ClassifyWeather(body.Hourly.Rain[0], cur.Temperature, cur.Humidity)
	w.WindSpeed = cur.WindSpeed
	w.WeatherCode = cur.WeatherCode
	w.Condition = ConditionForCode(cur.WeatherCode)
	return w, nil
}

// ClassifyWeather applies the fixed flood, drought and heat thresholds.
// All comparisons are strict.
func ClassifyWeather(rainfallMm, temperatureC, humidity float64) domain.WeatherRisk {
	w := domain.WeatherRisk{
		RainfallMm:   rainfallMm,
		TemperatureC: temperatureC,
		Humidity:     humidity,
		FloodRisk:    domain.RiskLow,
		DroughtRisk:  domain.RiskLow,
		HeatRisk:     domain.RiskLow,
		Condition:    domain.ConditionClear,
	}

	switch {
	case rainfallMm > 20:
		w.FloodRisk = domain.RiskHigh
	case rainfallMm > 5:
		w.FloodRisk = domain.RiskMedium
	}

	switch {
	case rainfallMm < 1 && humidity < 30:
		w.DroughtRisk = domain.RiskHigh
	case rainfallMm < 3:
		w.DroughtRisk = domain.RiskMedium
	}

	switch {
	case temperatureC > 35:
		w.HeatRisk = domain.RiskHigh
	case temperatureC > 30:
		w.HeatRisk = domain.RiskMedium
	}

	return w
}

// ConditionForCode maps a WMO weather code onto clear, rain, snow or showers
func ConditionForCode(code int) string {
	switch {
	case code >= 51 && code <= 67:
		return domain.ConditionRain
	case code >= 71 && code <= 77:
		return domain.ConditionSnow
	case code >= 80 && code <= 86:
		return domain.ConditionShowers
	case code >= 95:
		return domain.ConditionRain
	default:
		return domain.ConditionClear
	}
}

// FallbackWeather is the fixed record returned when the weather source fails
func FallbackWeather(cause error) domain.WeatherRisk {
	w := domain.WeatherRisk{
		RainfallMm:   fallbackRainfallMm,
		TemperatureC: fallbackTemperatureC,
		Humidity:     fallbackHumidity,
		FloodRisk:    domain.RiskMedium,
		DroughtRisk:  domain.RiskLow,
		HeatRisk:     domain.RiskMedium,
		Condition:    domain.ConditionClear,
		Degraded:     true,
	}
	if cause != nil {
		w.Error = cause.Error()
	}
	return w
}

package domain

// RiskLevel classifies a hazard dimension
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// SoilHealth is the coarse soil condition reported with the fertility risk
type SoilHealth string

const (
	SoilGood     SoilHealth = "GOOD"
	SoilModerate SoilHealth = "MODERATE"
	SoilPoor     SoilHealth = "POOR"
)

// Weather conditions derived from the upstream weather code
const (
	ConditionClear   = "clear"
	ConditionRain    = "rain"
	ConditionSnow    = "snow"
	ConditionShowers = "showers"
)

// Location identifies where an assessment is made
type Location struct {
	Lat      float64 `json:"lat" form:"lat"`
	Lon      float64 `json:"lon" form:"lon"`
	District string  `json:"district" form:"district"`
}

// WeatherRisk is the classified weather signal
type WeatherRisk struct {
	FloodRisk    RiskLevel `json:"flood_risk"`
	DroughtRisk  RiskLevel `json:"drought_risk"`
	HeatRisk     RiskLevel `json:"heat_risk"`
	RainfallMm   float64   `json:"rainfall_mm"`
	TemperatureC float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity"`
	WindSpeed    float64   `json:"wind_speed"`
	WeatherCode  int       `json:"weather_code"`
	Condition    string    `json:"condition"`
	Degraded     bool      `json:"degraded,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// SoilRisk is the classified soil signal
type SoilRisk struct {
	FertilityRisk RiskLevel  `json:"fertility_risk"`
	SoilHealth    SoilHealth `json:"soil_health"`
	District      string     `json:"district"`
	Known         bool       `json:"known"`
}

// DisasterRisk is the classified disaster-frequency signal
type DisasterRisk struct {
	DisasterRisk     RiskLevel `json:"disaster_risk"`
	RecentEventCount int       `json:"recent_event_count"`
	Degraded         bool      `json:"degraded,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// RiskAssessment is computed per request from the three risk signals
type RiskAssessment struct {
	Weather  WeatherRisk  `json:"weather"`
	Soil     SoilRisk     `json:"soil"`
	Disaster DisasterRisk `json:"disaster"`
}

// OverallWeatherRisk is HIGH if any weather hazard is HIGH, MEDIUM if any is MEDIUM, else LOW
func (w WeatherRisk) OverallWeatherRisk() RiskLevel {
	levels := []RiskLevel{w.FloodRisk, w.DroughtRisk, w.HeatRisk}
	overall := RiskLow
	for _, l := range levels {
		if l == RiskHigh {
			return RiskHigh
		}
		if l == RiskMedium {
			overall = RiskMedium
		}
	}
	return overall
}

// AllDegraded reports whether no source produced real data
func (a *RiskAssessment) AllDegraded() bool {
	return a.Weather.Degraded && a.Disaster.Degraded && !a.Soil.Known
}

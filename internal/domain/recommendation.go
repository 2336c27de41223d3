package domain

// Plan is one entry of the static insurance plan catalog
type Plan struct {
	Key               string   `json:"key" yaml:"key"`
	Name              string   `json:"name" yaml:"name"`
	Type              string   `json:"type" yaml:"type"`
	Category          string   `json:"category" yaml:"category"`
	Covers            []string `json:"covers" yaml:"covers"`
	Premium           string   `json:"premium" yaml:"premium"`
	Benefits          []string `json:"benefits" yaml:"benefits"`
	GovernmentSupport string   `json:"government_support" yaml:"government_support"`
}

// Recommendation is one insurance plan surfaced to a user
type Recommendation struct {
	PlanID             string   `json:"plan_id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Category           string   `json:"category"`
	Covers             []string `json:"covers"`
	PremiumDescription string   `json:"premium_description"`
	Benefits           []string `json:"benefits"`
	GovernmentSupport  string   `json:"government_support,omitempty"`
	Reason             string   `json:"reason"`
	Priority           int      `json:"priority"`
}

// RecommendationResult carries the recommendations and whether they are a fallback
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	Assessment      *RiskAssessment  `json:"risk_assessment,omitempty"`
	Error           bool             `json:"error"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// Package catalog loads the static insurance plan catalog, the district
// soil table and the knowledge base seed. All are read-only and injected
// into the services that use them.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/liliang-cn/agriassist/internal/domain"
	"gopkg.in/yaml.v3"
)

// Plan keys referenced by the recommendation rules
const (
	PlanCrop      = "crop"
	PlanAccident  = "accident"
	PlanHealth    = "health"
	PlanWeather   = "weather"
	PlanLivestock = "livestock"
	PlanLife      = "life"
)

// RequiredPlans must all be present in a catalog
var RequiredPlans = []string{PlanCrop, PlanAccident, PlanHealth, PlanWeather, PlanLivestock, PlanLife}

//go:embed data/plans.yaml
var defaultPlans []byte

//go:embed data/districts.yaml
var defaultDistricts []byte

//go:embed data/knowledge.yaml
var defaultKnowledge []byte

// Catalog maps plan keys to plans
type Catalog map[string]domain.Plan

// Get returns the plan for key
func (c Catalog) Get(key string) (domain.Plan, bool) {
	p, ok := c[key]
	return p, ok
}

// DistrictSoil is one row of the district soil table
type DistrictSoil struct {
	District      string            `yaml:"district"`
	FertilityRisk domain.RiskLevel  `yaml:"fertility_risk"`
	SoilHealth    domain.SoilHealth `yaml:"soil_health"`
}

// DistrictTable maps exact district names to soil rows
type DistrictTable map[string]DistrictSoil

type plansFile struct {
	Plans []domain.Plan `yaml:"plans"`
}

type districtsFile struct {
	Districts []DistrictSoil `yaml:"districts"`
}

// LoadPlans reads the plan catalog from path, or the embedded default when path is empty
func LoadPlans(path string) (Catalog, error) {
	data, err := readOrDefault(path, defaultPlans)
	if err != nil {
		return nil, err
	}
	return ParsePlans(data)
}

// ParsePlans decodes a YAML plan catalog
func ParsePlans(data []byte) (Catalog, error) {
	var f plansFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	c := make(Catalog, len(f.Plans))
	for _, p := range f.Plans {
		if p.Key == "" || p.Name == "" {
			return nil, fmt.Errorf("plan catalog entry missing key or name: %+v", p)
		}
		c[p.Key] = p
	}
	for _, key := range RequiredPlans {
		if _, ok := c[key]; !ok {
			return nil, fmt.Errorf("plan catalog missing required plan %q", key)
		}
	}
	return c, nil
}

// LoadDistricts reads the district soil table from path, or the embedded default when path is empty
func LoadDistricts(path string) (DistrictTable, error) {
	data, err := readOrDefault(path, defaultDistricts)
	if err != nil {
		return nil, err
	}
	return ParseDistricts(data)
}

// ParseDistricts decodes a YAML district soil table
func ParseDistricts(data []byte) (DistrictTable, error) {
	var f districtsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse district table: %w", err)
	}

	t := make(DistrictTable, len(f.Districts))
	for _, d := range f.Districts {
		switch d.FertilityRisk {
		case domain.RiskLow, domain.RiskMedium, domain.RiskHigh:
		default:
			return nil, fmt.Errorf("district %q has invalid fertility risk %q", d.District, d.FertilityRisk)
		}
		t[d.District] = d
	}
	return t, nil
}

type knowledgeFile struct {
	Entries []domain.KnowledgeEntry `yaml:"entries"`
}

// LoadKnowledge reads knowledge base entries from path, or the embedded seed when path is empty
func LoadKnowledge(path string) ([]domain.KnowledgeEntry, error) {
	data, err := readOrDefault(path, defaultKnowledge)
	if err != nil {
		return nil, err
	}

	var f knowledgeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge entries: %w", err)
	}
	for i, e := range f.Entries {
		if e.Question == "" || e.Answer == "" {
			return nil, fmt.Errorf("knowledge entry %d missing question or answer", i)
		}
	}
	return f.Entries, nil
}

func readOrDefault(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

package risk

import (
	"github.com/liliang-cn/agriassist/internal/catalog"
	"github.com/liliang-cn/agriassist/internal/domain"
)

// SoilTable classifies soil fertility by exact district name
type SoilTable struct {
	districts catalog.DistrictTable
}

// NewSoilTable wraps a district table
func NewSoilTable(districts catalog.DistrictTable) *SoilTable {
	return &SoilTable{districts: districts}
}

// Lookup returns the soil risk for district; unknown districts are MEDIUM
func (t *SoilTable) Lookup(district string) domain.SoilRisk {
	row, ok := t.districts[district]
	if !ok {
		return domain.SoilRisk{
			FertilityRisk: domain.RiskMedium,
			SoilHealth:    domain.SoilModerate,
			District:      district,
		}
	}

	health := row.SoilHealth
	if health == "" {
		health = healthFor(row.FertilityRisk)
	}
	return domain.SoilRisk{
		FertilityRisk: row.FertilityRisk,
		SoilHealth:    health,
		District:      district,
		Known:         true,
	}
}

func healthFor(level domain.RiskLevel) domain.SoilHealth {
	switch level {
	case domain.RiskHigh:
		return domain.SoilPoor
	case domain.RiskLow:
		return domain.SoilGood
	default:
		return domain.SoilModerate
	}
}

package metrics

import (
	"math"
	"strconv"
	"strings"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
)

// Form field names accepted by ApplyForm.
const (
	FieldFavCostMax   = "fav_cost_max"
	FieldFavYieldMin  = "fav_yield_min"
	FieldProbYieldMax = "prob_yield_max"
	FieldProbCostMin  = "prob_cost_min"
)

// Thresholds are the four classification cutoffs. No ordering between the
// favorable and problematic bands is enforced; overlap and gaps are both valid.
type Thresholds struct {
	FavorableCostCeiling    float64 `json:"favorable_cost_ceiling"`
	FavorableYieldFloor     float64 `json:"favorable_yield_floor"`
	ProblematicYieldCeiling float64 `json:"problematic_yield_ceiling"`
	ProblematicCostFloor    float64 `json:"problematic_cost_floor"`
}

// DefaultThresholds returns the stock dashboard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FavorableCostCeiling:    1700,
		FavorableYieldFloor:     1.7,
		ProblematicYieldCeiling: 1.0,
		ProblematicCostFloor:    2500,
	}
}

// FromConfig converts the configured defaults.
func FromConfig(c config.Thresholds) Thresholds {
	return Thresholds{
		FavorableCostCeiling:    c.FavorableCostCeiling,
		FavorableYieldFloor:     c.FavorableYieldFloor,
		ProblematicYieldCeiling: c.ProblematicYieldCeiling,
		ProblematicCostFloor:    c.ProblematicCostFloor,
	}
}

// ApplyForm overrides cutoffs from form values. Empty or non-numeric values
// are ignored and the prior value is kept. It reports whether anything changed.
func (t *Thresholds) ApplyForm(get func(string) string) bool {
	changed := false
	set := func(field string, dst *float64) {
		raw := strings.TrimSpace(get(field))
		if raw == "" {
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(FieldFavCostMax, &t.FavorableCostCeiling)
	set(FieldFavYieldMin, &t.FavorableYieldFloor)
	set(FieldProbYieldMax, &t.ProblematicYieldCeiling)
	set(FieldProbCostMin, &t.ProblematicCostFloor)
	return changed
}

// Favorable reports cost below the ceiling and yield above the floor.
func (t Thresholds) Favorable(cost, yield float64) bool {
	return cost < t.FavorableCostCeiling && yield > t.FavorableYieldFloor
}

// Problematic reports cost above the floor and yield below the ceiling.
func (t Thresholds) Problematic(cost, yield float64) bool {
	return cost > t.ProblematicCostFloor && yield < t.ProblematicYieldCeiling
}

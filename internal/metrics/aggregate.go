package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

// SavingsRate is the flat share of mean cost assumed recoverable per borehole.
const SavingsRate = 0.25

var requiredColumns = []string{survey.ColYield, survey.ColCost, survey.ColDepth}

// Bundle is the dashboard metric payload for one table and one set of thresholds.
type Bundle struct {
	Count              int        `json:"count"`
	MeanYield          float64    `json:"mean_yield_lps"`
	MeanCost           float64    `json:"mean_cost_usd"`
	MeanTransmissivity float64    `json:"mean_transmissivity_m2_per_day"`
	MeanStorageCoeff   float64    `json:"mean_storage_coefficient"`
	MeanMonthlyVolume  float64    `json:"mean_monthly_volume_m3"`
	ProjectedSavings   float64    `json:"projected_savings_usd"`
	Favorable          []bool     `json:"favorable"`
	Problematic        []bool     `json:"problematic"`
	FavorableCount     int        `json:"favorable_count"`
	ProblematicCount   int        `json:"problematic_count"`
	Thresholds         Thresholds `json:"thresholds"`
	Advisories         []string   `json:"advisories,omitempty"`
	Charts             Charts     `json:"charts"`
}

// Aggregate computes the metric bundle. The input table is not modified;
// missing required columns are synthesized as all-NaN on a copy.
func Aggregate(t *survey.Table, th Thresholds) *Bundle {
	t = t.Clone()
	b := &Bundle{Count: t.Len(), Thresholds: th}

	var missing []string
	for _, c := range requiredColumns {
		if t.Float(c) == nil {
			missing = append(missing, c)
			t.EnsureFloat(c)
		}
	}
	if len(missing) > 0 {
		b.Advisories = append(b.Advisories,
			fmt.Sprintf("Missing required fields: %s; using defaults.", strings.Join(missing, ", ")))
	}

	b.MeanYield = round2(finiteMean(t.Float(survey.ColYield)))
	b.MeanCost = round2(finiteMean(t.Float(survey.ColCost)))
	b.MeanTransmissivity = round2(finiteMean(t.Float(survey.ColTransmissivity)))
	b.MeanStorageCoeff = round2(finiteMean(t.Float(survey.ColStorageCoeff)))
	b.MeanMonthlyVolume = round2(finiteMean(t.Float(survey.ColMonthlyVolume)))
	b.ProjectedSavings = round2(float64(b.Count) * b.MeanCost * SavingsRate)

	cost := t.Float(survey.ColCost)
	yield := t.Float(survey.ColYield)
	b.Favorable = make([]bool, t.Len())
	b.Problematic = make([]bool, t.Len())
	for i := 0; i < t.Len(); i++ {
		// NaN comparisons are false, so rows with missing cost or yield fall in neither band.
		if th.Favorable(cost[i], yield[i]) {
			b.Favorable[i] = true
			b.FavorableCount++
		}
		if th.Problematic(cost[i], yield[i]) {
			b.Problematic[i] = true
			b.ProblematicCount++
		}
	}

	b.Charts = buildCharts(t)
	return b
}

// finiteMean averages the finite values; an empty or all-missing column is 0.
func finiteMean(vals []float64) float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	return stat.Mean(finite, nil)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summary is the compact headline handed to the narrative requestor.
func (b *Bundle) Summary() json.RawMessage {
	payload := map[string]any{
		"thresholds":               b.Thresholds,
		"count":                    b.Count,
		"mean_yield_lps":           b.MeanYield,
		"mean_cost_usd":            b.MeanCost,
		"mean_transmissivity":      b.MeanTransmissivity,
		"mean_storage_coefficient": b.MeanStorageCoeff,
		"mean_monthly_volume_m3":   b.MeanMonthlyVolume,
		"projected_savings_usd":    b.ProjectedSavings,
		"favorable_count":          b.FavorableCount,
		"problematic_count":        b.ProblematicCount,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

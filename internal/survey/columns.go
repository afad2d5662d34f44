package survey

import (
	"regexp"
	"strings"
)

// Canonical column names. Headers are lowercased with whitespace runs joined by "_".
const (
	ColDistrict         = "district"
	ColBoreholeType     = "borehole_type"
	ColDepth            = "depth_m"
	ColStaticWL         = "static_wl_m_bgl"
	ColDynamicWL        = "dynamic_wl_m_bgl"
	ColYield            = "yield_lps"
	ColDrawdown         = "drawdown_m"
	ColSpecificCapacity = "specific_capacity_lps_per_m"
	ColCost             = "cost_usd"
	ColCostPerDepth     = "cost_per_m_usd"
	ColTransmissivity   = "transmissivity_m2_per_day"
	ColStorageCoeff     = "storage_coefficient"
	ColPumpingHours     = "pumping_hours"
	ColRecoveryHours    = "recovery_hours"
	ColCycleDuration    = "cycle_duration_h"
	ColMonthlyVolume    = "monthly_volume_m3"
	ColEfficiencyIndex  = "efficiency_index"
	ColStorageIndex     = "storage_index"
)

// NumericColumns lists every column coerced to float64 on ingestion.
var NumericColumns = []string{
	ColDepth, ColStaticWL, ColDynamicWL, ColYield, ColDrawdown, ColSpecificCapacity,
	ColCost, ColCostPerDepth, ColTransmissivity, ColStorageCoeff, ColPumpingHours,
	ColRecoveryHours, ColCycleDuration, ColMonthlyVolume, ColEfficiencyIndex, ColStorageIndex,
}

var numericSet = func() map[string]bool {
	m := make(map[string]bool, len(NumericColumns))
	for _, c := range NumericColumns {
		m[c] = true
	}
	return m
}()

// IsNumeric reports whether a canonical column is numeric.
func IsNumeric(col string) bool { return numericSet[col] }

// aliases maps frequently seen field-sheet headers onto canonical names.
var aliases = map[string]string{
	"depth":                       ColDepth,
	"total_depth_m":               ColDepth,
	"static_wl":                   ColStaticWL,
	"static_water_level":          ColStaticWL,
	"static_water_level_m":        ColStaticWL,
	"swl_m":                       ColStaticWL,
	"dynamic_wl":                  ColDynamicWL,
	"dynamic_water_level":         ColDynamicWL,
	"dynamic_water_level_m":       ColDynamicWL,
	"dwl_m":                       ColDynamicWL,
	"yield":                       ColYield,
	"yield_l/s":                   ColYield,
	"drawdown":                    ColDrawdown,
	"specific_capacity":           ColSpecificCapacity,
	"cost":                        ColCost,
	"cost_per_m":                  ColCostPerDepth,
	"transmissivity":              ColTransmissivity,
	"transmissivity_m2_d":         ColTransmissivity,
	"transmissivity_m2/d":         ColTransmissivity,
	"storativity":                 ColStorageCoeff,
	"storage_coeff":               ColStorageCoeff,
	"pumping_h":                   ColPumpingHours,
	"pumping_hrs":                 ColPumpingHours,
	"recovery_h":                  ColRecoveryHours,
	"recovery_hrs":                ColRecoveryHours,
	"cycle_duration":              ColCycleDuration,
	"monthly_volume":              ColMonthlyVolume,
	"borehole":                    ColBoreholeType,
	"type":                        ColBoreholeType,
	"bh_type":                     ColBoreholeType,
	"specific_capacity_l/s_per_m": ColSpecificCapacity,
}

var spaceRun = regexp.MustCompile(`\s+`)

// CleanHeader trims a raw header, joins internal whitespace with "_", lowercases it
// and resolves known aliases.
func CleanHeader(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	s = spaceRun.ReplaceAllString(s, "_")
	s = strings.ToLower(s)
	if canon, ok := aliases[s]; ok {
		return canon
	}
	return s
}

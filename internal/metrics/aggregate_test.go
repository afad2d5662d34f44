package metrics

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

func TestAggregateEmptyTable(t *testing.T) {
	tbl := survey.NewTable(0)
	tbl.SetFloat(survey.ColYield, []float64{})
	tbl.SetFloat(survey.ColCost, []float64{})
	tbl.SetFloat(survey.ColDepth, []float64{})
	b := Aggregate(tbl, DefaultThresholds())
	if b.Count != 0 {
		t.Fatalf("count = %d", b.Count)
	}
	for name, v := range map[string]float64{
		"yield": b.MeanYield, "cost": b.MeanCost, "transmissivity": b.MeanTransmissivity,
		"storage": b.MeanStorageCoeff, "monthly": b.MeanMonthlyVolume, "savings": b.ProjectedSavings,
	} {
		if v != 0 {
			t.Fatalf("%s = %v, want 0", name, v)
		}
	}
	if len(b.Advisories) != 0 {
		t.Fatalf("unexpected advisories: %v", b.Advisories)
	}
}

func TestAggregateClassificationScenario(t *testing.T) {
	tbl := survey.NewTable(4)
	tbl.SetFloat(survey.ColCost, []float64{1500, 1500, 3000, math.NaN()})
	tbl.SetFloat(survey.ColYield, []float64{2.0, 1.0, 0.5, 5})
	tbl.SetFloat(survey.ColDepth, []float64{100, 100, 100, 100})
	b := Aggregate(tbl, DefaultThresholds())

	wantFav := []bool{true, false, false, false}
	wantProb := []bool{false, false, true, false}
	for i := range wantFav {
		if b.Favorable[i] != wantFav[i] || b.Problematic[i] != wantProb[i] {
			t.Fatalf("row %d: favorable=%v problematic=%v", i, b.Favorable[i], b.Problematic[i])
		}
	}
	if b.FavorableCount != 1 || b.ProblematicCount != 1 {
		t.Fatalf("counts = %d/%d", b.FavorableCount, b.ProblematicCount)
	}
	if b.MeanCost != 2000 {
		t.Fatalf("mean cost = %v, want NaN-skipping 2000", b.MeanCost)
	}
	if b.ProjectedSavings != 2000 {
		t.Fatalf("savings = %v, want 4*2000*0.25", b.ProjectedSavings)
	}
}

func TestOverlappingBandsAreIndependent(t *testing.T) {
	th := Thresholds{FavorableCostCeiling: 5000, FavorableYieldFloor: 0, ProblematicYieldCeiling: 10, ProblematicCostFloor: 0}
	tbl := survey.NewTable(1)
	tbl.SetFloat(survey.ColCost, []float64{1000})
	tbl.SetFloat(survey.ColYield, []float64{2})
	tbl.SetFloat(survey.ColDepth, []float64{50})
	b := Aggregate(tbl, th)
	if !b.Favorable[0] || !b.Problematic[0] {
		t.Fatalf("overlapping thresholds should flag both: %+v", b)
	}
}

func TestAggregateMissingColumnsAdvisory(t *testing.T) {
	tbl := survey.NewTable(2)
	tbl.SetText(survey.ColDistrict, []string{"BCM", "BCM"})
	tbl.SetFloat(survey.ColYield, []float64{1.0, 2.5})
	b := Aggregate(tbl, DefaultThresholds())
	if len(b.Advisories) != 1 {
		t.Fatalf("advisories = %v", b.Advisories)
	}
	if !strings.Contains(b.Advisories[0], "cost_usd, depth_m") {
		t.Fatalf("advisory = %q", b.Advisories[0])
	}
	if b.MeanYield != 1.75 {
		t.Fatalf("mean yield = %v, want 1.75", b.MeanYield)
	}
	if b.MeanCost != 0 || b.ProjectedSavings != 0 {
		t.Fatalf("synthesized cost should average to 0, got %v/%v", b.MeanCost, b.ProjectedSavings)
	}
	if tbl.Has(survey.ColCost) {
		t.Fatalf("Aggregate mutated the input table")
	}
	if len(b.Charts.ByDistrict) != 1 || b.Charts.ByDistrict[0].Count != 2 {
		t.Fatalf("district series = %+v", b.Charts.ByDistrict)
	}
}

func TestDemoChartsAndSummary(t *testing.T) {
	b := Aggregate(survey.Demo(), DefaultThresholds())
	if len(b.Charts.Scatter) != 6 {
		t.Fatalf("scatter points = %d", len(b.Charts.Scatter))
	}
	if b.Charts.Scatter[0].Group != "Production" {
		t.Fatalf("scatter group = %q", b.Charts.Scatter[0].Group)
	}
	if len(b.Charts.ByDistrict) != 3 {
		t.Fatalf("districts = %d", len(b.Charts.ByDistrict))
	}
	var s map[string]any
	if err := json.Unmarshal(b.Summary(), &s); err != nil {
		t.Fatalf("summary json: %v", err)
	}
	if _, ok := s["thresholds"]; !ok {
		t.Fatalf("summary missing thresholds: %v", s)
	}
	if s["count"].(float64) != 6 {
		t.Fatalf("summary count = %v", s["count"])
	}
}

func TestApplyFormIgnoresInvalid(t *testing.T) {
	th := DefaultThresholds()
	form := map[string]string{
		FieldFavCostMax:   "1200",
		FieldFavYieldMin:  "abc",
		FieldProbYieldMax: "",
		FieldProbCostMin:  "NaN",
	}
	changed := th.ApplyForm(func(k string) string { return form[k] })
	if !changed {
		t.Fatalf("expected change")
	}
	want := DefaultThresholds()
	want.FavorableCostCeiling = 1200
	if th != want {
		t.Fatalf("thresholds = %+v, want %+v", th, want)
	}
	if th.ApplyForm(func(string) string { return "" }) {
		t.Fatalf("empty form reported a change")
	}
}

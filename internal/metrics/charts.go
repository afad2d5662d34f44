package metrics

import (
	"math"
	"sort"

	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

// Charts holds chart-ready series consumed by the dashboard page.
type Charts struct {
	Scatter    []ScatterPoint   `json:"scatter"`
	ByDistrict []DistrictSeries `json:"by_district"`
}

// ScatterPoint is one borehole on the yield-versus-cost chart. Missing values are 0.
type ScatterPoint struct {
	Cost     float64 `json:"cost_usd"`
	Yield    float64 `json:"yield_lps"`
	Depth    float64 `json:"depth_m"`
	Group    string  `json:"group"`
	District string  `json:"district,omitempty"`
}

// DistrictSeries holds per-district means.
type DistrictSeries struct {
	District  string  `json:"district"`
	Count     int     `json:"count"`
	MeanYield float64 `json:"mean_yield_lps"`
	MeanCost  float64 `json:"mean_cost_usd"`
}

func buildCharts(t *survey.Table) Charts {
	cost := t.Float(survey.ColCost)
	yield := t.Float(survey.ColYield)
	depth := t.Float(survey.ColDepth)
	types := t.Text(survey.ColBoreholeType)
	districts := t.Text(survey.ColDistrict)

	var c Charts
	c.Scatter = make([]ScatterPoint, t.Len())
	for i := range c.Scatter {
		p := ScatterPoint{Cost: zeroNaN(cost[i]), Yield: zeroNaN(yield[i]), Depth: zeroNaN(depth[i])}
		if types != nil {
			p.Group = types[i]
		}
		if districts != nil {
			p.District = districts[i]
		}
		c.Scatter[i] = p
	}

	if districts == nil {
		return c
	}
	idx := map[string][]int{}
	for i, d := range districts {
		if d == "" {
			d = "Unknown"
		}
		idx[d] = append(idx[d], i)
	}
	names := make([]string, 0, len(idx))
	for d := range idx {
		names = append(names, d)
	}
	sort.Strings(names)
	for _, d := range names {
		rows := idx[d]
		ys := make([]float64, len(rows))
		cs := make([]float64, len(rows))
		for k, i := range rows {
			ys[k] = yield[i]
			cs[k] = cost[i]
		}
		c.ByDistrict = append(c.ByDistrict, DistrictSeries{
			District:  d,
			Count:     len(rows),
			MeanYield: round2(finiteMean(ys)),
			MeanCost:  round2(finiteMean(cs)),
		})
	}
	return c
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

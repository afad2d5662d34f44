// Package analysis profiles a canonical survey table for reports and prompts.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

// Options controls profiling.
type Options struct {
	// GroupBy computes per-group means for this text column; empty disables.
	GroupBy string
	// OutlierThreshold counts values with robust |z| above it (MAD based); 0 disables.
	OutlierThreshold float64
	// TopValues bounds the category counts kept per text column.
	TopValues int
	// CorrColumns are paired for Pearson correlations when present.
	CorrColumns []string
}

// DefaultOptions groups by district and correlates the economic drivers.
func DefaultOptions() Options {
	return Options{
		GroupBy:          survey.ColDistrict,
		OutlierThreshold: 3.5,
		TopValues:        5,
		CorrColumns: []string{
			survey.ColYield, survey.ColCost, survey.ColDepth,
			survey.ColCostPerDepth, survey.ColTransmissivity,
		},
	}
}

// Profile is a per-column description of a table.
type Profile struct {
	Rows     int             `json:"rows"`
	Columns  []ColumnSummary `json:"columns"`
	Groups   []GroupResult   `json:"groups,omitempty"`
	Corr     []PairCorr      `json:"correlations,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ColumnSummary captures kind and statistics per column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // numeric|categorical
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique,omitempty"`
	// Numeric stats, zero when NonNull is 0
	Min             float64         `json:"min,omitempty"`
	Max             float64         `json:"max,omitempty"`
	Mean            float64         `json:"mean,omitempty"`
	Std             float64         `json:"std,omitempty"`
	Median          float64         `json:"median,omitempty"`
	OutliersCount   int             `json:"outliers,omitempty"`
	OutliersMaxAbsZ float64         `json:"outliers_max_abs_z,omitempty"`
	TopValues       []CategoryCount `json:"top_values,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult holds per-group means of the numeric columns.
type GroupResult struct {
	Key     string                `json:"key"`
	Size    int                   `json:"size"`
	Metrics map[string]NumSummary `json:"metrics"`
}

type NumSummary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// PairCorr is the Pearson correlation of two columns over rows where both are present.
type PairCorr struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
	N int     `json:"n"`
}

// Describe profiles t. NaN cells count as missing.
func Describe(t *survey.Table, opt Options) *Profile {
	p := &Profile{Rows: t.Len()}
	if t.Len() == 0 {
		p.Warnings = append(p.Warnings, "table is empty")
		return p
	}
	for _, col := range t.Columns() {
		if vals := t.Float(col); vals != nil {
			p.Columns = append(p.Columns, numericSummary(col, vals, opt.OutlierThreshold))
			continue
		}
		p.Columns = append(p.Columns, categoricalSummary(col, t.Text(col), opt.TopValues))
	}
	if opt.GroupBy != "" {
		if keys := t.Text(opt.GroupBy); keys != nil {
			p.Groups = groupBy(t, keys)
		} else {
			p.Warnings = append(p.Warnings, fmt.Sprintf("group-by column %q not found", opt.GroupBy))
		}
	}
	p.Corr = correlations(t, opt.CorrColumns)
	for _, c := range p.Columns {
		if c.Kind == "numeric" && c.NonNull == 0 {
			p.Warnings = append(p.Warnings, fmt.Sprintf("column %s has no numeric values", c.Name))
		}
	}
	return p
}

func present(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func numericSummary(name string, vals []float64, outlierThr float64) ColumnSummary {
	xs := present(vals)
	cs := ColumnSummary{Name: name, Kind: "numeric", NonNull: len(xs), Missing: len(vals) - len(xs)}
	if len(xs) == 0 {
		return cs
	}
	seen := map[float64]struct{}{}
	cs.Min, cs.Max = xs[0], xs[0]
	for _, v := range xs {
		seen[v] = struct{}{}
		cs.Min = math.Min(cs.Min, v)
		cs.Max = math.Max(cs.Max, v)
	}
	cs.Unique = len(seen)
	if len(xs) > 1 {
		cs.Mean, cs.Std = stat.MeanStdDev(xs, nil)
	} else {
		cs.Mean = xs[0]
	}
	med, mad := medianMAD(xs)
	cs.Median = med
	if outlierThr > 0 && mad > 0 {
		for _, v := range xs {
			z := math.Abs(0.6745 * (v - med) / mad)
			if z > outlierThr {
				cs.OutliersCount++
				cs.OutliersMaxAbsZ = math.Max(cs.OutliersMaxAbsZ, z)
			}
		}
	}
	return cs
}

func categoricalSummary(name string, vals []string, top int) ColumnSummary {
	cs := ColumnSummary{Name: name, Kind: "categorical"}
	counts := map[string]int{}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			cs.Missing++
			continue
		}
		cs.NonNull++
		counts[v]++
	}
	cs.Unique = len(counts)
	for v, n := range counts {
		cs.TopValues = append(cs.TopValues, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(cs.TopValues, func(i, j int) bool {
		if cs.TopValues[i].Count != cs.TopValues[j].Count {
			return cs.TopValues[i].Count > cs.TopValues[j].Count
		}
		return cs.TopValues[i].Value < cs.TopValues[j].Value
	})
	if top > 0 && len(cs.TopValues) > top {
		cs.TopValues = cs.TopValues[:top]
	}
	return cs
}

func groupBy(t *survey.Table, keys []string) []GroupResult {
	idx := map[string][]int{}
	for i, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			k = "(blank)"
		}
		idx[k] = append(idx[k], i)
	}
	names := make([]string, 0, len(idx))
	for k := range idx {
		names = append(names, k)
	}
	sort.Strings(names)

	var out []GroupResult
	for _, k := range names {
		g := GroupResult{Key: k, Size: len(idx[k]), Metrics: map[string]NumSummary{}}
		for _, col := range t.Columns() {
			vals := t.Float(col)
			if vals == nil {
				continue
			}
			var xs []float64
			for _, i := range idx[k] {
				if !math.IsNaN(vals[i]) {
					xs = append(xs, vals[i])
				}
			}
			if len(xs) == 0 {
				continue
			}
			s := NumSummary{Mean: stat.Mean(xs, nil), Min: xs[0], Max: xs[0]}
			for _, v := range xs {
				s.Min = math.Min(s.Min, v)
				s.Max = math.Max(s.Max, v)
			}
			g.Metrics[col] = s
		}
		out = append(out, g)
	}
	return out
}

func correlations(t *survey.Table, cols []string) []PairCorr {
	var out []PairCorr
	for i := 0; i < len(cols); i++ {
		a := t.Float(cols[i])
		if a == nil {
			continue
		}
		for j := i + 1; j < len(cols); j++ {
			b := t.Float(cols[j])
			if b == nil {
				continue
			}
			var xs, ys []float64
			for k := range a {
				if !math.IsNaN(a[k]) && !math.IsNaN(b[k]) {
					xs = append(xs, a[k])
					ys = append(ys, b[k])
				}
			}
			if len(xs) < 3 {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) {
				continue
			}
			out = append(out, PairCorr{A: cols[i], B: cols[j], R: r, N: len(xs)})
		}
	}
	return out
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Columns {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct))
		switch {
		case c.Kind == "numeric" && c.NonNull > 0:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std))
			if c.OutliersCount > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d (max |z|≈%.2f)", c.OutliersCount, c.OutliersMaxAbsZ))
			}
		case c.Kind == "categorical" && len(c.TopValues) > 0:
			b.WriteString(": top ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", kv.Value, kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
			}
		}
		b.WriteString("\n")
	}
	if len(p.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range p.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max))
			}
		}
	}
	if len(p.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, c := range p.Corr {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", c.A, c.B, c.R, c.N))
		}
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range p.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

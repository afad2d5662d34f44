package survey

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberRun = regexp.MustCompile(`[\d.]+`)

// CoerceNumber converts a raw cell to float64. Decimal commas become points and
// the first run of digits and points is parsed; anything else is NaN.
func CoerceNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	m := numberRun.FindString(s)
	if m == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func coerceColumn(cells []string) []float64 {
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = CoerceNumber(c)
	}
	return out
}

// derivation computes one output column from input columns, row by row.
type derivation struct {
	out    string
	inputs []string
	always bool
	fn     func(in []float64) float64
}

// derivations run in order; later ones see the results of earlier ones.
var derivations = []derivation{
	{out: ColDrawdown, inputs: []string{ColDynamicWL, ColStaticWL}, fn: func(in []float64) float64 {
		return in[0] - in[1]
	}},
	{out: ColSpecificCapacity, inputs: []string{ColYield, ColDrawdown}, fn: func(in []float64) float64 {
		return safeDiv(in[0], in[1])
	}},
	{out: ColCostPerDepth, inputs: []string{ColCost, ColDepth}, always: true, fn: func(in []float64) float64 {
		return safeDiv(in[0], in[1])
	}},
	{out: ColCycleDuration, inputs: []string{ColPumpingHours, ColRecoveryHours}, fn: func(in []float64) float64 {
		return in[0] + in[1]
	}},
	{out: ColMonthlyVolume, inputs: []string{ColYield}, fn: func(in []float64) float64 {
		return in[0] * 3600 * 24 * 30 / 1000
	}},
	{out: ColEfficiencyIndex, inputs: []string{ColTransmissivity, ColCost}, fn: func(in []float64) float64 {
		return safeDiv(in[0], in[1]) * 1000
	}},
	{out: ColStorageIndex, inputs: []string{ColStorageCoeff, ColYield}, fn: func(in []float64) float64 {
		return in[0] * in[1]
	}},
}

func derive(t *Table) {
	for _, d := range derivations {
		if !needsDerivation(t, d) {
			continue
		}
		cols := make([][]float64, len(d.inputs))
		for k, name := range d.inputs {
			cols[k] = t.Float(name)
		}
		out := make([]float64, t.Len())
		in := make([]float64, len(cols))
		for i := range out {
			for k := range cols {
				in[k] = cols[k][i]
			}
			v := d.fn(in)
			if math.IsInf(v, 0) {
				v = math.NaN()
			}
			out[i] = v
		}
		t.SetFloat(d.out, out)
	}
}

func needsDerivation(t *Table, d derivation) bool {
	for _, name := range d.inputs {
		if t.Float(name) == nil {
			return false
		}
	}
	if d.always {
		return true
	}
	existing := t.Float(d.out)
	if existing == nil {
		return true
	}
	for _, v := range existing {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// safeDiv treats a zero or missing denominator as missing.
func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return math.NaN()
	}
	return num / den
}

func suppressNegative(t *Table, cols ...string) {
	for _, c := range cols {
		vals := t.Float(c)
		for i, v := range vals {
			if v < 0 {
				vals[i] = math.NaN()
			}
		}
	}
}

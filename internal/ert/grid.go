// Package ert turns ERT sounding files into a resistivity grid, a rendered
// pseudo-section image and a flat model export.
package ert

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Provenance records where a grid's values came from.
type Provenance string

const (
	ProvenanceInverted  Provenance = "inverted"
	ProvenanceMeasured  Provenance = "measured"
	ProvenanceSynthetic Provenance = "synthetic"
)

// Grid is a resistivity raster indexed by (depth index, distance index).
// Cells with no source sample hold NaN.
type Grid struct {
	Values     *mat.Dense
	X          []float64 // distance axis, len == cols; may be nil
	Z          []float64 // depth axis, len == rows; may be nil
	Provenance Provenance
	Source     string
}

// NewGrid returns a rows×cols grid filled with NaN.
func NewGrid(rows, cols int, p Provenance) *Grid {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Values: mat.NewDense(rows, cols, data), Provenance: p}
}

// Dims returns rows (depth) and cols (distance).
func (g *Grid) Dims() (int, int) { return g.Values.Dims() }

// At returns the value at depth index r and distance index c.
func (g *Grid) At(r, c int) float64 { return g.Values.At(r, c) }

// Range returns the finite min and max. ok is false when no cell is finite.
func (g *Grid) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	rows, cols := g.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := g.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	if !ok {
		return math.NaN(), math.NaN(), false
	}
	return lo, hi, true
}

// Title is the figure heading for the grid's provenance.
func (g *Grid) Title() string {
	switch g.Provenance {
	case ProvenanceInverted:
		return "ERT Inversion"
	case ProvenanceMeasured:
		return "ERT Pseudo-Section (Measured grid)"
	default:
		return "ERT Pseudo-Section (Synthetic, not measured)"
	}
}

// Synthetic defaults.
const (
	SyntheticNX = 80
	SyntheticNZ = 40
)

// Synthetic builds the illustrative closed-form field used when no usable
// sounding data exists: a baseline, a Gaussian anomaly and a decaying ripple.
func Synthetic() *Grid {
	g := NewGrid(SyntheticNZ, SyntheticNX, ProvenanceSynthetic)
	g.X = linspace(0, 1, SyntheticNX)
	g.Z = linspace(0, 1, SyntheticNZ)
	for r, z := range g.Z {
		for c, x := range g.X {
			v := 30 +
				70*math.Exp(-(x-0.5)*(x-0.5)/0.02-(z-0.6)*(z-0.6)/0.03) +
				10*math.Sin(8*x)*math.Exp(-3*z)
			g.Values.Set(r, c, v)
		}
	}
	g.Source = "synthetic"
	return g
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}

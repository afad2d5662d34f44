package ert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SyntheticFallbackProcessor rasterizes delimited x/z/resistivity tables by
// exact-value binning, and synthesizes an illustrative field for anything else.
type SyntheticFallbackProcessor struct{}

func (p *SyntheticFallbackProcessor) Name() string { return "fallback" }

func (p *SyntheticFallbackProcessor) Process(ctx context.Context, inputPath, outDir string) Result {
	if err := ctx.Err(); err != nil {
		return failed(p.Name(), "start", err)
	}
	var g *Grid
	if isDelimitedTable(inputPath) {
		var err error
		g, err = ScatterGrid(inputPath)
		if err != nil {
			return failed(p.Name(), "parse", err)
		}
	} else {
		g = Synthetic()
		g.Source = filepath.Base(inputPath)
	}
	art, err := writeArtifacts(g, outDir)
	if err != nil {
		return failed(p.Name(), "render", err)
	}
	return Result{Artifact: art}
}

func isDelimitedTable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xyz", ".txt":
		return true
	}
	return false
}

// MaxGridCells bounds the scattered grid; unique x times unique z above it is
// rejected before anything is allocated.
const MaxGridCells = 4 << 20

var (
	xNames = []string{"x", "distance", "position"}
	zNames = []string{"z", "depth", "elevation"}
	rNames = []string{"resistivity", "rho", "res", "apparent_resistivity", "ohm_m"}
)

// ScatterGrid reads a delimited sounding table and scatters resistivity onto
// the grid of unique sorted x and z values. Unobserved cells stay NaN.
func ScatterGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sounding: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var lines [][]string
	var split func(string) []string
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if split == nil {
			split = splitterFor(line)
		}
		lines = append(lines, split(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sounding: %w", err)
	}
	if len(lines) == 0 {
		return nil, errors.New("no rows in sounding file")
	}

	xi, zi, ri := 0, 1, 2
	body := lines
	if !allNumeric(lines[0]) {
		header := lines[0]
		xi = columnIndex(header, xNames, 0)
		zi = columnIndex(header, zNames, 1)
		ri = columnIndex(header, rNames, 2)
		body = lines[1:]
	}

	type sample struct{ x, z, r float64 }
	samples := make([]sample, 0, len(body))
	for _, row := range body {
		if xi >= len(row) || zi >= len(row) {
			continue
		}
		x, errX := parseCell(row[xi])
		z, errZ := parseCell(row[zi])
		if errX != nil || errZ != nil || !finite(x) || !finite(z) {
			continue
		}
		r := nanValue
		if ri < len(row) {
			if v, err := parseCell(row[ri]); err == nil {
				r = v
			}
		}
		samples = append(samples, sample{x, z, r})
	}
	if len(samples) == 0 {
		return nil, errors.New("no usable x/z rows in sounding file")
	}

	xs := make([]float64, len(samples))
	zs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], zs[i] = s.x, s.z
	}
	xs, zs = uniqueSorted(xs), uniqueSorted(zs)
	if cells := len(xs) * len(zs); cells > MaxGridCells {
		return nil, fmt.Errorf("sounding grid %dx%d has %d cells, limit is %d", len(zs), len(xs), cells, MaxGridCells)
	}
	xIdx := indexOf(xs)
	zIdx := indexOf(zs)

	g := NewGrid(len(zs), len(xs), ProvenanceMeasured)
	g.X, g.Z = xs, zs
	g.Source = filepath.Base(path)
	for _, s := range samples {
		g.Values.Set(zIdx[s.z], xIdx[s.x], s.r)
	}
	return g, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// splitterFor picks the delimiter from the first line. Semicolon wins over
// comma so decimal-comma files split correctly.
func splitterFor(line string) func(string) []string {
	for _, d := range []string{";", "\t", ","} {
		if strings.Contains(line, d) {
			return func(s string) []string { return strings.Split(s, d) }
		}
	}
	return strings.Fields
}

// parseCell accepts both decimal separators.
func parseCell(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

func allNumeric(row []string) bool {
	for _, cell := range row {
		if _, err := parseCell(cell); err != nil {
			return false
		}
	}
	return len(row) > 0
}

func columnIndex(header []string, names []string, def int) int {
	for _, want := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return def
}

func uniqueSorted(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	n := 0
	for i, x := range out {
		if i == 0 || x != out[n-1] {
			out[n] = x
			n++
		}
	}
	return out[:n]
}

func indexOf(v []float64) map[float64]int {
	m := make(map[float64]int, len(v))
	for i, x := range v {
		m[x] = i
	}
	return m
}

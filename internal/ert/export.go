package ert

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"

	"github.com/yangatekane/bh-ea-dashboard/internal/render"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

// Metadata is the provenance sidecar written next to the model export.
type Metadata struct {
	Provenance Provenance `json:"provenance"`
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	Source     string     `json:"source"`
	Min        *float64   `json:"min,omitempty"`
	Max        *float64   `json:"max,omitempty"`
}

// Figure geometry in pixels (8x4 inches at 100 dpi).
const (
	figW, figH        = 800, 400
	padLeft, padRight = 70, 130
	padTop, padBottom = 40, 50
	colorbarW         = 14
	colorbarLabel     = "Resistivity (Ohm·m)"
)

// writeArtifacts renders the grid and writes image, model and sidecar.
func writeArtifacts(g *Grid, outDir string) (*Artifact, error) {
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}
	rows, cols := g.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	art := &Artifact{
		ImagePath:    filepath.Join(outDir, ImageName),
		ModelPath:    filepath.Join(outDir, ModelName),
		MetadataPath: filepath.Join(outDir, MetadataName),
		Provenance:   g.Provenance,
		Rows:         rows,
		Cols:         cols,
	}
	if err := RenderPNG(g, art.ImagePath); err != nil {
		return nil, err
	}
	if err := WriteModelCSV(g, art.ModelPath); err != nil {
		return nil, err
	}
	meta := Metadata{Provenance: g.Provenance, Rows: rows, Cols: cols, Source: g.Source}
	if lo, hi, ok := g.Range(); ok {
		meta.Min, meta.Max = &lo, &hi
	}
	b, err := utils.PrettyJSON(meta)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(art.MetadataPath, b); err != nil {
		return nil, err
	}
	return art, nil
}

// WriteModelCSV exports the grid as comma-separated rows; NaN is written as "nan".
func WriteModelCSV(g *Grid, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model csv: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	rows, cols := g.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				w.WriteByte(',')
			}
			v := g.At(r, c)
			if math.IsNaN(v) {
				w.WriteString("nan")
				continue
			}
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write model csv: %w", err)
	}
	return nil
}

// RenderPNG draws the pseudo-section heatmap with axes and colorbar.
func RenderPNG(g *Grid, path string) error {
	rows, cols := g.Dims()
	lo, hi, ok := g.Range()
	if !ok {
		lo, hi = 0, 1
	}

	dc := gg.NewContext(figW, figH)
	dc.SetColor(color.White)
	dc.Clear()

	plotX, plotY := padLeft, padTop
	plotW, plotH := figW-padLeft-padRight, figH-padTop-padBottom
	field := render.Field{Rows: rows, Cols: cols, At: g.At, Min: lo, Max: hi, OriginLower: true}
	render.DrawScaled(dc, field.Colorize(), plotX, plotY, plotW, plotH)

	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(float64(plotX), float64(plotY), float64(plotW), float64(plotH))
	dc.Stroke()

	render.SetFont(dc, 14)
	dc.DrawStringAnchored(g.Title(), figW/2, padTop/2, 0.5, 0.5)

	render.SetFont(dc, 12)
	dc.DrawStringAnchored("Distance", float64(plotX)+float64(plotW)/2, figH-12, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 18, float64(plotY)+float64(plotH)/2)
	dc.DrawStringAnchored("Depth", 18, float64(plotY)+float64(plotH)/2, 0.5, 0.5)
	dc.Pop()

	render.SetFont(dc, 10)
	xlo, xhi := axisRange(g.X, cols)
	zlo, zhi := axisRange(g.Z, rows)
	bottom := float64(plotY + plotH)
	dc.DrawStringAnchored(tick(xlo), float64(plotX), bottom+12, 0.5, 0.5)
	dc.DrawStringAnchored(tick(xhi), float64(plotX+plotW), bottom+12, 0.5, 0.5)
	dc.DrawStringAnchored(tick(zlo), float64(plotX)-6, bottom, 1, 0.5)
	dc.DrawStringAnchored(tick(zhi), float64(plotX)-6, float64(plotY), 1, 0.5)

	render.Colorbar(dc, float64(plotX+plotW+16), float64(plotY), colorbarW, float64(plotH), lo, hi, colorbarLabel)

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	return nil
}

func axisRange(axis []float64, n int) (float64, float64) {
	if len(axis) == 0 {
		return 0, float64(n - 1)
	}
	return axis[0], axis[len(axis)-1]
}

func tick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

package contour

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/yangatekane/bh-ea-dashboard/internal/render"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

// Options controls preprocessing and the iso level.
type Options struct {
	Level    float64
	BlurSize int
	Sigma    float64
	Title    string
}

// DefaultOptions matches the report pipeline: 7x7 Gaussian, level 0.5.
func DefaultOptions() Options {
	return Options{Level: 0.5, BlurSize: 7, Sigma: 1.4, Title: "Contour Report"}
}

// Feature is the derived geometry of one boundary curve. X is the column and
// Y the row of the source raster.
type Feature struct {
	Index    int             `json:"index"`
	Points   int             `json:"points"`
	Closed   bool            `json:"closed"`
	BBox     [4]float64      `json:"bbox"` // min_x, min_y, max_x, max_y
	Centroid [2]float64      `json:"centroid"`
	Area     float64         `json:"area"`
	Geometry json.RawMessage `json:"geometry"`
	WKT      string          `json:"wkt"`

	Line *geom.LineString `json:"-"`
}

// Stats summarises the smoothed raster.
type Stats struct {
	Mean         float64 `json:"mean"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	ContourCount int     `json:"contour_count"`
}

// Report is what Annotate produced.
type Report struct {
	ImagePath    string    `json:"-"`
	MetadataPath string    `json:"-"`
	Level        float64   `json:"level"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Stats        Stats     `json:"stats"`
	Features     []Feature `json:"contours"`
}

// MetadataPathFor returns the sidecar path for an output image.
func MetadataPathFor(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".json"
}

// Annotate loads inputPath, extracts contours and writes the annotated
// figure to outputPath plus a JSON sidecar next to it. A raster with no
// contours still yields both files.
func Annotate(inputPath, outputPath string, opt Options) (*Report, error) {
	if opt.BlurSize <= 0 || opt.BlurSize%2 == 0 {
		opt.BlurSize = 7
	}
	if opt.Sigma <= 0 {
		opt.Sigma = 0.3*(float64(opt.BlurSize-1)*0.5-1) + 0.8
	}
	if opt.Title == "" {
		opt.Title = DefaultOptions().Title
	}

	raster, err := LoadGray(inputPath)
	if err != nil {
		return nil, err
	}
	raster.Normalize()
	smooth := raster.Blur(opt.BlurSize, opt.Sigma)
	curves := FindContours(smooth, opt.Level)

	rep := &Report{
		ImagePath:    outputPath,
		MetadataPath: MetadataPathFor(outputPath),
		Level:        opt.Level,
		Width:        smooth.W,
		Height:       smooth.H,
		Features:     make([]Feature, 0, len(curves)),
	}
	rep.Stats.Mean, rep.Stats.Min, rep.Stats.Max = smooth.Stats()
	for i, c := range curves {
		f, err := featureOf(i, c)
		if err != nil {
			return nil, err
		}
		rep.Features = append(rep.Features, f)
	}
	rep.Stats.ContourCount = len(rep.Features)

	if err := utils.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return nil, err
	}
	if err := drawReport(smooth, curves, outputPath, opt.Title); err != nil {
		return nil, err
	}
	b, err := utils.PrettyJSON(rep)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(rep.MetadataPath, b); err != nil {
		return nil, err
	}
	return rep, nil
}

func featureOf(i int, c Curve) (Feature, error) {
	f := Feature{Index: i, Points: len(c.Points), Closed: c.Closed}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	coords := make([]geom.Coord, len(c.Points))
	var sx, sy float64
	for k, p := range c.Points {
		coords[k] = geom.Coord{p.Col, p.Row}
		minX, maxX = math.Min(minX, p.Col), math.Max(maxX, p.Col)
		minY, maxY = math.Min(minY, p.Row), math.Max(maxY, p.Row)
		sx += p.Col
		sy += p.Row
	}
	n := float64(len(c.Points))
	f.BBox = [4]float64{minX, minY, maxX, maxY}
	f.Centroid = [2]float64{sx / n, sy / n}
	f.Area = (maxX - minX) * (maxY - minY)

	ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return f, fmt.Errorf("contour %d geometry: %w", i, err)
	}
	f.Line = ls
	if f.Geometry, err = geojson.Marshal(ls); err != nil {
		return f, fmt.Errorf("contour %d geojson: %w", i, err)
	}
	if f.WKT, err = wkt.Marshal(ls); err != nil {
		return f, fmt.Errorf("contour %d wkt: %w", i, err)
	}
	return f, nil
}

// Figure layout in pixels.
const (
	targetSide   = 640.0
	marginLeft   = 20.0
	marginTop    = 50.0
	marginRight  = 120.0
	marginBottom = 20.0
)

func drawReport(r *Raster, curves []Curve, path, title string) error {
	scale := targetSide / math.Max(float64(r.W), float64(r.H))
	plotW := int(math.Round(float64(r.W) * scale))
	plotH := int(math.Round(float64(r.H) * scale))
	if plotW < 1 || plotH < 1 {
		return errors.New("raster too small to render")
	}
	dc := gg.NewContext(int(marginLeft)+plotW+int(marginRight), int(marginTop)+plotH+int(marginBottom))
	dc.SetColor(color.White)
	dc.Clear()

	_, lo, hi := r.Stats()
	field := render.Field{Rows: r.H, Cols: r.W, At: r.At, Min: lo, Max: hi, OriginLower: true}
	render.DrawScaled(dc, field.Colorize(), int(marginLeft), int(marginTop), plotW, plotH)

	// Data coordinates with origin lower: pixel centres sit at integer positions.
	toCanvas := func(row, col float64) (float64, float64) {
		return marginLeft + (col+0.5)*scale, marginTop + (float64(r.H)-0.5-row)*scale
	}

	dc.SetRGBA(1, 1, 1, 0.85)
	dc.SetLineWidth(1.5)
	for _, c := range curves {
		for k, p := range c.Points {
			x, y := toCanvas(p.Row, p.Col)
			if k == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}

	callout(dc, toCanvas, 30, 20, "High Yield Zone", color.NRGBA{0, 128, 0, 128})
	callout(dc, toCanvas, float64(r.H)-40, 20, "Low Resistivity Zone", color.NRGBA{200, 0, 0, 128})

	render.Colorbar(dc, marginLeft+float64(plotW)+16, marginTop, 14, float64(plotH), 0, 1,
		"Relative Resistivity / Yield Index")

	dc.SetColor(color.Black)
	render.SetFont(dc, 16)
	dc.DrawStringAnchored(title, marginLeft+float64(plotW)/2, marginTop/2, 0.5, 0.5)

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save report png: %w", err)
	}
	return nil
}

// callout draws a fixed label in a translucent rounded box anchored at the
// given data position. The positions are decorative and not derived from contours.
func callout(dc *gg.Context, toCanvas func(row, col float64) (float64, float64), row, col float64, text string, bg color.Color) {
	x, y := toCanvas(row, col)
	render.SetFont(dc, 12)
	w, h := dc.MeasureString(text)
	pad := 4.0
	dc.SetColor(bg)
	dc.DrawRoundedRectangle(x-pad, y-h-pad, w+2*pad, h+2*pad, 4)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawString(text, x, y)
}

// ReadMetadata loads a sidecar written by Annotate.
func ReadMetadata(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, fmt.Errorf("parse contour metadata: %w", err)
	}
	return &rep, nil
}

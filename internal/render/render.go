// Package render holds the drawing helpers shared by the raster and contour
// figures: the viridis colormap, font faces and a labelled colorbar.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// viridis anchors at t = 0, 0.1, ..., 1.
var viridis = [...]color.RGBA{
	{68, 1, 84, 255},
	{72, 35, 116, 255},
	{64, 67, 135, 255},
	{52, 94, 141, 255},
	{41, 120, 142, 255},
	{33, 145, 140, 255},
	{34, 168, 132, 255},
	{68, 191, 112, 255},
	{122, 209, 81, 255},
	{189, 223, 38, 255},
	{253, 231, 37, 255},
}

// Viridis maps t in [0,1] onto the viridis colormap. Values outside are clamped.
func Viridis(t float64) color.RGBA {
	if math.IsNaN(t) || t <= 0 {
		return viridis[0]
	}
	if t >= 1 {
		return viridis[len(viridis)-1]
	}
	pos := t * float64(len(viridis)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := viridis[i], viridis[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f)) }
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}

var (
	fontOnce sync.Once
	fontTT   *truetype.Font
	fontErr  error
)

// Face returns a Go Regular face at the given point size.
func Face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTT, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", fontErr)
	}
	return truetype.NewFace(fontTT, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// SetFont sets a Go Regular face on dc. Missing fonts leave gg's default face.
func SetFont(dc *gg.Context, size float64) {
	if face, err := Face(size); err == nil {
		dc.SetFontFace(face)
	}
}

// Field is a row-major scalar raster; row 0 is drawn at the bottom when
// OriginLower is set. NaN cells stay transparent.
type Field struct {
	Rows, Cols  int
	At          func(r, c int) float64
	Min, Max    float64
	OriginLower bool
}

// Colorize renders the field at its native resolution with the viridis map.
func (f Field) Colorize() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Cols, f.Rows))
	span := f.Max - f.Min
	for r := 0; r < f.Rows; r++ {
		y := r
		if f.OriginLower {
			y = f.Rows - 1 - r
		}
		for c := 0; c < f.Cols; c++ {
			v := f.At(r, c)
			if math.IsNaN(v) {
				continue
			}
			t := 0.5
			if span > 0 {
				t = (v - f.Min) / span
			}
			img.SetRGBA(c, y, Viridis(t))
		}
	}
	return img
}

// DrawScaled draws src into the rectangle at (x, y) with size (w, h) using
// nearest-neighbour sampling so grid cells keep hard edges.
func DrawScaled(dc *gg.Context, src image.Image, x, y, w, h int) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	dc.DrawImage(dst, x, y)
}

// Colorbar draws a vertical viridis bar with min/max ticks and a rotated label.
func Colorbar(dc *gg.Context, x, y, w, h float64, lo, hi float64, label string) {
	steps := int(h)
	for i := 0; i < steps; i++ {
		t := 1 - float64(i)/float64(steps-1)
		dc.SetColor(Viridis(t))
		dc.DrawRectangle(x, y+float64(i), w, 1)
		dc.Fill()
	}
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()

	SetFont(dc, 10)
	dc.DrawStringAnchored(formatTick(hi), x+w+4, y, 0, 0.5)
	dc.DrawStringAnchored(formatTick((lo+hi)/2), x+w+4, y+h/2, 0, 0.5)
	dc.DrawStringAnchored(formatTick(lo), x+w+4, y+h, 0, 0.5)

	SetFont(dc, 11)
	dc.Push()
	lx, ly := x+w+48, y+h/2
	dc.RotateAbout(gg.Radians(90), lx, ly)
	dc.DrawStringAnchored(label, lx, ly, 0.5, 0.5)
	dc.Pop()
}

func formatTick(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.Abs(v) >= 1000:
		return fmt.Sprintf("%.0f", v)
	case math.Abs(v) >= 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

package render

import (
	"math"
	"testing"

	"github.com/fogleman/gg"
)

func TestViridisEndpointsAndClamp(t *testing.T) {
	if got := Viridis(0); got != viridis[0] {
		t.Fatalf("Viridis(0) = %v", got)
	}
	if got := Viridis(1); got != viridis[len(viridis)-1] {
		t.Fatalf("Viridis(1) = %v", got)
	}
	if Viridis(-3) != Viridis(0) || Viridis(7) != Viridis(1) {
		t.Fatalf("out of range values not clamped")
	}
	mid := Viridis(0.5)
	if mid != viridis[5] {
		t.Fatalf("Viridis(0.5) = %v, want %v", mid, viridis[5])
	}
}

func TestColorizeLeavesNaNTransparent(t *testing.T) {
	vals := [][]float64{{0, math.NaN()}, {1, 2}}
	f := Field{Rows: 2, Cols: 2, Min: 0, Max: 2, OriginLower: true, At: func(r, c int) float64 { return vals[r][c] }}
	img := f.Colorize()
	// Row 0 is drawn at the bottom.
	if a := img.RGBAAt(1, 1).A; a != 0 {
		t.Fatalf("NaN cell alpha = %d, want 0", a)
	}
	if got := img.RGBAAt(0, 1); got != Viridis(0) {
		t.Fatalf("bottom-left = %v, want %v", got, Viridis(0))
	}
	if got := img.RGBAAt(1, 0); got != Viridis(1) {
		t.Fatalf("top-right = %v, want %v", got, Viridis(1))
	}
}

func TestFaceAndColorbar(t *testing.T) {
	if _, err := Face(12); err != nil {
		t.Fatalf("Face: %v", err)
	}
	dc := gg.NewContext(200, 200)
	Colorbar(dc, 10, 10, 12, 150, 0, 100, "Resistivity")
}

// Package contour extracts iso-intensity boundaries from a rendered raster
// image and writes an annotated report figure plus a geometry sidecar.
package contour

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// NotFoundError reports a missing input image.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("input image not found: %s", e.Path) }

// LoadError reports an input that exists but cannot be decoded as an image.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// MaxPixels bounds the declared size of an input image. Decoding, the float
// raster and both blur passes each scale with it.
const MaxPixels = 16 << 20

// Raster is a row-major float image. Row 0 is the first row of the source.
type Raster struct {
	W, H int
	Pix  []float64
}

func newRaster(w, h int) *Raster { return &Raster{W: w, H: h, Pix: make([]float64, w*h)} }

func (r *Raster) At(y, x int) float64 { return r.Pix[y*r.W+x] }

func (r *Raster) set(y, x int, v float64) { r.Pix[y*r.W+x] = v }

// Stats returns mean, min and max over all pixels.
func (r *Raster) Stats() (mean, lo, hi float64) {
	if len(r.Pix) == 0 {
		return 0, 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, v := range r.Pix {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return sum / float64(len(r.Pix)), lo, hi
}

// LoadGray decodes an image file into luma values in [0,255].
func LoadGray(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	conf, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if px := int64(conf.Width) * int64(conf.Height); px > MaxPixels {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("image is %dx%d, limit is %d pixels", conf.Width, conf.Height, MaxPixels)}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &LoadError{Path: path, Err: errors.New("empty image")}
	}
	out := newRaster(b.Dx(), b.Dy())
	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			out.set(y, x, luma)
		}
	}
	return out, nil
}

// Normalize rescales values to [0,1] in place. A flat raster becomes all zero.
func (r *Raster) Normalize() {
	_, lo, hi := r.Stats()
	span := hi - lo
	for i, v := range r.Pix {
		if span == 0 {
			r.Pix[i] = 0
			continue
		}
		r.Pix[i] = (v - lo) / span
	}
}

// Blur applies a separable Gaussian of the given odd size and sigma with
// reflect-101 borders and returns a new raster.
func (r *Raster) Blur(size int, sigma float64) *Raster {
	k := gaussianKernel(size, sigma)
	half := size / 2
	tmp := newRaster(r.W, r.H)
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			s := 0.0
			for i, w := range k {
				s += w * r.At(y, reflect101(x+i-half, r.W))
			}
			tmp.set(y, x, s)
		}
	}
	out := newRaster(r.W, r.H)
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			s := 0.0
			for i, w := range k {
				s += w * tmp.At(reflect101(y+i-half, r.H), x)
			}
			out.set(y, x, s)
		}
	}
	return out
}

func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// reflect101 mirrors an out-of-range index without repeating the edge pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

package contour

// Point is a sub-pixel position on the raster.
type Point struct {
	Row, Col float64
}

// Curve is an ordered boundary. Closed curves repeat their first point last.
type Curve struct {
	Points []Point
	Closed bool
}

type edgeKey struct {
	horiz bool
	r, c  int
}

type segment struct{ a, b edgeKey }

// FindContours traces iso-lines at level with marching squares and chains the
// cell segments into curves. Saddle cells are resolved by the cell-centre mean.
func FindContours(r *Raster, level float64) []Curve {
	if r.W < 2 || r.H < 2 {
		return nil
	}
	var segs []segment
	for y := 0; y < r.H-1; y++ {
		for x := 0; x < r.W-1; x++ {
			ul, ur := r.At(y, x), r.At(y, x+1)
			ll, lr := r.At(y+1, x), r.At(y+1, x+1)
			top := edgeKey{true, y, x}
			bottom := edgeKey{true, y + 1, x}
			left := edgeKey{false, y, x}
			right := edgeKey{false, y, x + 1}

			aUL, aUR, aLR, aLL := ul >= level, ur >= level, lr >= level, ll >= level
			var crossed []edgeKey
			if aUL != aUR {
				crossed = append(crossed, top)
			}
			if aUR != aLR {
				crossed = append(crossed, right)
			}
			if aLL != aLR {
				crossed = append(crossed, bottom)
			}
			if aUL != aLL {
				crossed = append(crossed, left)
			}
			switch len(crossed) {
			case 2:
				segs = append(segs, segment{crossed[0], crossed[1]})
			case 4:
				centre := (ul+ur+ll+lr)/4 >= level
				// Isolate the corners whose side differs from the centre.
				if aUL == centre {
					segs = append(segs, segment{top, right}, segment{left, bottom})
				} else {
					segs = append(segs, segment{top, left}, segment{right, bottom})
				}
			}
		}
	}
	return chain(r, level, segs)
}

func chain(r *Raster, level float64, segs []segment) []Curve {
	adj := make(map[edgeKey][]int, len(segs)*2)
	for i, s := range segs {
		adj[s.a] = append(adj[s.a], i)
		adj[s.b] = append(adj[s.b], i)
	}
	used := make([]bool, len(segs))

	walk := func(start edgeKey, first int) Curve {
		pts := []Point{edgePoint(r, level, start)}
		cur, seg := start, first
		for seg >= 0 {
			used[seg] = true
			s := segs[seg]
			next := s.b
			if s.a != cur {
				next = s.a
			}
			pts = append(pts, edgePoint(r, level, next))
			cur, seg = next, -1
			for _, cand := range adj[cur] {
				if !used[cand] {
					seg = cand
					break
				}
			}
		}
		return Curve{Points: pts, Closed: cur == start && len(pts) > 2}
	}

	var curves []Curve
	// Open curves start at border edges, which touch a single segment.
	for i, s := range segs {
		if used[i] {
			continue
		}
		for _, end := range []edgeKey{s.a, s.b} {
			if len(adj[end]) == 1 && !used[i] {
				curves = append(curves, walk(end, i))
			}
		}
	}
	for i, s := range segs {
		if !used[i] {
			curves = append(curves, walk(s.a, i))
		}
	}
	return curves
}

// edgePoint interpolates the level crossing along a grid edge.
func edgePoint(r *Raster, level float64, e edgeKey) Point {
	y0, x0 := e.r, e.c
	y1, x1 := y0+1, x0
	if e.horiz {
		y1, x1 = y0, x0+1
	}
	v0, v1 := r.At(y0, x0), r.At(y1, x1)
	t := 0.5
	if v1 != v0 {
		t = (level - v0) / (v1 - v0)
	}
	return Point{
		Row: float64(y0) + t*float64(y1-y0),
		Col: float64(x0) + t*float64(x1-x0),
	}
}

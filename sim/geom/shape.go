package geom

import "math"

// Segment is the closed line segment from A to B.
type Segment struct {
	A, B Point
}

// Length returns the length of the segment.
func (s Segment) Length() float64 {
	return s.A.DistanceTo(s.B)
}

// Intersect returns the point where s and o cross.
// Parallel segments (including collinear overlaps) report no intersection;
// callers testing against a rectangle pick up the crossing from the
// perpendicular edges instead.
func (s Segment) Intersect(o Segment) (Point, bool) {
	r := s.B.Sub(s.A)
	q := o.B.Sub(o.A)
	denom := r.Cross(q)
	if math.Abs(denom) < Epsilon {
		return Point{}, false
	}
	ao := o.A.Sub(s.A)
	t := ao.Cross(q) / denom
	u := ao.Cross(r) / denom
	if t < -Epsilon || t > 1+Epsilon || u < -Epsilon || u > 1+Epsilon {
		return Point{}, false
	}
	return s.A.Add(r.Scale(t)), true
}

// Rect is an axis-aligned rectangle. Min is the top-left corner in layout
// coordinates (Y grows downwards, as on screen).
type Rect struct {
	Min, Max Point
}

// RectAt builds the rectangle with top-left corner origin and the given size.
func RectAt(origin Point, width, height float64) Rect {
	return Rect{Min: origin, Max: Point{X: origin.X + width, Y: origin.Y + height}}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return r.Min.Lerp(r.Max, 0.5)
}

// Contains reports whether p lies inside or on the border of r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X-Epsilon && p.X <= r.Max.X+Epsilon &&
		p.Y >= r.Min.Y-Epsilon && p.Y <= r.Max.Y+Epsilon
}

// Expand grows r by margin on every side. A negative margin shrinks it.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		Min: Point{X: r.Min.X - margin, Y: r.Min.Y - margin},
		Max: Point{X: r.Max.X + margin, Y: r.Max.Y + margin},
	}
}

// Edges returns the four borders in clockwise order: top, right, bottom, left.
func (r Rect) Edges() [4]Segment {
	tl := r.Min
	tr := Point{X: r.Max.X, Y: r.Min.Y}
	br := r.Max
	bl := Point{X: r.Min.X, Y: r.Max.Y}
	return [4]Segment{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}
}

// Crossings returns the distinct points where the polyline pts crosses the
// border of r, in path order. Points closer than tol to an already recorded
// crossing are merged, so a polyline passing exactly through a corner (or a
// sample landing on an edge) is counted once.
func (r Rect) Crossings(pts []Point, tol float64) []Point {
	var out []Point
	edges := r.Edges()
	for i := 0; i+1 < len(pts); i++ {
		seg := Segment{pts[i], pts[i+1]}
		var hits []Point
		for _, e := range edges {
			if p, ok := seg.Intersect(e); ok {
				hits = append(hits, p)
			}
		}
		// order hits along the segment direction
		if len(hits) > 1 {
			sortAlong(hits, seg.A)
		}
		for _, h := range hits {
			if len(out) > 0 && containsNear(out, h, tol) {
				continue
			}
			out = append(out, h)
		}
	}
	return out
}

func sortAlong(pts []Point, origin Point) {
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && origin.DistanceTo(pts[j]) < origin.DistanceTo(pts[j-1]); j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}
}

func containsNear(pts []Point, p Point, tol float64) bool {
	for _, q := range pts {
		if q.Near(p, tol) {
			return true
		}
	}
	return false
}

package geom

import (
	"gonum.org/v1/gonum/integrate/quad"
)

const (
	// curveSamples is the number of polyline pieces each cubic is flattened into.
	curveSamples = 24
	// quadPoints is the Gauss-Legendre order used for arc length.
	quadPoints = 16
)

// Cubic is a cubic Bézier curve with control points P0..P3.
type Cubic struct {
	P0, P1, P2, P3 Point
}

// At evaluates the curve at parameter t in [0,1].
func (c Cubic) At(t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	d := 3 * mt * t * t
	e := t * t * t
	return Point{
		X: a*c.P0.X + b*c.P1.X + d*c.P2.X + e*c.P3.X,
		Y: a*c.P0.Y + b*c.P1.Y + d*c.P2.Y + e*c.P3.Y,
	}
}

// Derivative evaluates dB/dt at t.
func (c Cubic) Derivative(t float64) Point {
	mt := 1 - t
	a := 3 * mt * mt
	b := 6 * mt * t
	d := 3 * t * t
	return c.P1.Sub(c.P0).Scale(a).Add(c.P2.Sub(c.P1).Scale(b)).Add(c.P3.Sub(c.P2).Scale(d))
}

// Length returns the arc length of the curve.
func (c Cubic) Length() float64 {
	speed := func(t float64) float64 { return c.Derivative(t).Len() }
	return quad.Fixed(speed, 0, 1, quadPoints, nil, 0)
}

// Path is the route a wire follows from its output anchor, through zero or
// more bend points, to its input anchor.
//
// Without bends the path is the straight segment between the anchors. With
// bends it is a chain of tangent-continuous cubics: interior knots use
// Catmull-Rom tangents and the two anchors use the facing direction of their
// port, so a wire always leaves an output and enters an input head-on.
type Path struct {
	Start, End       Point
	StartDir, EndDir Point
	Bends            []Point

	curves []Cubic
	length float64
}

// NewPath builds the path through bends. startDir is the direction a packet
// travels when leaving Start, endDir the direction it travels when reaching
// End; both are normalised.
func NewPath(start, startDir, end, endDir Point, bends []Point) Path {
	p := Path{
		Start:    start,
		End:      end,
		StartDir: startDir.Unit(),
		EndDir:   endDir.Unit(),
		Bends:    append([]Point(nil), bends...),
	}
	if len(bends) == 0 {
		p.length = start.DistanceTo(end)
		return p
	}
	knots := p.Knots()
	tangents := make([]Point, len(knots))
	last := len(knots) - 1
	for i := range knots {
		switch i {
		case 0:
			tangents[i] = p.StartDir.Scale(knots[0].DistanceTo(knots[1]))
		case last:
			tangents[i] = p.EndDir.Scale(knots[last-1].DistanceTo(knots[last]))
		default:
			tangents[i] = knots[i+1].Sub(knots[i-1]).Scale(0.5)
		}
	}
	p.curves = make([]Cubic, 0, last)
	for i := 0; i < last; i++ {
		c := Cubic{
			P0: knots[i],
			P1: knots[i].Add(tangents[i].Scale(1.0 / 3)),
			P2: knots[i+1].Sub(tangents[i+1].Scale(1.0 / 3)),
			P3: knots[i+1],
		}
		p.curves = append(p.curves, c)
		p.length += c.Length()
	}
	return p
}

// Knots returns start, bends and end in order.
func (p Path) Knots() []Point {
	knots := make([]Point, 0, len(p.Bends)+2)
	knots = append(knots, p.Start)
	knots = append(knots, p.Bends...)
	return append(knots, p.End)
}

// Straight reports whether the path has no bends.
func (p Path) Straight() bool {
	return len(p.curves) == 0
}

// Curves returns the cubic pieces (nil for a straight path).
func (p Path) Curves() []Cubic {
	return p.curves
}

// Length returns the arc length of the path.
func (p Path) Length() float64 {
	return p.length
}

// Polyline flattens the path into points suitable for intersection tests.
func (p Path) Polyline() []Point {
	if p.Straight() {
		return []Point{p.Start, p.End}
	}
	pts := make([]Point, 0, len(p.curves)*curveSamples+1)
	pts = append(pts, p.Start)
	for _, c := range p.curves {
		for i := 1; i <= curveSamples; i++ {
			pts = append(pts, c.At(float64(i)/curveSamples))
		}
	}
	return pts
}

// PointAt returns the position at fraction frac of the path's length,
// measured along the flattened polyline. frac is clamped to [0,1].
func (p Path) PointAt(frac float64) Point {
	if frac <= 0 {
		return p.Start
	}
	if frac >= 1 {
		return p.End
	}
	pts := p.Polyline()
	total := 0.0
	for i := 0; i+1 < len(pts); i++ {
		total += pts[i].DistanceTo(pts[i+1])
	}
	target := frac * total
	for i := 0; i+1 < len(pts); i++ {
		step := pts[i].DistanceTo(pts[i+1])
		if target <= step && step > 0 {
			return pts[i].Lerp(pts[i+1], target/step)
		}
		target -= step
	}
	return p.End
}

// Package geom holds the plane geometry used for wire layout: points,
// segments, system footprints and the smooth paths wires follow through
// bend points.
//
// This package has no dependencies on sim/ and stores pure values.
package geom

import (
	"fmt"
	"math"
)

// Epsilon is the tolerance used for intersection and coincidence tests.
const Epsilon = 1e-9

// Point is a position (or a direction) in layout units.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Cross returns the z component of the 3-D cross product of p and q.
func (p Point) Cross(q Point) float64 {
	return p.X*q.Y - p.Y*q.X
}

// Len returns the Euclidean norm.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// DistanceTo returns the straight-line distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	return q.Sub(p).Len()
}

// Unit returns p scaled to length 1. The zero vector is returned unchanged.
func (p Point) Unit() Point {
	l := p.Len()
	if l < Epsilon {
		return p
	}
	return p.Scale(1 / l)
}

// Lerp interpolates linearly between p (t=0) and q (t=1).
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// Near reports whether p and q coincide within tol.
func (p Point) Near(q Point, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

func (p Point) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

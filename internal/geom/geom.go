// Package geom provides the 2D vector and distance math shared by every
// decision layer. Positions live on the depot floor plane (x, z).
package geom

import "math"

// Epsilon guards degenerate distances — two entities closer than this are
// treated as coincident.
const Epsilon = 1e-9

// Vec2 is a point or offset on the floor plane.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Z: v.Z - o.Z}
}

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Z: v.Z * s}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Z)
}

// LenSq returns the squared length of v.
func (v Vec2) LenSq() float64 {
	return v.X*v.X + v.Z*v.Z
}

// Normalize returns v scaled to unit length. A vector shorter than Epsilon
// normalizes to the zero vector instead of dividing by zero.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l < Epsilon {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Z: v.Z / l}
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Vec2) float64 {
	return a.Sub(b).Len()
}

// DistSq returns the squared distance between a and b. Preferred for
// comparisons — no square root.
func DistSq(a, b Vec2) float64 {
	return a.Sub(b).LenSq()
}

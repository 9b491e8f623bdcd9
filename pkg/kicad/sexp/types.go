// Package sexp provides shared S-expression navigation for KiCad files.
// This package contains the types and helpers common to the symbol,
// footprint and schematic parsers.
package sexp

import "math"

// Point is a 2D coordinate in millimeters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Placement combines a position with a rotation in degrees.
type Placement struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// Size represents dimensions
type Size struct {
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Min returns the smaller of the two dimensions.
func (s Size) Min() float64 {
	return math.Min(s.Width, s.Height)
}

// Max returns the larger of the two dimensions.
func (s Size) Max() float64 {
	return math.Max(s.Width, s.Height)
}

// QuarterTurn snaps an angle in degrees to the nearest of 0, 90, 180, 270.
func QuarterTurn(deg float64) float64 {
	q := int(math.Round(deg/90)) % 4
	if q < 0 {
		q += 4
	}
	return float64(q * 90)
}

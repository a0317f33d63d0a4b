package geometry

import "math"

// PointerKind identifies the input device behind a pointer event.
type PointerKind string

const (
	PointerMouse PointerKind = "mouse"
	PointerTouch PointerKind = "touch"
	PointerPen   PointerKind = "pen"
)

const (
	// Padding is added around every object's bounds to ease grabbing.
	Padding = 5.0

	// MouseThreshold is the hit distance for mouse input, in scene units.
	MouseThreshold = 10.0
)

// Threshold returns the hit distance for kind. Touch and pen contacts are
// imprecise, so their threshold is doubled.
func Threshold(kind PointerKind) float64 {
	if kind == PointerTouch || kind == PointerPen {
		return MouseThreshold * 2
	}
	return MouseThreshold
}

// DistanceToSegment returns the distance from p to the segment ab using the
// projection of p onto the segment, clamped to its endpoints.
func DistanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Point{a.X + t*dx, a.Y + t*dy})
}

// DistanceToPolyline returns the minimum distance from p to the polyline
// through pts. A single point degenerates to point distance; an empty
// polyline is infinitely far.
func DistanceToPolyline(p Point, pts []Point) float64 {
	switch len(pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return p.Distance(pts[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		best = math.Min(best, DistanceToSegment(p, pts[i-1], pts[i]))
	}
	return best
}

// InTriangle reports whether p lies inside (or on) triangle abc.
func InTriangle(p, a, b, c Point) bool {
	sign := func(p1, p2, p3 Point) float64 {
		return (p1.X-p3.X)*(p2.Y-p3.Y) - (p2.X-p3.X)*(p1.Y-p3.Y)
	}
	d1 := sign(p, a, b)
	d2 := sign(p, b, c)
	d3 := sign(p, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

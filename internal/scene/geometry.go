package scene

import (
	"math"

	"github.com/inamate/whiteboard/internal/geometry"
)

// RawBounds returns the unpadded axis-aligned box of obj in scene space.
func RawBounds(obj Object) geometry.Rect {
	switch o := obj.(type) {
	case *Stroke:
		return geometry.RectFromPoints(o.Points)
	case *Text:
		w, h := geometry.MeasureText(o.Text, o.FontSize)
		return geometry.NewRect(o.X, o.Y, w, h)
	case *Shape:
		return geometry.Normalize(o.X, o.Y, o.Width, o.Height)
	case *Line:
		return geometry.Normalize(o.X1, o.Y1, o.X2-o.X1, o.Y2-o.Y1)
	}
	return geometry.Rect{}
}

// Bounds returns the grab box of obj: its raw bounds plus a fixed padding.
func Bounds(obj Object) geometry.Rect {
	return RawBounds(obj).Inset(geometry.Padding)
}

// ResizeHandles returns the eight handle positions around obj's bounds.
func ResizeHandles(obj Object) map[geometry.Handle]geometry.Point {
	return geometry.HandlePositions(Bounds(obj))
}

// HandleAtPoint returns the handle of obj within the pointer threshold of p.
func HandleAtPoint(p geometry.Point, obj Object, kind geometry.PointerKind) (geometry.Handle, bool) {
	threshold := geometry.Threshold(kind)
	handles := ResizeHandles(obj)
	for _, h := range geometry.Handles {
		if p.Distance(handles[h]) <= threshold {
			return h, true
		}
	}
	return "", false
}

// HitTest reports whether p touches obj. Outlines are hit within the
// pointer threshold; filled shapes are also hit anywhere inside.
func HitTest(p geometry.Point, obj Object, kind geometry.PointerKind) bool {
	threshold := geometry.Threshold(kind)

	switch o := obj.(type) {
	case *Stroke:
		return geometry.DistanceToPolyline(p, o.Points) < threshold
	case *Text:
		return Bounds(o).Contains(p)
	case *Shape:
		return hitShape(p, o, threshold)
	case *Line:
		a, b := geometry.Point{X: o.X1, Y: o.Y1}, geometry.Point{X: o.X2, Y: o.Y2}
		return geometry.DistanceToSegment(p, a, b) < threshold
	}
	return false
}

func hitShape(p geometry.Point, s *Shape, threshold float64) bool {
	filled := s.Fill != ""
	r := geometry.Normalize(s.X, s.Y, s.Width, s.Height)

	switch s.Type {
	case TypeRectangle:
		if filled && r.Contains(p) {
			return true
		}
		corners := []geometry.Point{{X: r.X, Y: r.Y}, {X: r.Right(), Y: r.Y}, {X: r.Right(), Y: r.Bottom()}, {X: r.X, Y: r.Bottom()}, {X: r.X, Y: r.Y}}
		return geometry.DistanceToPolyline(p, corners) < threshold

	case TypeEllipse:
		rx, ry := r.Width/2, r.Height/2
		if rx == 0 || ry == 0 {
			a := geometry.Point{X: r.X, Y: r.Y}
			b := geometry.Point{X: r.Right(), Y: r.Bottom()}
			return geometry.DistanceToSegment(p, a, b) < threshold
		}
		dx, dy := (p.X-r.CenterX)/rx, (p.Y-r.CenterY)/ry
		norm := math.Sqrt(dx*dx + dy*dy)
		if filled && norm <= 1 {
			return true
		}
		return math.Abs(norm-1)*math.Min(rx, ry) < threshold

	case TypeTriangle:
		a, b, c := TriangleVertices(s)
		if filled && geometry.InTriangle(p, a, b, c) {
			return true
		}
		return geometry.DistanceToPolyline(p, []geometry.Point{a, b, c, a}) < threshold
	}
	return false
}

// TriangleVertices returns apex, right base and left base corners. The
// signed extents are honored, so a triangle dragged upward points down.
func TriangleVertices(s *Shape) (geometry.Point, geometry.Point, geometry.Point) {
	return geometry.Point{X: s.X + s.Width/2, Y: s.Y},
		geometry.Point{X: s.X + s.Width, Y: s.Y + s.Height},
		geometry.Point{X: s.X, Y: s.Y + s.Height}
}

// ArrowHead returns the two barb points of an arrow at (X2, Y2).
func ArrowHead(l *Line) (geometry.Point, geometry.Point) {
	const (
		headLength = 15.0
		headAngle  = math.Pi / 6
	)
	angle := math.Atan2(l.Y2-l.Y1, l.X2-l.X1)
	left := geometry.Point{
		X: l.X2 - headLength*math.Cos(angle-headAngle),
		Y: l.Y2 - headLength*math.Sin(angle-headAngle),
	}
	right := geometry.Point{
		X: l.X2 - headLength*math.Cos(angle+headAngle),
		Y: l.Y2 - headLength*math.Sin(angle+headAngle),
	}
	return left, right
}

// translate shifts every coordinate of obj by (dx, dy) in place.
func translate(obj Object, dx, dy float64) {
	switch o := obj.(type) {
	case *Stroke:
		for i := range o.Points {
			o.Points[i] = o.Points[i].Add(dx, dy)
		}
	case *Text:
		o.X += dx
		o.Y += dy
	case *Shape:
		o.X += dx
		o.Y += dy
	case *Line:
		o.X1 += dx
		o.Y1 += dy
		o.X2 += dx
		o.Y2 += dy
	}
}

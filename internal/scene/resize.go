package scene

import (
	"github.com/inamate/whiteboard/internal/geometry"
)

const (
	MinStrokeScale = 0.1
	MaxStrokeScale = 10.0

	MinFontSize = 8.0
	MaxFontSize = 200.0
)

// ResizeObject returns a copy of original resized by dragging handle h by
// (dx, dy). The edge or corner opposite h stays fixed. The delta is the
// cumulative gesture delta and original is the pre-gesture object, so
// repeated pointer moves never compound.
func ResizeObject(original Object, h geometry.Handle, dx, dy float64) Object {
	out := original.Clone()
	switch o := out.(type) {
	case *Shape:
		resizeShape(o, h, dx, dy)
	case *Stroke:
		resizeStroke(o, h, dx, dy)
	case *Text:
		resizeText(o, h, dx, dy)
	case *Line:
		resizeLine(o, h, dx, dy)
	}
	return out
}

// resizeShape normalizes a shape drawn leftward or upward before moving its
// edges, so the handle's side of the visible box is the one that follows.
func resizeShape(s *Shape, h geometry.Handle, dx, dy float64) {
	r := geometry.Normalize(s.X, s.Y, s.Width, s.Height)
	s.X, s.Y, s.Width, s.Height = r.X, r.Y, r.Width, r.Height

	if h.East() {
		s.Width += dx
	}
	if h.West() {
		s.X += dx
		s.Width -= dx
	}
	if h.South() {
		s.Height += dy
	}
	if h.North() {
		s.Y += dy
		s.Height -= dy
	}
}

// axisScale returns the scale factor and fixed anchor coordinate along one
// axis of the original bounds [lo, lo+extent].
func axisScale(lo, extent, delta float64, growHigh, growLow bool) (scale, anchor float64, ok bool) {
	if extent == 0 {
		return 1, lo, false
	}
	switch {
	case growHigh:
		return (extent + delta) / extent, lo, true
	case growLow:
		return (extent - delta) / extent, lo + extent, true
	}
	return 1, lo, false
}

// resizeStroke scales around the padded grab box, where the handles sit.
func resizeStroke(s *Stroke, h geometry.Handle, dx, dy float64) {
	ob := Bounds(s)

	scaleX, anchorX, _ := axisScale(ob.X, ob.Width, dx, h.East(), h.West())
	scaleY, anchorY, _ := axisScale(ob.Y, ob.Height, dy, h.South(), h.North())
	scaleX = geometry.Clamp(scaleX, MinStrokeScale, MaxStrokeScale)
	scaleY = geometry.Clamp(scaleY, MinStrokeScale, MaxStrokeScale)

	for i, p := range s.Points {
		s.Points[i] = geometry.Point{
			X: anchorX + (p.X-anchorX)*scaleX,
			Y: anchorY + (p.Y-anchorY)*scaleY,
		}
	}
}

func resizeText(t *Text, h geometry.Handle, dx, dy float64) {
	ob := RawBounds(t)

	scaleX, _, okX := axisScale(ob.X, ob.Width, dx, h.East(), h.West())
	scaleY, _, okY := axisScale(ob.Y, ob.Height, dy, h.South(), h.North())

	var scale float64
	switch {
	case okX && okY:
		scale = max(scaleX, scaleY)
	case okX:
		scale = scaleX
	case okY:
		scale = scaleY
	default:
		return
	}

	fontSize := geometry.Clamp(t.FontSize*scale, MinFontSize, MaxFontSize)
	ratio := fontSize / t.FontSize
	t.FontSize = fontSize

	// Text grows from its top-left anchor; keep the dragged side's opposite edge fixed.
	if h.West() {
		t.X = ob.Right() - ob.Width*ratio
	}
	if h.North() {
		t.Y = ob.Bottom() - ob.Height*ratio
	}
}

func resizeLine(l *Line, h geometry.Handle, dx, dy float64) {
	// Decide on the original coordinates; an endpoint level with the other
	// lies on both sides and moves with either handle.
	x1, y1, x2, y2 := l.X1, l.Y1, l.X2, l.Y2

	if h.East() {
		if x1 >= x2 {
			l.X1 += dx
		}
		if x2 >= x1 {
			l.X2 += dx
		}
	}
	if h.West() {
		if x1 <= x2 {
			l.X1 += dx
		}
		if x2 <= x1 {
			l.X2 += dx
		}
	}
	if h.South() {
		if y1 >= y2 {
			l.Y1 += dy
		}
		if y2 >= y1 {
			l.Y2 += dy
		}
	}
	if h.North() {
		if y1 <= y2 {
			l.Y1 += dy
		}
		if y2 <= y1 {
			l.Y2 += dy
		}
	}
}

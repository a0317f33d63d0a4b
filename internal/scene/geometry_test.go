package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inamate/whiteboard/internal/geometry"
)

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

func TestStrokeHitThreshold(t *testing.T) {
	st := NewStroke([]geometry.Point{pt(50, 50)}, "#000", 2, ToolPen)

	assert.True(t, HitTest(pt(58, 50), st, geometry.PointerMouse), "distance 8 < 10")
	assert.False(t, HitTest(pt(65, 50), st, geometry.PointerMouse), "distance 15 > 10")
	assert.True(t, HitTest(pt(65, 50), st, geometry.PointerTouch), "touch threshold is 20")
}

func TestBoundsArePadded(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want geometry.Rect
	}{
		{"stroke", NewStroke([]geometry.Point{pt(0, 0), pt(10, 20)}, "#000", 1, ToolPen), geometry.NewRect(-5, -5, 20, 30)},
		{"signed rect", NewShape(TypeRectangle, 10, 10, -10, -10, "#000", 1), geometry.NewRect(-5, -5, 20, 20)},
		{"line", NewLine(TypeLine, 10, 0, 0, 10, "#000", 1), geometry.NewRect(-5, -5, 20, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bounds(tt.obj))
		})
	}
}

func TestTextBoundsUseMeasuredText(t *testing.T) {
	short := Bounds(NewText("hi", 0, 0, "#000", 20))
	long := Bounds(NewText("hello there", 0, 0, "#000", 20))
	assert.Greater(t, long.Width, short.Width)
	assert.InDelta(t, 24+2*geometry.Padding, short.Height, 1e-9)

	tx := NewText("hello there", 0, 0, "#000", 20)
	assert.True(t, HitTest(pt(long.CenterX, long.CenterY), tx, geometry.PointerMouse))
	assert.False(t, HitTest(pt(long.Right()+1, 0), tx, geometry.PointerMouse))
}

func TestShapeHitBorderVersusFill(t *testing.T) {
	tests := []struct {
		kind   ObjectType
		border geometry.Point
	}{
		{TypeRectangle, pt(0, 50)},
		{TypeEllipse, pt(0, 50)},
		{TypeTriangle, pt(100, 100)},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s := NewShape(tt.kind, 0, 0, 100, 100, "#000", 2)
			assert.True(t, HitTest(tt.border, s, geometry.PointerMouse), "border")
			assert.False(t, HitTest(pt(50, 60), s, geometry.PointerMouse), "hollow interior")
			assert.False(t, HitTest(pt(300, 300), s, geometry.PointerMouse), "far away")

			s.Fill = "#ccc"
			assert.True(t, HitTest(pt(50, 60), s, geometry.PointerMouse), "filled interior")
		})
	}
}

func TestLineHit(t *testing.T) {
	ln := NewLine(TypeArrow, 0, 0, 100, 0, "#000", 2)
	assert.True(t, HitTest(pt(50, 9), ln, geometry.PointerMouse))
	assert.False(t, HitTest(pt(50, 12), ln, geometry.PointerMouse))
	assert.True(t, HitTest(pt(50, 12), ln, geometry.PointerTouch))
	assert.False(t, HitTest(pt(120, 0), ln, geometry.PointerMouse), "projection is clamped")
}

func TestHandleAtPoint(t *testing.T) {
	s := NewShape(TypeRectangle, 0, 0, 100, 100, "#000", 2)
	// Padded bounds are (-5,-5)-(105,105).
	h, ok := HandleAtPoint(pt(103, 104), s, geometry.PointerMouse)
	assert.True(t, ok)
	assert.Equal(t, geometry.HandleSE, h)

	h, ok = HandleAtPoint(pt(50, -3), s, geometry.PointerMouse)
	assert.True(t, ok)
	assert.Equal(t, geometry.HandleN, h)

	_, ok = HandleAtPoint(pt(50, 50), s, geometry.PointerMouse)
	assert.False(t, ok)
}

func TestResizeHandlesFollowBounds(t *testing.T) {
	s := NewShape(TypeRectangle, 0, 0, 100, 100, "#000", 2)
	handles := ResizeHandles(s)
	assert.Equal(t, pt(-5, -5), handles[geometry.HandleNW])
	assert.Equal(t, pt(105, 50), handles[geometry.HandleE])
}

func TestGeometryIsDeterministic(t *testing.T) {
	st := NewStroke([]geometry.Point{pt(0, 0), pt(30, 40)}, "#000", 2, ToolPen)
	assert.Equal(t, Bounds(st), Bounds(st))
	assert.Equal(t, HitTest(pt(15, 20), st, geometry.PointerPen), HitTest(pt(15, 20), st, geometry.PointerPen))
}

func TestTopmostAtPrefersNewest(t *testing.T) {
	s := New()
	a := NewShape(TypeRectangle, 0, 0, 100, 100, "#000", 2)
	a.Fill = "#fff"
	b := NewShape(TypeRectangle, 0, 0, 100, 100, "#000", 2)
	b.Fill = "#fff"
	s.Append(a)
	s.Append(b)

	i, ok := s.TopmostAt(pt(50, 50), geometry.PointerMouse)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	s.MarkDeleted(1)
	i, ok = s.TopmostAt(pt(50, 50), geometry.PointerMouse)
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

// Package viewport maps between screen pixels and scene units.
package viewport

import (
	"github.com/inamate/whiteboard/internal/geometry"
)

const (
	MinScale = 0.1
	MaxScale = 10.0
)

// Viewport is a uniform scale followed by a translation:
//
//	screen = scene*Scale + (TranslateX, TranslateY)
type Viewport struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// New returns the identity viewport.
func New() Viewport {
	return Viewport{Scale: 1}
}

// Matrix returns the scene-to-screen transform.
func (v Viewport) Matrix() geometry.Matrix2D {
	return geometry.Translate(v.TranslateX, v.TranslateY).Multiply(geometry.Scale(v.scale(), v.scale()))
}

func (v Viewport) scale() float64 {
	if v.Scale == 0 {
		return 1
	}
	return v.Scale
}

// ScreenToScene converts a screen position to scene coordinates.
func (v Viewport) ScreenToScene(p geometry.Point) geometry.Point {
	s := v.scale()
	return geometry.Point{
		X: (p.X - v.TranslateX) / s,
		Y: (p.Y - v.TranslateY) / s,
	}
}

// SceneToScreen converts a scene position to screen coordinates.
func (v Viewport) SceneToScreen(p geometry.Point) geometry.Point {
	s := v.scale()
	return geometry.Point{
		X: p.X*s + v.TranslateX,
		Y: p.Y*s + v.TranslateY,
	}
}

// ScreenDelta converts a screen-space distance into scene units.
func (v Viewport) ScreenDelta(dx, dy float64) (float64, float64) {
	s := v.scale()
	return dx / s, dy / s
}

// ZoomAt multiplies the scale by factor, clamped to [MinScale, MaxScale],
// keeping the scene point under the screen position p fixed.
func (v *Viewport) ZoomAt(p geometry.Point, factor float64) {
	if factor <= 0 {
		return
	}
	anchor := v.ScreenToScene(p)
	v.Scale = geometry.Clamp(v.scale()*factor, MinScale, MaxScale)
	v.TranslateX = p.X - anchor.X*v.Scale
	v.TranslateY = p.Y - anchor.Y*v.Scale
}

// PanBy shifts the view by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.TranslateX += dx
	v.TranslateY += dy
}

// VisibleRect returns the scene-space rectangle shown in a screen of the
// given size.
func (v Viewport) VisibleRect(width, height float64) geometry.Rect {
	tl := v.ScreenToScene(geometry.Point{})
	br := v.ScreenToScene(geometry.Point{X: width, Y: height})
	return geometry.NewRect(tl.X, tl.Y, br.X-tl.X, br.Y-tl.Y)
}

// Fit returns the viewport that centers area in a screen of the given size,
// leaving margin screen pixels on every side. The scale is clamped to
// [MinScale, MaxScale]; a degenerate area keeps scale 1.
func Fit(area geometry.Rect, width, height, margin float64) Viewport {
	v := New()
	availW, availH := width-2*margin, height-2*margin
	if area.Width > 0 && area.Height > 0 && availW > 0 && availH > 0 {
		v.Scale = geometry.Clamp(min(availW/area.Width, availH/area.Height), MinScale, MaxScale)
	}
	v.TranslateX = width/2 - (area.X+area.Width/2)*v.Scale
	v.TranslateY = height/2 - (area.Y+area.Height/2)*v.Scale
	return v
}

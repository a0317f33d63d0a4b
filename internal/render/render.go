// Package render rasterizes a scene with gogpu/gg.
package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/gogpu/gg"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/viewport"
)

const (
	DefaultWidth      = 1280
	DefaultHeight     = 720
	DefaultBackground = "#ffffff"

	dataURLPrefix = "data:image/png;base64,"
)

var ErrNotPNGDataURL = errors.New("not a PNG data URL")

// Renderer draws scenes into fixed-size images.
type Renderer struct {
	Width      int
	Height     int
	Background string
}

func New(width, height int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Renderer{Width: width, Height: height, Background: DefaultBackground}
}

// Frame is everything drawn in one pass besides the committed scene.
type Frame struct {
	View viewport.Viewport

	// Backdrop is drawn first, unscaled, e.g. a raster a peer sent on undo.
	Backdrop image.Image

	// Overlay objects are drawn above the scene: peers' in-progress strokes
	// and the local draft.
	Overlay []scene.Object

	// Selected, when non-nil, gets its resize handles drawn.
	Selected scene.Object
}

// Render draws s into a new context. Tombstoned objects are skipped and
// sticky notes are painted above all objects in z-order.
func (r *Renderer) Render(s *scene.Scene, f Frame) *gg.Context {
	if f.View.Scale == 0 {
		f.View = viewport.New()
	}
	dc := gg.NewContext(r.Width, r.Height)
	dc.ClearWithColor(gg.Hex(r.background()))
	if f.Backdrop != nil {
		dc.DrawImage(gg.ImageBufFromImage(f.Backdrop), 0, 0)
	}

	p := painter{dc: dc, view: f.View, background: r.background()}
	for _, obj := range s.Objects() {
		if obj.Header().Deleted {
			continue
		}
		p.object(obj)
	}
	for _, obj := range f.Overlay {
		p.object(obj)
	}
	for _, n := range s.Notes() {
		p.note(n)
	}
	if f.Selected != nil {
		p.handles(f.Selected)
	}
	return dc
}

func (r *Renderer) background() string {
	if r.Background == "" {
		return DefaultBackground
	}
	return r.Background
}

// PNG renders s and encodes it.
func (r *Renderer) PNG(s *scene.Scene, f Frame) ([]byte, error) {
	dc := r.Render(s, f)
	defer dc.Close()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL renders s as a base64 PNG data URL.
func (r *Renderer) DataURL(s *scene.Scene, f Frame) (string, error) {
	data, err := r.PNG(s, f)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL parses a base64 PNG data URL.
func DecodeDataURL(s string) (image.Image, error) {
	encoded, ok := strings.CutPrefix(s, dataURLPrefix)
	if !ok {
		return nil, ErrNotPNGDataURL
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// painter maps scene coordinates through the viewport by hand so that line
// widths and font sizes scale with the view.
type painter struct {
	dc         *gg.Context
	view       viewport.Viewport
	background string
}

func (p painter) pt(x, y float64) geometry.Point {
	return p.view.SceneToScreen(geometry.Point{X: x, Y: y})
}

func (p painter) width(size float64) float64 {
	return max(size*p.view.Scale, 1)
}

func (p painter) object(obj scene.Object) {
	switch o := obj.(type) {
	case *scene.Stroke:
		p.stroke(o)
	case *scene.Text:
		p.text(o)
	case *scene.Shape:
		p.shape(o)
	case *scene.Line:
		p.line(o)
	}
}

// stroke paints erase strokes in the background color.
func (p painter) stroke(s *scene.Stroke) {
	if len(s.Points) == 0 {
		return
	}
	color := s.Color
	if s.Tool == scene.ToolErase {
		color = p.background
	}
	p.dc.SetHexColor(color)

	if len(s.Points) == 1 {
		c := p.pt(s.Points[0].X, s.Points[0].Y)
		p.dc.DrawCircle(c.X, c.Y, p.width(s.Size)/2)
		_ = p.dc.Fill()
		return
	}

	p.dc.SetLineWidth(p.width(s.Size))
	p.dc.SetLineCap(gg.LineCapRound)
	p.dc.SetLineJoin(gg.LineJoinRound)
	first := p.pt(s.Points[0].X, s.Points[0].Y)
	p.dc.MoveTo(first.X, first.Y)
	for _, pt := range s.Points[1:] {
		q := p.pt(pt.X, pt.Y)
		p.dc.LineTo(q.X, q.Y)
	}
	_ = p.dc.Stroke()
}

func (p painter) text(t *scene.Text) {
	src := geometry.FontSource()
	if src == nil || t.Text == "" {
		return
	}
	size := t.FontSize * p.view.Scale
	if size <= 0 {
		return
	}
	face := src.Face(size)
	p.dc.SetFont(face)
	p.dc.SetHexColor(t.Color)

	ascent := face.Metrics().Ascent
	origin := p.pt(t.X, t.Y)
	for i, line := range strings.Split(t.Text, "\n") {
		y := origin.Y + ascent + float64(i)*size*geometry.LineHeight
		p.dc.DrawString(line, origin.X, y)
	}
}

func (p painter) shape(s *scene.Shape) {
	r := geometry.Normalize(s.X, s.Y, s.Width, s.Height)
	tl := p.pt(r.X, r.Y)
	w, h := r.Width*p.view.Scale, r.Height*p.view.Scale

	path := func() {
		switch s.Type {
		case scene.TypeEllipse:
			p.dc.DrawEllipse(tl.X+w/2, tl.Y+h/2, w/2, h/2)
		case scene.TypeTriangle:
			va, vb, vc := scene.TriangleVertices(s)
			a, b, c := p.pt(va.X, va.Y), p.pt(vb.X, vb.Y), p.pt(vc.X, vc.Y)
			p.dc.MoveTo(a.X, a.Y)
			p.dc.LineTo(b.X, b.Y)
			p.dc.LineTo(c.X, c.Y)
			p.dc.ClosePath()
		default:
			p.dc.DrawRectangle(tl.X, tl.Y, w, h)
		}
	}

	if s.Fill != "" {
		path()
		p.dc.SetHexColor(s.Fill)
		_ = p.dc.Fill()
	}
	path()
	p.dc.SetHexColor(s.Color)
	p.dc.SetLineWidth(p.width(s.Size))
	p.dc.SetLineJoin(gg.LineJoinRound)
	_ = p.dc.Stroke()
}

func (p painter) line(l *scene.Line) {
	a, b := p.pt(l.X1, l.Y1), p.pt(l.X2, l.Y2)
	p.dc.SetHexColor(l.Color)
	p.dc.SetLineWidth(p.width(l.Size))
	p.dc.SetLineCap(gg.LineCapRound)
	p.dc.DrawLine(a.X, a.Y, b.X, b.Y)
	_ = p.dc.Stroke()

	if l.Type != scene.TypeArrow {
		return
	}
	hl, hr := scene.ArrowHead(l)
	left, right := p.pt(hl.X, hl.Y), p.pt(hr.X, hr.Y)
	p.dc.MoveTo(b.X, b.Y)
	p.dc.LineTo(left.X, left.Y)
	p.dc.LineTo(right.X, right.Y)
	p.dc.ClosePath()
	_ = p.dc.Fill()
}

func (p painter) note(n scene.StickyNote) {
	tl := p.pt(n.X, n.Y)
	w, h := n.Width*p.view.Scale, n.Height*p.view.Scale
	color := n.Color
	if color == "" {
		color = scene.DefaultNoteColor
	}
	p.dc.DrawRectangle(tl.X, tl.Y, w, h)
	p.dc.SetHexColor(color)
	_ = p.dc.Fill()

	pad := 8.0
	p.text(&scene.Text{
		Text: n.Text, X: n.X + pad, Y: n.Y + pad, Color: "#333333", FontSize: 16,
	})
}

func (p painter) handles(obj scene.Object) {
	b := scene.Bounds(obj)
	tl := p.pt(b.X, b.Y)
	p.dc.SetHexColor("#1e88e5")
	p.dc.SetLineWidth(1)
	p.dc.SetDash(4, 4)
	p.dc.DrawRectangle(tl.X, tl.Y, b.Width*p.view.Scale, b.Height*p.view.Scale)
	_ = p.dc.Stroke()
	p.dc.ClearDash()

	const size = 8.0
	for _, h := range geometry.Handles {
		pos := scene.ResizeHandles(obj)[h]
		c := p.pt(pos.X, pos.Y)
		p.dc.DrawRectangle(c.X-size/2, c.Y-size/2, size, size)
		_ = p.dc.Fill()
	}
}

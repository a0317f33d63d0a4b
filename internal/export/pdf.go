// Package export writes board snapshots to portable formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/gg"
	"github.com/jung-kurt/gofpdf"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/scene"
)

// Margin is the blank border around the drawing, in points.
const Margin = 24.0

// PDF writes snap as a single-page vector PDF. The page is sized to the
// bounds of the drawing plus Margin, one scene unit per point. Erase
// strokes are painted white.
func PDF(w io.Writer, snap scene.Snapshot) error {
	area := contentBounds(snap)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: area.Width + 2*Margin, Ht: area.Height + 2*Margin},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	pw := pdfWriter{pdf: pdf, dx: Margin - area.X, dy: Margin - area.Y}
	for _, obj := range snap.Objects {
		if obj.Header().Deleted {
			continue
		}
		pw.object(obj)
	}
	for _, n := range snap.StickyNotes {
		pw.note(n)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func contentBounds(snap scene.Snapshot) geometry.Rect {
	area, ok := snap.ContentBounds()
	if !ok {
		return geometry.NewRect(0, 0, 100, 100)
	}
	return area
}

type pdfWriter struct {
	pdf    *gofpdf.Fpdf
	dx, dy float64
}

func (p pdfWriter) x(v float64) float64 { return v + p.dx }
func (p pdfWriter) y(v float64) float64 { return v + p.dy }

func rgb(hex string) (int, int, int) {
	c := gg.Hex(hex)
	return int(c.R * 255), int(c.G * 255), int(c.B * 255)
}

func (p pdfWriter) draw(hex string, width float64) {
	p.pdf.SetDrawColor(rgb(hex))
	p.pdf.SetLineWidth(max(width, 0.5))
}

func (p pdfWriter) fill(hex string) {
	p.pdf.SetFillColor(rgb(hex))
}

func (p pdfWriter) object(obj scene.Object) {
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

func (p pdfWriter) stroke(s *scene.Stroke) {
	color := s.Color
	if s.Tool == scene.ToolErase {
		color = "#ffffff"
	}
	p.draw(color, s.Size)
	if len(s.Points) == 1 {
		p.fill(color)
		p.pdf.Circle(p.x(s.Points[0].X), p.y(s.Points[0].Y), s.Size/2, "F")
		return
	}
	for i := 1; i < len(s.Points); i++ {
		a, b := s.Points[i-1], s.Points[i]
		p.pdf.Line(p.x(a.X), p.y(a.Y), p.x(b.X), p.y(b.Y))
	}
}

func (p pdfWriter) text(t *scene.Text) {
	p.pdf.SetFont("Helvetica", "", t.FontSize)
	p.pdf.SetTextColor(rgb(t.Color))
	for i, line := range strings.Split(t.Text, "\n") {
		// Text takes a baseline; approximate the ascent as 0.8em.
		baseline := t.Y + t.FontSize*0.8 + float64(i)*t.FontSize*geometry.LineHeight
		p.pdf.Text(p.x(t.X), p.y(baseline), line)
	}
}

func (p pdfWriter) shape(s *scene.Shape) {
	r := geometry.Normalize(s.X, s.Y, s.Width, s.Height)
	style := "D"
	if s.Fill != "" {
		p.fill(s.Fill)
		style = "FD"
	}
	p.draw(s.Color, s.Size)

	switch s.Type {
	case scene.TypeEllipse:
		p.pdf.Ellipse(p.x(r.CenterX), p.y(r.CenterY), r.Width/2, r.Height/2, 0, style)
	case scene.TypeTriangle:
		a, b, c := scene.TriangleVertices(s)
		p.pdf.Polygon([]gofpdf.PointType{
			{X: p.x(a.X), Y: p.y(a.Y)},
			{X: p.x(b.X), Y: p.y(b.Y)},
			{X: p.x(c.X), Y: p.y(c.Y)},
		}, style)
	default:
		p.pdf.Rect(p.x(r.X), p.y(r.Y), r.Width, r.Height, style)
	}
}

func (p pdfWriter) line(l *scene.Line) {
	p.draw(l.Color, l.Size)
	p.pdf.Line(p.x(l.X1), p.y(l.Y1), p.x(l.X2), p.y(l.Y2))
	if l.Type != scene.TypeArrow {
		return
	}
	left, right := scene.ArrowHead(l)
	p.fill(l.Color)
	p.pdf.Polygon([]gofpdf.PointType{
		{X: p.x(l.X2), Y: p.y(l.Y2)},
		{X: p.x(left.X), Y: p.y(left.Y)},
		{X: p.x(right.X), Y: p.y(right.Y)},
	}, "F")
}

func (p pdfWriter) note(n scene.StickyNote) {
	color := n.Color
	if color == "" {
		color = scene.DefaultNoteColor
	}
	p.fill(color)
	p.pdf.Rect(p.x(n.X), p.y(n.Y), n.Width, n.Height, "F")
	if n.Text == "" {
		return
	}
	p.pdf.SetFont("Helvetica", "", 12)
	p.pdf.SetTextColor(0x33, 0x33, 0x33)
	p.pdf.SetXY(p.x(n.X)+8, p.y(n.Y)+8)
	p.pdf.MultiCell(n.Width-16, 14, n.Text, "", "L", false)
}

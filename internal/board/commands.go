package board

import (
	"encoding/json"
	"strings"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/viewport"
)

// DrawCommand is a single drawing operation for a Canvas2D frontend.
// Geometry is in scene space; Transform maps it to the screen.
type DrawCommand struct {
	Op          string        `json:"op"` // "image", "path", "text", "note", "selection", "cursor"
	ObjectID    string        `json:"objectId,omitempty"`
	Transform   []float64     `json:"transform,omitempty"` // [a, b, c, d, e, f]
	Path        []PathCommand `json:"path,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`
	Composite   string        `json:"composite,omitempty"` // Canvas2D globalCompositeOperation
	Lines       []string      `json:"lines,omitempty"`
	FontSize    float64       `json:"fontSize,omitempty"`
	X           float64       `json:"x,omitempty"`
	Y           float64       `json:"y,omitempty"`
	Width       float64       `json:"width,omitempty"`
	Height      float64       `json:"height,omitempty"`
	ImageData   string        `json:"imageData,omitempty"`
}

// PathCommand is one path segment in Canvas2D form: ["M", x, y],
// ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"]. Selection paths add
// ["H", x, y] for each resize handle.
type PathCommand []any

type drawList struct {
	transform []float64
	commands  []DrawCommand
}

// compileDrawCommands generates commands in painter's order: backdrop,
// objects, overlay, notes, selection, peer cursors.
func compileDrawCommands(f frame) []DrawCommand {
	d := drawList{transform: f.view.Matrix().ToSlice()}

	if f.backdrop != "" {
		d.commands = append(d.commands, DrawCommand{Op: "image", ImageData: f.backdrop})
	}
	for _, obj := range f.objects {
		if !obj.Header().Deleted {
			d.object(obj)
		}
	}
	for _, obj := range f.overlay {
		d.object(obj)
	}
	for _, n := range f.notes {
		d.note(n)
	}
	if f.selected != nil {
		d.selection(scene.Bounds(f.selected), scene.ResizeHandles(f.selected))
	}
	if f.selectedNote != nil {
		b := f.selectedNote.Bounds()
		d.selection(b, map[geometry.Handle]geometry.Point{
			geometry.HandleSE: {X: b.Right(), Y: b.Bottom()},
		})
	}
	for _, c := range f.cursors {
		d.commands = append(d.commands, DrawCommand{Op: "cursor", ObjectID: c.ClientID, Transform: d.transform, X: c.X, Y: c.Y})
	}
	return d.commands
}

func (d *drawList) path(obj scene.Object, path []PathCommand, stroke string, width float64, fill string) {
	d.commands = append(d.commands, DrawCommand{
		Op:          "path",
		ObjectID:    obj.Header().ID,
		Transform:   d.transform,
		Path:        path,
		Stroke:      stroke,
		StrokeWidth: width,
		Fill:        fill,
	})
}

func (d *drawList) object(obj scene.Object) {
	switch o := obj.(type) {
	case *scene.Stroke:
		d.stroke(o)
	case *scene.Text:
		d.commands = append(d.commands, DrawCommand{
			Op:        "text",
			ObjectID:  o.ID,
			Transform: d.transform,
			Lines:     strings.Split(o.Text, "\n"),
			Fill:      o.Color,
			FontSize:  o.FontSize,
			X:         o.X,
			Y:         o.Y,
		})
	case *scene.Shape:
		d.path(o, shapePath(o), o.Color, o.Size, o.Fill)
	case *scene.Line:
		d.path(o, []PathCommand{{"M", o.X1, o.Y1}, {"L", o.X2, o.Y2}}, o.Color, o.Size, "")
		if o.Type == scene.TypeArrow {
			left, right := scene.ArrowHead(o)
			d.path(o, []PathCommand{{"M", o.X2, o.Y2}, {"L", left.X, left.Y}, {"L", right.X, right.Y}, {"Z"}}, "", 0, o.Color)
		}
	}
}

func (d *drawList) stroke(s *scene.Stroke) {
	if len(s.Points) == 0 {
		return
	}
	var path []PathCommand
	if len(s.Points) == 1 {
		path = ellipsePath(s.Points[0].X, s.Points[0].Y, s.Size/2, s.Size/2)
	} else {
		path = make([]PathCommand, 0, len(s.Points))
		path = append(path, PathCommand{"M", s.Points[0].X, s.Points[0].Y})
		for _, p := range s.Points[1:] {
			path = append(path, PathCommand{"L", p.X, p.Y})
		}
	}

	cmd := DrawCommand{
		Op:          "path",
		ObjectID:    s.ID,
		Transform:   d.transform,
		Path:        path,
		Stroke:      s.Color,
		StrokeWidth: s.Size,
	}
	if len(s.Points) == 1 {
		cmd.Stroke, cmd.StrokeWidth, cmd.Fill = "", 0, s.Color
	}
	if s.Tool == scene.ToolErase {
		cmd.Composite = "destination-out"
	}
	d.commands = append(d.commands, cmd)
}

func shapePath(s *scene.Shape) []PathCommand {
	r := geometry.Normalize(s.X, s.Y, s.Width, s.Height)
	switch s.Type {
	case scene.TypeEllipse:
		return ellipsePath(r.CenterX, r.CenterY, r.Width/2, r.Height/2)
	case scene.TypeTriangle:
		a, b, c := scene.TriangleVertices(s)
		return []PathCommand{{"M", a.X, a.Y}, {"L", b.X, b.Y}, {"L", c.X, c.Y}, {"Z"}}
	}
	return []PathCommand{
		{"M", r.X, r.Y},
		{"L", r.Right(), r.Y},
		{"L", r.Right(), r.Bottom()},
		{"L", r.X, r.Bottom()},
		{"Z"},
	}
}

// ellipsePath approximates an ellipse with four cubic beziers.
func ellipsePath(cx, cy, rx, ry float64) []PathCommand {
	// k = 4 * (sqrt(2) - 1) / 3
	const k = 0.5522847498
	kx, ky := rx*k, ry*k
	return []PathCommand{
		{"M", cx + rx, cy},
		{"C", cx + rx, cy + ky, cx + kx, cy + ry, cx, cy + ry},
		{"C", cx - kx, cy + ry, cx - rx, cy + ky, cx - rx, cy},
		{"C", cx - rx, cy - ky, cx - kx, cy - ry, cx, cy - ry},
		{"C", cx + kx, cy - ry, cx + rx, cy - ky, cx + rx, cy},
		{"Z"},
	}
}

func (d *drawList) note(n scene.StickyNote) {
	color := n.Color
	if color == "" {
		color = scene.DefaultNoteColor
	}
	d.commands = append(d.commands, DrawCommand{
		Op:        "note",
		ObjectID:  n.ID,
		Transform: d.transform,
		Fill:      color,
		Lines:     strings.Split(n.Text, "\n"),
		X:         n.X,
		Y:         n.Y,
		Width:     n.Width,
		Height:    n.Height,
	})
}

func (d *drawList) selection(bounds geometry.Rect, handles map[geometry.Handle]geometry.Point) {
	path := []PathCommand{
		{"M", bounds.X, bounds.Y},
		{"L", bounds.Right(), bounds.Y},
		{"L", bounds.Right(), bounds.Bottom()},
		{"L", bounds.X, bounds.Bottom()},
		{"Z"},
	}
	for _, h := range geometry.Handles {
		if p, ok := handles[h]; ok {
			path = append(path, PathCommand{"H", p.X, p.Y})
		}
	}
	d.commands = append(d.commands, DrawCommand{Op: "selection", Transform: d.transform, Path: path})
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

type frame struct {
	view         viewport.Viewport
	backdrop     string
	objects      []scene.Object
	overlay      []scene.Object
	notes        []scene.StickyNote
	selected     scene.Object
	selectedNote *scene.StickyNote
	cursors      []cursor
}

type cursor struct {
	ClientID string
	X, Y     float64
}

package scene

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/inamate/whiteboard/internal/geometry"
)

type ObjectType string

const (
	TypeStroke    ObjectType = "stroke"
	TypeText      ObjectType = "text"
	TypeRectangle ObjectType = "rectangle"
	TypeEllipse   ObjectType = "ellipse"
	TypeTriangle  ObjectType = "triangle"
	TypeLine      ObjectType = "line"
	TypeArrow     ObjectType = "arrow"
)

// IsShape reports whether t is one of the box-shaped variants.
func (t ObjectType) IsShape() bool {
	return t == TypeRectangle || t == TypeEllipse || t == TypeTriangle
}

// IsLine reports whether t is a two-endpoint variant.
func (t ObjectType) IsLine() bool {
	return t == TypeLine || t == TypeArrow
}

type Tool string

const (
	ToolPen   Tool = "pen"
	ToolErase Tool = "erase"
)

// Object is one drawable primitive. The set of implementations is closed:
// *Stroke, *Text, *Shape and *Line. Code that branches on the variant uses
// a type switch over exactly these four.
type Object interface {
	Header() *Base
	Clone() Object
	sceneObject()
}

// Base holds the fields every variant carries.
type Base struct {
	ID      string     `json:"id,omitempty"`
	Type    ObjectType `json:"type"`
	Deleted bool       `json:"deleted,omitempty"`
}

func (b *Base) Header() *Base { return b }
func (b *Base) sceneObject()  {}

type Stroke struct {
	Base
	Points []geometry.Point `json:"points"`
	Color  string           `json:"color"`
	Size   float64          `json:"size"`
	Tool   Tool             `json:"tool"`
}

type Text struct {
	Base
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// Shape is a rectangle, ellipse or triangle. Width and Height are signed:
// a negative extent records that the shape was drawn leftward or upward.
type Shape struct {
	Base
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
	Fill   string  `json:"fill,omitempty"`
}

// Line is a line or arrow between two endpoints. The arrowhead is derived
// from the endpoint direction when rendering and is never stored.
type Line struct {
	Base
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

func NewStroke(points []geometry.Point, color string, size float64, tool Tool) *Stroke {
	if tool == "" {
		tool = ToolPen
	}
	return &Stroke{Base: Base{Type: TypeStroke}, Points: points, Color: color, Size: size, Tool: tool}
}

func NewText(text string, x, y float64, color string, fontSize float64) *Text {
	return &Text{Base: Base{Type: TypeText}, Text: text, X: x, Y: y, Color: color, FontSize: fontSize}
}

func NewShape(kind ObjectType, x, y, w, h float64, color string, size float64) *Shape {
	return &Shape{Base: Base{Type: kind}, X: x, Y: y, Width: w, Height: h, Color: color, Size: size}
}

func NewLine(kind ObjectType, x1, y1, x2, y2 float64, color string, size float64) *Line {
	return &Line{Base: Base{Type: kind}, X1: x1, Y1: y1, X2: x2, Y2: y2, Color: color, Size: size}
}

func (s *Stroke) Clone() Object {
	c := *s
	c.Points = slices.Clone(s.Points)
	return &c
}

func (t *Text) Clone() Object {
	c := *t
	return &c
}

func (s *Shape) Clone() Object {
	c := *s
	return &c
}

func (l *Line) Clone() Object {
	c := *l
	return &c
}

// SameVariant reports whether a and b are the same kind of object, so that
// one may replace the other in place.
func SameVariant(a, b Object) bool {
	return a.Header().Type == b.Header().Type
}

// MarshalObject encodes obj in its flat wire form with the type tag inline.
func MarshalObject(obj Object) (json.RawMessage, error) {
	return json.Marshal(obj)
}

// UnmarshalObject decodes the flat wire form of an object, choosing the
// variant from its type tag.
func UnmarshalObject(data []byte) (Object, error) {
	var head Base
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode object header: %w", err)
	}

	var obj Object
	switch {
	case head.Type == TypeStroke:
		obj = &Stroke{}
	case head.Type == TypeText:
		obj = &Text{}
	case head.Type.IsShape():
		obj = &Shape{}
	case head.Type.IsLine():
		obj = &Line{}
	default:
		return nil, fmt.Errorf("unknown object type: %q", head.Type)
	}

	if err := json.Unmarshal(data, obj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	if s, ok := obj.(*Stroke); ok && s.Tool == "" {
		s.Tool = ToolPen
	}
	return obj, nil
}

// StickyNote is addressed by its client-generated ID rather than by position.
type StickyNote struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
	Color  string  `json:"color"`
	ZIndex int     `json:"zIndex"`
}

const (
	MinNoteWidth  = 100.0
	MinNoteHeight = 100.0

	DefaultNoteSize  = 200.0
	DefaultNoteColor = "#fff59d"
)

// Bounds returns the note's rectangle in scene space.
func (n StickyNote) Bounds() geometry.Rect {
	return geometry.NewRect(n.X, n.Y, n.Width, n.Height)
}

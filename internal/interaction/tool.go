// Package interaction turns pointer and touch input into scene edits and
// outbound patches.
package interaction

import (
	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
)

type Tool string

const (
	ToolPen       Tool = "pen"
	ToolErase     Tool = "erase"
	ToolRectangle Tool = "rectangle"
	ToolEllipse   Tool = "ellipse"
	ToolTriangle  Tool = "triangle"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolText      Tool = "text"
	ToolSticky    Tool = "sticky"
	ToolSelect    Tool = "select"
	ToolPan       Tool = "pan"
)

// IsDraw reports whether t creates an object by dragging.
func (t Tool) IsDraw() bool {
	switch t {
	case ToolPen, ToolErase, ToolRectangle, ToolEllipse, ToolTriangle, ToolLine, ToolArrow:
		return true
	}
	return false
}

func (t Tool) Valid() bool {
	return t.IsDraw() || t == ToolText || t == ToolSticky || t == ToolSelect || t == ToolPan
}

func (t Tool) objectType() scene.ObjectType {
	return scene.ObjectType(t)
}

type State string

const (
	StateIdle          State = "idle"
	StateDrawingStroke State = "drawingStroke"
	StateDrawingShape  State = "drawingShape"
	StateDragging      State = "dragging"
	StateResizing      State = "resizing"
	StatePanning       State = "panning"
	StatePinchZooming  State = "pinchZooming"
)

const (
	ButtonPrimary = 0
	ButtonMiddle  = 1
)

// MinShapeExtent is the size below which, on both axes, a drawn shape is
// treated as an accidental click and discarded.
const MinShapeExtent = 5.0

// PointerEvent is a pointer sample in screen coordinates. Space reports
// whether the space bar is held.
type PointerEvent struct {
	ID     int
	Kind   geometry.PointerKind
	Button int
	X, Y   float64
	Space  bool
}

func (e PointerEvent) screen() geometry.Point { return geometry.Point{X: e.X, Y: e.Y} }

// Touch is one contact point in screen coordinates.
type Touch struct {
	ID   int
	X, Y float64
}

// Style is the drawing style applied to new objects.
type Style struct {
	Color     string
	Size      float64
	Fill      string
	FontSize  float64
	NoteColor string
}

func DefaultStyle() Style {
	return Style{
		Color:     "#000000",
		Size:      2,
		FontSize:  20,
		NoteColor: scene.DefaultNoteColor,
	}
}

// Emitter receives outbound patches. Emit must not block and may be called
// from the cursor throttle's timer goroutine.
type Emitter interface {
	Emit(msg protocol.Message)
}

type EmitterFunc func(protocol.Message)

func (f EmitterFunc) Emit(msg protocol.Message) { f(msg) }

type discard struct{}

func (discard) Emit(protocol.Message) {}

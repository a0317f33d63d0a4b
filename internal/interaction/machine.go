package interaction

import (
	"log/slog"
	"math"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/history"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/viewport"
)

// Machine is the per-client gesture state machine. Every committed local
// edit is applied to the scene, emitted to peers and recorded in history.
//
// Input methods must be called from a single goroutine.
type Machine struct {
	scene   *scene.Scene
	view    *viewport.Viewport
	history *history.History
	emitter Emitter
	logger  *slog.Logger
	cursor  *CursorThrottle

	tool     Tool
	lastDraw Tool
	style    Style
	state    State

	selectedID   string
	selectedNote string

	// Current gesture.
	pointer  int
	start    geometry.Point // scene space
	last     geometry.Point // screen space
	draft    scene.Object
	original scene.Object
	handle   geometry.Handle
	totalX   float64
	totalY   float64
	noteOrig scene.StickyNote

	// Touch contacts in screen space.
	touches     map[int]geometry.Point
	contacts    mapset.Set[int]
	pinchDist   float64
	pinchCenter geometry.Point
	panTouch    int
}

type Option func(*Machine)

func WithEmitter(e Emitter) Option { return func(m *Machine) { m.emitter = e } }

func WithLogger(l *slog.Logger) Option { return func(m *Machine) { m.logger = l } }

func WithHistory(h *history.History) Option { return func(m *Machine) { m.history = h } }

func WithCursorInterval(d time.Duration) Option {
	return func(m *Machine) {
		m.cursor = NewCursorThrottle(d, m.sendCursor)
	}
}

func NewMachine(s *scene.Scene, v *viewport.Viewport, opts ...Option) *Machine {
	m := &Machine{
		scene:    s,
		view:     v,
		emitter:  discard{},
		logger:   slog.Default(),
		tool:     ToolPen,
		lastDraw: ToolPen,
		style:    DefaultStyle(),
		state:    StateIdle,
		touches:  make(map[int]geometry.Point),
		contacts: mapset.NewThreadUnsafeSet[int](),
		panTouch: -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.history == nil {
		m.history = history.New(history.DefaultDepth)
	}
	if m.cursor == nil {
		m.cursor = NewCursorThrottle(CursorInterval, m.sendCursor)
	}
	return m
}

// Close stops the cursor throttle.
func (m *Machine) Close() { m.cursor.Stop() }

func (m *Machine) State() State                 { return m.state }
func (m *Machine) Tool() Tool                   { return m.tool }
func (m *Machine) Style() Style                 { return m.style }
func (m *Machine) SetStyle(s Style)             { m.style = s }
func (m *Machine) History() *history.History    { return m.history }
func (m *Machine) Viewport() *viewport.Viewport { return m.view }

// SetTool changes the active tool. An in-progress gesture is finished first.
func (m *Machine) SetTool(t Tool) bool {
	if !t.Valid() {
		return false
	}
	m.finish()
	m.tool = t
	if t.IsDraw() {
		m.lastDraw = t
	}
	if t != ToolSelect {
		m.clearSelection()
	}
	return true
}

// Draft returns the object being drawn, or nil.
func (m *Machine) Draft() scene.Object { return m.draft }

// Selected returns the index of the selected object.
func (m *Machine) Selected() (int, bool) {
	i, ok := m.scene.IndexOf(m.selectedID)
	if !ok {
		return 0, false
	}
	if _, live := m.scene.Live(i); !live {
		return 0, false
	}
	return i, true
}

// SelectedNote returns the ID of the selected sticky note.
func (m *Machine) SelectedNote() (string, bool) {
	if _, ok := m.scene.Note(m.selectedNote); !ok {
		return "", false
	}
	return m.selectedNote, true
}

func (m *Machine) clearSelection() {
	m.selectedID = ""
	m.selectedNote = ""
}

func (m *Machine) emit(t string, payload any) {
	msg, err := protocol.New(t, payload)
	if err != nil {
		m.logger.Error("encode outbound patch", "type", t, "error", err)
		return
	}
	m.emitter.Emit(msg)
}

func (m *Machine) emitMessage(msg protocol.Message, err error) {
	if err != nil {
		m.logger.Error("encode outbound patch", "type", msg.Type, "error", err)
		return
	}
	m.emitter.Emit(msg)
}

func (m *Machine) sendCursor(p geometry.Point) {
	m.emit(protocol.TypeCursorMove, protocol.CursorPayload{X: p.X, Y: p.Y})
}

// --- Pointer input ---

// effectiveTool applies the stylus rule: a pen always draws, using the last
// draw tool when select or pan is active.
func (m *Machine) effectiveTool(kind geometry.PointerKind) Tool {
	if kind == geometry.PointerPen && (m.tool == ToolSelect || m.tool == ToolPan) {
		return m.lastDraw
	}
	return m.tool
}

func (m *Machine) PointerDown(ev PointerEvent) {
	if m.state != StateIdle || m.contacts.Cardinality() >= 2 {
		return
	}
	screen := ev.screen()
	p := m.view.ScreenToScene(screen)
	tool := m.effectiveTool(ev.Kind)

	m.pointer = ev.ID
	m.start = p
	m.last = screen
	m.totalX, m.totalY = 0, 0

	if ev.Button == ButtonMiddle || ev.Space || tool == ToolPan {
		m.state = StatePanning
		return
	}
	if ev.Button != ButtonPrimary {
		return
	}

	switch {
	case tool == ToolPen || tool == ToolErase:
		m.draft = scene.NewStroke([]geometry.Point{p}, m.style.Color, m.style.Size, scene.Tool(tool))
		m.state = StateDrawingStroke
		m.emitDraw(p, true)
	case tool.objectType().IsShape():
		sh := scene.NewShape(tool.objectType(), p.X, p.Y, 0, 0, m.style.Color, m.style.Size)
		sh.Fill = m.style.Fill
		m.draft = sh
		m.state = StateDrawingShape
	case tool.objectType().IsLine():
		m.draft = scene.NewLine(tool.objectType(), p.X, p.Y, p.X, p.Y, m.style.Color, m.style.Size)
		m.state = StateDrawingShape
	case tool == ToolSelect:
		m.beginSelect(p, ev.Kind)
	}
}

func (m *Machine) emitDraw(p geometry.Point, start bool) {
	st := m.draft.(*scene.Stroke)
	m.emit(protocol.TypeDraw, protocol.DrawPayload{
		X: p.X, Y: p.Y, Color: st.Color, Size: st.Size, Tool: st.Tool, IsStart: start,
	})
}

// beginSelect resolves a select press: a handle of the current selection,
// then the topmost sticky note, then the topmost object, else deselect.
func (m *Machine) beginSelect(p geometry.Point, kind geometry.PointerKind) {
	if i, ok := m.Selected(); ok {
		obj, _ := m.scene.Live(i)
		if h, ok := scene.HandleAtPoint(p, obj, kind); ok {
			m.original = obj.Clone()
			m.handle = h
			m.state = StateResizing
			return
		}
	}
	if id, ok := m.SelectedNote(); ok {
		n, _ := m.scene.Note(id)
		corner := geometry.Point{X: n.X + n.Width, Y: n.Y + n.Height}
		if p.Distance(corner) <= geometry.Threshold(kind) {
			m.noteOrig = n
			m.handle = geometry.HandleSE
			m.state = StateResizing
			return
		}
	}

	if n, ok := m.scene.NoteAt(p); ok {
		m.clearSelection()
		m.selectedNote = n.ID
		m.noteOrig = n
		m.state = StateDragging
		return
	}
	if i, ok := m.scene.TopmostAt(p, kind); ok {
		obj, _ := m.scene.At(i)
		m.clearSelection()
		m.selectedID = obj.Header().ID
		m.original = obj.Clone()
		m.state = StateDragging
		return
	}
	m.clearSelection()
}

func (m *Machine) PointerMove(ev PointerEvent) {
	screen := ev.screen()
	p := m.view.ScreenToScene(screen)
	m.cursor.Update(p)

	if m.state == StateIdle || m.state == StatePinchZooming || ev.ID != m.pointer || m.panTouch >= 0 {
		return
	}

	switch m.state {
	case StateDrawingStroke:
		st := m.draft.(*scene.Stroke)
		st.Points = append(st.Points, p)
		m.emitDraw(p, false)

	case StateDrawingShape:
		switch d := m.draft.(type) {
		case *scene.Shape:
			d.Width = p.X - m.start.X
			d.Height = p.Y - m.start.Y
		case *scene.Line:
			d.X2, d.Y2 = p.X, p.Y
		}

	case StateDragging:
		dx, dy := m.view.ScreenDelta(screen.X-m.last.X, screen.Y-m.last.Y)
		m.totalX += dx
		m.totalY += dy
		m.drag(dx, dy)

	case StateResizing:
		m.resize(p.X-m.start.X, p.Y-m.start.Y)

	case StatePanning:
		// Per-move delta so concurrent zoom changes do not compound.
		m.view.PanBy(screen.X-m.last.X, screen.Y-m.last.Y)
	}
	m.last = screen
}

func (m *Machine) drag(dx, dy float64) {
	if m.selectedNote != "" {
		if m.scene.MoveNote(m.selectedNote, m.noteOrig.X+m.totalX, m.noteOrig.Y+m.totalY) {
			n, _ := m.scene.Note(m.selectedNote)
			m.emit(protocol.TypeNoteMove, n)
		}
		return
	}
	i, ok := m.Selected()
	if !ok || !m.scene.Transform(i, dx, dy) {
		return
	}
	m.emit(protocol.TypeMove, protocol.MovePayload{
		Ref: protocol.Ref{Index: i, ID: m.selectedID}, DeltaX: dx, DeltaY: dy,
	})
}

func (m *Machine) resize(dx, dy float64) {
	if m.selectedNote != "" {
		if m.scene.ResizeNote(m.selectedNote, m.noteOrig.Width+dx, m.noteOrig.Height+dy) {
			n, _ := m.scene.Note(m.selectedNote)
			m.emit(protocol.TypeNoteResize, n)
		}
		return
	}
	i, ok := m.Selected()
	if !ok || !m.scene.Resize(i, m.handle, dx, dy, m.original) {
		return
	}
	obj, _ := m.scene.At(i)
	m.emitMessage(protocol.NewResize(protocol.Ref{Index: i, ID: m.selectedID}, obj))
}

func (m *Machine) PointerUp(ev PointerEvent) {
	if ev.ID != m.pointer || m.panTouch >= 0 {
		return
	}
	m.finish()
}

// PointerLeave ends the gesture like PointerUp; a partial drag keeps its
// last position. Peers are told the cursor left.
func (m *Machine) PointerLeave(ev PointerEvent) {
	m.cursor.Cancel()
	m.emit(protocol.TypeCursorLeave, nil)
	m.PointerUp(ev)
}

// finish commits whatever gesture is in progress and returns to idle.
func (m *Machine) finish() {
	switch m.state {
	case StateDrawingStroke:
		m.commitObject(m.draft)
	case StateDrawingShape:
		if bigEnough(m.draft) {
			m.commitObject(m.draft)
		}
	case StateDragging:
		m.finishDrag()
	case StateResizing:
		m.finishResize()
	}
	m.reset()
}

// Abandon drops the gesture in progress and the selection without
// committing anything, e.g. when the scene is reloaded underneath it.
func (m *Machine) Abandon() {
	m.reset()
	m.clearSelection()
	m.touches = make(map[int]geometry.Point)
	m.contacts.Clear()
	m.panTouch = -1
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.draft = nil
	m.original = nil
	m.handle = ""
	m.totalX, m.totalY = 0, 0
}

func bigEnough(obj scene.Object) bool {
	var w, h float64
	switch o := obj.(type) {
	case *scene.Shape:
		w, h = o.Width, o.Height
	case *scene.Line:
		w, h = o.X2-o.X1, o.Y2-o.Y1
	default:
		return true
	}
	return math.Abs(w) >= MinShapeExtent || math.Abs(h) >= MinShapeExtent
}

func (m *Machine) commitObject(obj scene.Object) {
	i := m.scene.Append(obj)
	m.emitMessage(protocol.NewObject(obj))
	m.history.Record(history.Created(i, obj))
}

func (m *Machine) finishDrag() {
	if m.totalX == 0 && m.totalY == 0 {
		return
	}
	if m.selectedNote != "" {
		if after, ok := m.scene.Note(m.selectedNote); ok {
			before := m.noteOrig
			m.history.Record(history.NoteChanged(&before, &after))
		}
		return
	}
	if i, ok := m.Selected(); ok {
		obj, _ := m.scene.At(i)
		m.history.Record(history.Moved(i, obj, m.totalX, m.totalY))
	}
}

func (m *Machine) finishResize() {
	if m.selectedNote != "" {
		after, ok := m.scene.Note(m.selectedNote)
		if ok && (after.Width != m.noteOrig.Width || after.Height != m.noteOrig.Height) {
			before := m.noteOrig
			m.history.Record(history.NoteChanged(&before, &after))
		}
		return
	}
	i, ok := m.Selected()
	if !ok || m.original == nil {
		return
	}
	after, _ := m.scene.At(i)
	if equalGeometry(m.original, after) {
		return
	}
	m.history.Record(history.Replaced(i, m.original, after))
}

func equalGeometry(a, b scene.Object) bool {
	ra, err := scene.MarshalObject(a)
	if err != nil {
		return false
	}
	rb, err := scene.MarshalObject(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}

// --- Direct commands ---

// CommitText places text with its top-left corner at a screen position.
func (m *Machine) CommitText(x, y float64, text string) bool {
	if text == "" {
		return false
	}
	p := m.view.ScreenToScene(geometry.Point{X: x, Y: y})
	m.commitObject(scene.NewText(text, p.X, p.Y, m.style.Color, m.style.FontSize))
	return true
}

// CommitSticky creates a sticky note at a screen position.
func (m *Machine) CommitSticky(x, y float64, text string) scene.StickyNote {
	p := m.view.ScreenToScene(geometry.Point{X: x, Y: y})
	stored := m.scene.AddNote(scene.StickyNote{
		X: p.X, Y: p.Y,
		Width: scene.DefaultNoteSize, Height: scene.DefaultNoteSize,
		Text: text, Color: m.style.NoteColor,
	})
	m.emit(protocol.TypeNoteCreate, stored)
	m.history.Record(history.NoteChanged(nil, &stored))
	return stored
}

// EditSticky replaces a note's text and, when non-empty, its color.
func (m *Machine) EditSticky(id, text, color string) bool {
	before, ok := m.scene.Note(id)
	if !ok || !m.scene.UpdateNote(id, text, color) {
		return false
	}
	after, _ := m.scene.Note(id)
	m.emit(protocol.TypeNoteUpdate, after)
	m.history.Record(history.NoteChanged(&before, &after))
	return true
}

// DeleteSelected tombstones the selected object or removes the selected note.
func (m *Machine) DeleteSelected() bool {
	if id, ok := m.SelectedNote(); ok {
		before, _ := m.scene.Note(id)
		m.scene.DeleteNote(id)
		m.emit(protocol.TypeNoteDelete, protocol.NotePayload{ID: id})
		m.history.Record(history.NoteChanged(&before, nil))
		m.clearSelection()
		return true
	}
	i, ok := m.Selected()
	if !ok {
		return false
	}
	obj, _ := m.scene.At(i)
	m.scene.MarkDeleted(i)
	m.emit(protocol.TypeDelete, protocol.Ref{Index: i, ID: m.selectedID})
	m.history.Record(history.Deleted(i, obj))
	m.clearSelection()
	return true
}

// ZoomAt zooms the view around a screen position, as a wheel gesture does.
func (m *Machine) ZoomAt(x, y, factor float64) {
	m.view.ZoomAt(geometry.Point{X: x, Y: y}, factor)
}

// Package patch applies events received from peers to the local scene.
package patch

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
)

// Applier mutates a scene from inbound peer events. Stale or malformed
// events are dropped and logged at debug level; Apply never fails.
//
// Like the scene it owns, an Applier is driven from one goroutine.
type Applier struct {
	scene  *scene.Scene
	logger *slog.Logger

	provisional map[string]*scene.Stroke // clientID -> in-progress stroke
	cursors     map[string]geometry.Point
	backdrop    string
}

func NewApplier(s *scene.Scene, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		scene:       s,
		logger:      logger,
		provisional: make(map[string]*scene.Stroke),
		cursors:     make(map[string]geometry.Point),
	}
}

// Apply applies one event and reports whether anything visible changed.
func (a *Applier) Apply(msg protocol.Message) bool {
	switch msg.Type {
	case protocol.TypeInit:
		return a.applyInit(msg)
	case protocol.TypeDraw:
		return a.applyDraw(msg)
	case protocol.TypeStroke, protocol.TypeShape, protocol.TypeText:
		return a.applyCommit(msg)
	case protocol.TypeMove:
		return a.applyMove(msg)
	case protocol.TypeResize:
		return a.applyResize(msg)
	case protocol.TypeResizeStroke:
		return a.applyResizeStroke(msg)
	case protocol.TypeResizeShape:
		return a.applyResizeShape(msg)
	case protocol.TypeResizeLine:
		return a.applyResizeLine(msg)
	case protocol.TypeDelete:
		return a.applyTombstone(msg, a.scene.MarkDeleted)
	case protocol.TypeRestore:
		return a.applyTombstone(msg, a.scene.Restore)
	case protocol.TypeNoteCreate, protocol.TypeNoteUpdate, protocol.TypeNoteMove,
		protocol.TypeNoteResize, protocol.TypeNoteDelete:
		return a.applyNote(msg)
	case protocol.TypeUndo, protocol.TypeRedo:
		return a.applyHistory(msg)
	case protocol.TypeCursorMove:
		return a.applyCursor(msg)
	case protocol.TypeCursorLeave, protocol.TypePresenceLeave:
		return a.forget(msg.ClientID)
	case protocol.TypePresenceJoin, protocol.TypeError:
		return false
	default:
		a.drop(msg, "unknown event type")
		return false
	}
}

func (a *Applier) drop(msg protocol.Message, reason string, args ...any) {
	a.logger.Debug("dropped patch",
		append([]any{"type", msg.Type, "client", msg.ClientID, "reason", reason}, args...)...)
}

// resolve finds the slot a patch addresses. A known ID wins over the index;
// an ID this scene has never seen means the patch targets an object we do
// not have, so the index is not trusted either.
func (a *Applier) resolve(msg protocol.Message, ref protocol.Ref) (int, bool) {
	if ref.ID != "" {
		i, ok := a.scene.IndexOf(ref.ID)
		if !ok {
			a.drop(msg, "unknown object id", "id", ref.ID)
		}
		return i, ok
	}
	if _, ok := a.scene.At(ref.Index); !ok {
		a.drop(msg, "index out of range", "index", ref.Index, "len", a.scene.Len())
		return 0, false
	}
	return ref.Index, true
}

func (a *Applier) applyInit(msg protocol.Message) bool {
	init, err := protocol.Decode[protocol.InitPayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	for _, obj := range init.Objects {
		a.initObject(obj)
	}
	for _, n := range init.StickyNotes {
		a.scene.AddNote(n)
	}
	return len(init.Objects) > 0 || len(init.StickyNotes) > 0
}

// initObject appends obj, tombstone included. An object already loaded from
// a snapshot takes the relay's deleted state, which is never older.
func (a *Applier) initObject(obj scene.Object) {
	i, ok := a.scene.IndexOf(obj.Header().ID)
	if !ok {
		a.scene.Append(obj)
		return
	}
	if obj.Header().Deleted {
		a.scene.MarkDeleted(i)
	} else {
		a.scene.Restore(i)
	}
}

func (a *Applier) applyDraw(msg protocol.Message) bool {
	d, err := protocol.Decode[protocol.DrawPayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	p := geometry.Point{X: d.X, Y: d.Y}
	st, ok := a.provisional[msg.ClientID]
	if d.IsStart || !ok {
		a.provisional[msg.ClientID] = scene.NewStroke([]geometry.Point{p}, d.Color, d.Size, d.Tool)
		return true
	}
	st.Points = append(st.Points, p)
	return true
}

func (a *Applier) applyCommit(msg protocol.Message) bool {
	obj, err := protocol.DecodeObject(msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	if msg.Type == protocol.TypeStroke {
		delete(a.provisional, msg.ClientID)
	}
	a.scene.Append(obj)
	return true
}

// applyMove translates by a delta. Replaying a move moves the object again.
func (a *Applier) applyMove(msg protocol.Message) bool {
	mv, err := protocol.Decode[protocol.MovePayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	i, ok := a.resolve(msg, mv.Ref)
	if !ok {
		return false
	}
	if !a.scene.Transform(i, mv.DeltaX, mv.DeltaY) {
		a.drop(msg, "object deleted", "index", i)
		return false
	}
	return true
}

func (a *Applier) applyResize(msg protocol.Message) bool {
	rp, err := protocol.Decode[protocol.ResizePayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	obj, err := scene.UnmarshalObject(rp.Object)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	i, ok := a.resolve(msg, rp.Ref)
	if !ok {
		return false
	}
	return a.replace(msg, i, obj)
}

func (a *Applier) applyResizeStroke(msg protocol.Message) bool {
	rp, err := protocol.Decode[protocol.ResizeStrokePayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	i, cur, ok := live[*scene.Stroke](a, msg, rp.Ref)
	if !ok {
		return false
	}
	next := cur.Clone().(*scene.Stroke)
	next.Points = slices.Clone(rp.Points)
	return a.replace(msg, i, next)
}

// applyResizeShape assigns absolute geometry, unlike move.
func (a *Applier) applyResizeShape(msg protocol.Message) bool {
	rp, err := protocol.Decode[protocol.ResizeShapePayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	i, cur, ok := live[*scene.Shape](a, msg, rp.Ref)
	if !ok {
		return false
	}
	next := cur.Clone().(*scene.Shape)
	next.X, next.Y, next.Width, next.Height = rp.X, rp.Y, rp.Width, rp.Height
	return a.replace(msg, i, next)
}

func (a *Applier) applyResizeLine(msg protocol.Message) bool {
	rp, err := protocol.Decode[protocol.ResizeLinePayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	i, cur, ok := live[*scene.Line](a, msg, rp.Ref)
	if !ok {
		return false
	}
	next := cur.Clone().(*scene.Line)
	next.X1, next.Y1, next.X2, next.Y2 = rp.X1, rp.Y1, rp.X2, rp.Y2
	return a.replace(msg, i, next)
}

// live resolves ref to a non-deleted object of variant T.
func live[T scene.Object](a *Applier, msg protocol.Message, ref protocol.Ref) (int, T, bool) {
	var zero T
	i, ok := a.resolve(msg, ref)
	if !ok {
		return 0, zero, false
	}
	obj, ok := a.scene.Live(i)
	if !ok {
		a.drop(msg, "object deleted", "index", i)
		return 0, zero, false
	}
	typed, ok := obj.(T)
	if !ok {
		a.drop(msg, "variant mismatch", "index", i, "have", obj.Header().Type)
		return 0, zero, false
	}
	return i, typed, true
}

func (a *Applier) replace(msg protocol.Message, i int, obj scene.Object) bool {
	if !a.scene.Replace(i, obj) {
		a.drop(msg, "variant mismatch or deleted", "index", i)
		return false
	}
	return true
}

func (a *Applier) applyTombstone(msg protocol.Message, op func(int) bool) bool {
	ref, err := protocol.Decode[protocol.Ref](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	i, ok := a.resolve(msg, ref)
	if !ok {
		return false
	}
	if !op(i) {
		a.drop(msg, "no state change", "index", i)
		return false
	}
	return true
}

func (a *Applier) applyNote(msg protocol.Message) bool {
	n, err := protocol.Decode[protocol.NotePayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	if n.ID == "" {
		a.drop(msg, "sticky note without id")
		return false
	}

	var ok bool
	switch msg.Type {
	case protocol.TypeNoteCreate:
		a.scene.AddNote(n)
		ok = true
	case protocol.TypeNoteUpdate:
		ok = a.scene.UpdateNote(n.ID, n.Text, n.Color)
	case protocol.TypeNoteMove:
		ok = a.scene.MoveNote(n.ID, n.X, n.Y)
	case protocol.TypeNoteResize:
		ok = a.scene.ResizeNote(n.ID, n.Width, n.Height)
	case protocol.TypeNoteDelete:
		ok = a.scene.DeleteNote(n.ID)
	}
	if !ok {
		a.drop(msg, "unknown sticky note", "id", n.ID)
	}
	return ok
}

// applyHistory replays the edits a peer's undo or redo performed. When the
// peer only sent a raster, it becomes the backdrop.
func (a *Applier) applyHistory(msg protocol.Message) bool {
	hp, err := protocol.Decode[protocol.HistoryPayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	changed := false
	for _, p := range hp.Patches {
		if p.Type == protocol.TypeUndo || p.Type == protocol.TypeRedo {
			a.drop(p, "nested history event")
			continue
		}
		p.ClientID = msg.ClientID
		if a.Apply(p) {
			changed = true
		}
	}
	if len(hp.Patches) == 0 && hp.ImageData != "" {
		a.backdrop = hp.ImageData
		changed = true
	}
	return changed
}

func (a *Applier) applyCursor(msg protocol.Message) bool {
	c, err := protocol.Decode[protocol.CursorPayload](msg)
	if err != nil {
		a.drop(msg, err.Error())
		return false
	}
	a.cursors[msg.ClientID] = geometry.Point{X: c.X, Y: c.Y}
	return true
}

// forget drops everything transient kept for a peer that left.
func (a *Applier) forget(clientID string) bool {
	_, hadCursor := a.cursors[clientID]
	_, hadStroke := a.provisional[clientID]
	delete(a.cursors, clientID)
	delete(a.provisional, clientID)
	return hadCursor || hadStroke
}

// Provisional returns the peers' in-progress strokes ordered by peer.
func (a *Applier) Provisional() []*scene.Stroke {
	ids := slices.Sorted(maps.Keys(a.provisional))
	out := make([]*scene.Stroke, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.provisional[id].Clone().(*scene.Stroke))
	}
	return out
}

// Cursor is a peer's last known pointer position in scene space.
type Cursor struct {
	ClientID string
	geometry.Point
}

// Cursors returns peer cursors ordered by peer.
func (a *Applier) Cursors() []Cursor {
	out := make([]Cursor, 0, len(a.cursors))
	for id, p := range a.cursors {
		out = append(out, Cursor{ClientID: id, Point: p})
	}
	slices.SortFunc(out, func(x, y Cursor) int { return cmp.Compare(x.ClientID, y.ClientID) })
	return out
}

// Backdrop returns the last raster-only undo/redo image received, as a PNG
// data URL, or "".
func (a *Applier) Backdrop() string { return a.backdrop }

// ClearBackdrop discards the raster backdrop, e.g. after a snapshot reload.
func (a *Applier) ClearBackdrop() { a.backdrop = "" }

// Reset drops all transient peer state.
func (a *Applier) Reset() {
	clear(a.provisional)
	clear(a.cursors)
	a.backdrop = ""
}

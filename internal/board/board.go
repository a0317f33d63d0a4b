// Package board wires one client's whiteboard session together: the scene,
// its viewport, the gesture state machine, remote patch application,
// history, rendering and autosave.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/whiteboard/internal/autosave"
	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/history"
	"github.com/inamate/whiteboard/internal/interaction"
	"github.com/inamate/whiteboard/internal/patch"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/render"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/viewport"
)

// maxRasterBytes bounds the data URL attached to undo and redo so the event
// stays under the relay's message limit.
const maxRasterBytes = 192 * 1024

// Board is safe for concurrent use: local input and inbound patches may
// arrive on different goroutines.
type Board struct {
	mu sync.Mutex

	roomID   string
	scene    *scene.Scene
	view     *viewport.Viewport
	machine  *interaction.Machine
	applier  *patch.Applier
	renderer *render.Renderer
	saver    *autosave.Saver
	logger   *slog.Logger

	outMu sync.RWMutex
	out   interaction.Emitter

	// Options captured before construction.
	writer         autosave.Writer
	saveDelay      time.Duration
	cursorInterval time.Duration
	historyDepth   int

	backdropURL string
	backdropImg image.Image
}

type Option func(*Board)

// WithEmitter sets where outbound patches go. It must be safe for
// concurrent use.
func WithEmitter(e interaction.Emitter) Option {
	return func(b *Board) { b.out = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.logger = l }
}

func WithRenderer(r *render.Renderer) Option {
	return func(b *Board) { b.renderer = r }
}

// WithAutosave persists snapshots through w after every quiet period.
func WithAutosave(w autosave.Writer, delay time.Duration) Option {
	return func(b *Board) {
		b.writer = w
		b.saveDelay = delay
	}
}

func WithCursorInterval(d time.Duration) Option {
	return func(b *Board) { b.cursorInterval = d }
}

func WithHistoryDepth(n int) Option {
	return func(b *Board) { b.historyDepth = n }
}

func New(roomID string, opts ...Option) *Board {
	v := viewport.New()
	b := &Board{
		roomID:         roomID,
		scene:          scene.New(),
		view:           &v,
		logger:         slog.Default(),
		renderer:       render.New(0, 0),
		saveDelay:      autosave.DefaultDelay,
		cursorInterval: interaction.CursorInterval,
		historyDepth:   history.DefaultDepth,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.applier = patch.NewApplier(b.scene, b.logger)
	b.machine = interaction.NewMachine(b.scene, b.view,
		interaction.WithEmitter(interaction.EmitterFunc(b.emit)),
		interaction.WithLogger(b.logger),
		interaction.WithHistory(history.New(b.historyDepth)),
		interaction.WithCursorInterval(b.cursorInterval),
	)
	if b.writer != nil {
		b.saver = autosave.New(roomID, b.writer, b.encode,
			autosave.WithDelay(b.saveDelay),
			autosave.WithLogger(b.logger),
		)
	}
	return b
}

func (b *Board) RoomID() string { return b.roomID }

// SetEmitter replaces the outbound transport, e.g. after reconnecting.
func (b *Board) SetEmitter(e interaction.Emitter) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	b.out = e
}

// emit stamps the room and forwards to the transport. It runs with b.mu
// held, or from the cursor throttle's timer, so it must not take b.mu.
func (b *Board) emit(msg protocol.Message) {
	msg.RoomID = b.roomID
	b.outMu.RLock()
	out := b.out
	b.outMu.RUnlock()
	if out != nil {
		out.Emit(msg)
	}
}

// do runs fn under the lock and schedules an autosave if the scene changed.
func (b *Board) do(fn func()) {
	b.mu.Lock()
	rev := b.scene.Revision()
	fn()
	changed := b.scene.Revision() != rev
	b.mu.Unlock()

	if changed && b.saver != nil {
		b.saver.Touch()
	}
}

// --- Local input ---

func (b *Board) PointerDown(ev interaction.PointerEvent) {
	b.do(func() { b.machine.PointerDown(ev) })
}

func (b *Board) PointerMove(ev interaction.PointerEvent) {
	b.do(func() { b.machine.PointerMove(ev) })
}

func (b *Board) PointerUp(ev interaction.PointerEvent) {
	b.do(func() { b.machine.PointerUp(ev) })
}

func (b *Board) PointerLeave(ev interaction.PointerEvent) {
	b.do(func() { b.machine.PointerLeave(ev) })
}

func (b *Board) TouchStart(touches []interaction.Touch) {
	b.do(func() { b.machine.TouchStart(touches) })
}

func (b *Board) TouchMove(touches []interaction.Touch) {
	b.do(func() { b.machine.TouchMove(touches) })
}

func (b *Board) TouchEnd(touches []interaction.Touch) {
	b.do(func() { b.machine.TouchEnd(touches) })
}

func (b *Board) SetTool(t interaction.Tool) (ok bool) {
	b.do(func() { ok = b.machine.SetTool(t) })
	return ok
}

func (b *Board) SetStyle(s interaction.Style) {
	b.do(func() { b.machine.SetStyle(s) })
}

func (b *Board) Style() interaction.Style {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.Style()
}

func (b *Board) CommitText(x, y float64, text string) (ok bool) {
	b.do(func() { ok = b.machine.CommitText(x, y, text) })
	return ok
}

func (b *Board) CommitSticky(x, y float64, text string) (n scene.StickyNote) {
	b.do(func() { n = b.machine.CommitSticky(x, y, text) })
	return n
}

func (b *Board) EditSticky(id, text, color string) (ok bool) {
	b.do(func() { ok = b.machine.EditSticky(id, text, color) })
	return ok
}

func (b *Board) DeleteSelected() (ok bool) {
	b.do(func() { ok = b.machine.DeleteSelected() })
	return ok
}

func (b *Board) ZoomAt(x, y, factor float64) {
	b.do(func() { b.machine.ZoomAt(x, y, factor) })
}

func (b *Board) Viewport() viewport.Viewport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.view
}

// Undo reverts the newest local change still applicable and tells peers.
func (b *Board) Undo() bool { return b.travel(protocol.TypeUndo) }

// Redo reapplies the newest undone change and tells peers.
func (b *Board) Redo() bool { return b.travel(protocol.TypeRedo) }

func (b *Board) travel(t string) (ok bool) {
	b.do(func() {
		h := b.machine.History()
		var patches []protocol.Message
		if t == protocol.TypeUndo {
			patches, ok = h.Undo(b.scene)
		} else {
			patches, ok = h.Redo(b.scene)
		}
		if !ok {
			return
		}

		payload := protocol.HistoryPayload{Patches: patches}
		if url, err := b.renderer.DataURL(b.scene, b.frameLocked()); err != nil {
			b.logger.Warn("render history raster", "error", err)
		} else if len(url) <= maxRasterBytes {
			payload.ImageData = url
		}

		msg, err := protocol.New(t, payload)
		if err != nil {
			b.logger.Error("encode outbound patch", "type", t, "error", err)
			return
		}
		b.emit(msg)
	})
	return ok
}

// --- Remote input ---

// HandleRemote applies one inbound relay message. Malformed JSON is
// returned as an error; stale or invalid patches are dropped silently.
func (b *Board) HandleRemote(raw []byte) (changed bool, err error) {
	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return false, fmt.Errorf("decode message: %w", err)
	}
	b.do(func() { changed = b.applier.Apply(msg) })
	return changed, nil
}

// Apply applies an already decoded inbound message.
func (b *Board) Apply(msg protocol.Message) (changed bool) {
	b.do(func() { changed = b.applier.Apply(msg) })
	return changed
}

// --- Persistence ---

// Load replaces the board with a persisted snapshot. Local history and
// transient peer state are discarded.
func (b *Board) Load(snap scene.Snapshot) {
	b.mu.Lock()
	b.scene.Load(snap)
	b.applier.Reset()
	b.machine.History().Clear()
	b.machine.Abandon()
	data, err := b.encodeLocked()
	b.mu.Unlock()

	if err == nil && b.saver != nil {
		b.saver.MarkSaved(data)
	}
}

// LoadBytes decodes and loads persisted snapshot bytes.
func (b *Board) LoadBytes(data []byte) error {
	snap, err := scene.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	b.Load(snap)
	return nil
}

// Snapshot returns the board's persisted form.
func (b *Board) Snapshot() scene.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scene.ToSnapshot()
}

func (b *Board) encode() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.encodeLocked()
}

func (b *Board) encodeLocked() ([]byte, error) {
	return b.scene.EncodeSnapshot()
}

// SaveStatus reports the autosave state, or idle without autosave.
func (b *Board) SaveStatus() autosave.Status {
	if b.saver == nil {
		return autosave.StatusIdle
	}
	return b.saver.Status()
}

// Close stops timers and flushes a pending save.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	b.machine.Close()
	b.mu.Unlock()
	if b.saver == nil {
		return nil
	}
	return b.saver.Flush(ctx)
}

// --- Queries ---

func (b *Board) frameLocked() render.Frame {
	f := render.Frame{View: *b.view}

	if url := b.applier.Backdrop(); url != b.backdropURL {
		b.backdropURL, b.backdropImg = url, nil
		if url != "" {
			img, err := render.DecodeDataURL(url)
			if err != nil {
				b.logger.Warn("decode backdrop", "error", err)
			}
			b.backdropImg = img
		}
	}
	f.Backdrop = b.backdropImg

	for _, st := range b.applier.Provisional() {
		f.Overlay = append(f.Overlay, st)
	}
	if d := b.machine.Draft(); d != nil {
		f.Overlay = append(f.Overlay, d.Clone())
	}
	if i, ok := b.machine.Selected(); ok {
		f.Selected, _ = b.scene.At(i)
	}
	return f
}

// Render rasterizes the board as the local user sees it.
func (b *Board) Render() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renderer.PNG(b.scene, b.frameLocked())
}

// DrawCommands compiles the visible board for a Canvas2D frontend.
func (b *Board) DrawCommands() []DrawCommand {
	b.mu.Lock()
	defer b.mu.Unlock()

	f := frame{
		view:     *b.view,
		backdrop: b.applier.Backdrop(),
		objects:  b.scene.Objects(),
		notes:    b.scene.Notes(),
	}
	for _, st := range b.applier.Provisional() {
		f.overlay = append(f.overlay, st)
	}
	if d := b.machine.Draft(); d != nil {
		f.overlay = append(f.overlay, d)
	}
	if i, ok := b.machine.Selected(); ok {
		f.selected, _ = b.scene.At(i)
	}
	if id, ok := b.machine.SelectedNote(); ok {
		if n, ok := b.scene.Note(id); ok {
			f.selectedNote = &n
		}
	}
	for _, c := range b.applier.Cursors() {
		f.cursors = append(f.cursors, cursor{ClientID: c.ClientID, X: c.X, Y: c.Y})
	}
	return compileDrawCommands(f)
}

// HitTest returns the ID of the topmost live object under a screen
// position, or "".
func (b *Board) HitTest(x, y float64, kind geometry.PointerKind) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.view.ScreenToScene(geometry.Point{X: x, Y: y})
	if n, ok := b.scene.NoteAt(p); ok {
		return n.ID
	}
	i, ok := b.scene.TopmostAt(p, kind)
	if !ok {
		return ""
	}
	obj, _ := b.scene.At(i)
	return obj.Header().ID
}

// SelectionBounds returns the padded bounds of the selection in scene space.
func (b *Board) SelectionBounds() (geometry.Rect, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.machine.SelectedNote(); ok {
		n, _ := b.scene.Note(id)
		return n.Bounds(), true
	}
	i, ok := b.machine.Selected()
	if !ok {
		return geometry.Rect{}, false
	}
	obj, _ := b.scene.At(i)
	return scene.Bounds(obj), true
}

// Objects returns copies of every object, tombstones included.
func (b *Board) Objects() []scene.Object {
	b.mu.Lock()
	defer b.mu.Unlock()
	objs := b.scene.Objects()
	out := make([]scene.Object, len(objs))
	for i, o := range objs {
		out[i] = o.Clone()
	}
	return out
}

func (b *Board) Notes() []scene.StickyNote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scene.Notes()
}

func (b *Board) Cursors() []patch.Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applier.Cursors()
}

func (b *Board) State() interaction.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.State()
}

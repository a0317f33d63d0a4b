package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
)

func msg(t *testing.T, typ string, payload any) protocol.Message {
	t.Helper()
	m, err := protocol.New(typ, payload)
	require.NoError(t, err)
	m.ClientID = "peer-b"
	return m
}

func commit(t *testing.T, obj scene.Object) protocol.Message {
	t.Helper()
	m, err := protocol.NewObject(obj)
	require.NoError(t, err)
	m.ClientID = "peer-b"
	return m
}

func TestResizeShapeIsAbsoluteAcrossPeers(t *testing.T) {
	// Peer A draws a rectangle locally and emits it.
	sceneA := scene.New()
	rect := scene.NewShape(scene.TypeRectangle, 0, 0, 100, 100, "#000", 2)
	sceneA.Append(rect)
	shapeEvent := commit(t, rect)

	// Peer B receives it and resizes.
	sceneB := scene.New()
	require.True(t, NewApplier(sceneB, nil).Apply(shapeEvent))
	resize := msg(t, protocol.TypeResizeShape, protocol.ResizeShapePayload{
		Ref: protocol.Ref{Index: 0}, X: 10, Y: 10, Width: 50, Height: 50,
	})

	a := NewApplier(sceneA, nil)
	require.True(t, a.Apply(resize))
	require.True(t, a.Apply(resize), "absolute patches may be replayed")

	obj, _ := sceneA.At(0)
	sh := obj.(*scene.Shape)
	assert.Equal(t, [4]float64{10, 10, 50, 50}, [4]float64{sh.X, sh.Y, sh.Width, sh.Height})
	assert.Equal(t, rect.ID, sh.ID)
}

func TestMoveIsNotIdempotent(t *testing.T) {
	s := scene.New()
	s.Append(scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2))
	a := NewApplier(s, nil)

	move := msg(t, protocol.TypeMove, protocol.MovePayload{Ref: protocol.Ref{Index: 0}, DeltaX: 5})
	a.Apply(move)
	a.Apply(move)

	obj, _ := s.At(0)
	assert.Equal(t, 10.0, obj.(*scene.Shape).X)
}

func TestIDWinsOverStaleIndex(t *testing.T) {
	s := scene.New()
	first := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	second := scene.NewShape(scene.TypeRectangle, 100, 0, 10, 10, "#000", 2)
	s.Append(first)
	s.Append(second)
	a := NewApplier(s, nil)

	// The sender saw the objects in the other order.
	require.True(t, a.Apply(msg(t, protocol.TypeMove, protocol.MovePayload{
		Ref: protocol.Ref{Index: 0, ID: second.ID}, DeltaY: 7,
	})))
	assert.Equal(t, 0.0, first.Y)
	assert.Equal(t, 7.0, second.Y)

	assert.False(t, a.Apply(msg(t, protocol.TypeMove, protocol.MovePayload{
		Ref: protocol.Ref{Index: 0, ID: "obj_unknown"}, DeltaY: 7,
	})), "an unknown id is not resolved through the index")
	assert.Equal(t, 0.0, first.Y)
}

func TestStalePatchesAreDropped(t *testing.T) {
	s := scene.New()
	s.Append(scene.NewShape(scene.TypeEllipse, 0, 0, 10, 10, "#000", 2))
	a := NewApplier(s, nil)

	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"out of range move", msg(t, protocol.TypeMove, protocol.MovePayload{Ref: protocol.Ref{Index: 5}, DeltaX: 1})},
		{"negative index", msg(t, protocol.TypeDelete, protocol.Ref{Index: -1})},
		{"line resize on ellipse", msg(t, protocol.TypeResizeLine, protocol.ResizeLinePayload{Ref: protocol.Ref{Index: 0}, X2: 4})},
		{"stroke resize on ellipse", msg(t, protocol.TypeResizeStroke, protocol.ResizeStrokePayload{Ref: protocol.Ref{Index: 0}})},
		{"malformed payload", protocol.Message{Type: protocol.TypeMove, Payload: json.RawMessage(`"nope"`)}},
		{"unknown type", protocol.Message{Type: "teleport"}},
		{"unknown note", msg(t, protocol.TypeNoteMove, protocol.NotePayload{ID: "note_x", X: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Revision()
			assert.NotPanics(t, func() { assert.False(t, a.Apply(tt.msg)) })
			assert.Equal(t, before, s.Revision())
		})
	}
}

func TestTombstoneProtectsLaterObjects(t *testing.T) {
	s := scene.New()
	a := NewApplier(s, nil)
	for i := range 3 {
		a.Apply(commit(t, scene.NewShape(scene.TypeRectangle, float64(i), 0, 10, 10, "#000", 2)))
	}
	require.True(t, a.Apply(msg(t, protocol.TypeDelete, protocol.Ref{Index: 2})))
	require.True(t, a.Apply(commit(t, scene.NewShape(scene.TypeRectangle, 50, 0, 10, 10, "#000", 2))))
	assert.Equal(t, 4, s.Len())

	assert.False(t, a.Apply(msg(t, protocol.TypeMove, protocol.MovePayload{Ref: protocol.Ref{Index: 2}, DeltaX: 9})))
	obj, _ := s.At(3)
	assert.Equal(t, 50.0, obj.(*scene.Shape).X)

	require.True(t, a.Apply(msg(t, protocol.TypeRestore, protocol.Ref{Index: 2})))
	_, ok := s.Live(2)
	assert.True(t, ok)
}

func TestProvisionalStrokeLifecycle(t *testing.T) {
	s := scene.New()
	a := NewApplier(s, nil)

	a.Apply(msg(t, protocol.TypeDraw, protocol.DrawPayload{X: 1, Y: 1, Color: "#f00", Size: 3, Tool: scene.ToolPen, IsStart: true}))
	a.Apply(msg(t, protocol.TypeDraw, protocol.DrawPayload{X: 2, Y: 2, Color: "#f00", Size: 3, Tool: scene.ToolPen}))

	prov := a.Provisional()
	require.Len(t, prov, 1)
	assert.Equal(t, []geometry.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, prov[0].Points)
	assert.Equal(t, 0, s.Len(), "provisional strokes are not in the scene")

	// A new start discards the previous partial stroke.
	a.Apply(msg(t, protocol.TypeDraw, protocol.DrawPayload{X: 9, Y: 9, IsStart: true}))
	assert.Len(t, a.Provisional()[0].Points, 1)

	a.Apply(commit(t, scene.NewStroke([]geometry.Point{{X: 9, Y: 9}, {X: 10, Y: 10}}, "#f00", 3, scene.ToolPen)))
	assert.Empty(t, a.Provisional())
	assert.Equal(t, 1, s.Len())
}

func TestInitLoadsOrderedObjects(t *testing.T) {
	s := scene.New()
	a := NewApplier(s, nil)
	objs := protocol.ObjectList{
		scene.NewText("a", 0, 0, "#000", 12),
		scene.NewLine(scene.TypeArrow, 0, 0, 1, 1, "#000", 1),
	}
	objs[0].Header().ID = "obj_a"
	objs[1].Header().ID = "obj_b"

	init := msg(t, protocol.TypeInit, protocol.InitPayload{Objects: objs})
	require.True(t, a.Apply(init))
	a.Apply(init)
	assert.Equal(t, 2, s.Len(), "replayed ids are not duplicated")

	i, ok := s.IndexOf("obj_b")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	assert.False(t, a.Apply(msg(t, protocol.TypeInit, protocol.InitPayload{})))
}

func TestInitCarriesTombstones(t *testing.T) {
	// A snapshot saved before b was deleted on the relay.
	s := scene.New()
	snapA := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	snapA.ID = "obj_a"
	snapB := scene.NewShape(scene.TypeEllipse, 20, 0, 10, 10, "#000", 2)
	snapB.ID = "obj_b"
	s.Append(snapA)
	s.Append(snapB)
	a := NewApplier(s, nil)

	b := snapB.Clone()
	b.Header().Deleted = true
	c := scene.NewText("gone", 0, 40, "#000", 12)
	c.ID = "obj_c"
	c.Deleted = true
	init := msg(t, protocol.TypeInit, protocol.InitPayload{Objects: protocol.ObjectList{snapA.Clone(), b, c}})
	require.True(t, a.Apply(init))

	require.Equal(t, 3, s.Len())
	live := 0
	for i := range s.Len() {
		if _, ok := s.Live(i); ok {
			live++
		}
	}
	assert.Equal(t, 1, live)
	_, ok := s.Live(1)
	assert.False(t, ok, "snapshot object takes the relay tombstone")
	got, _ := s.At(2)
	assert.True(t, got.Header().Deleted, "unknown tombstone is kept to align indices")
}

func TestStickyNoteEvents(t *testing.T) {
	s := scene.New()
	a := NewApplier(s, nil)

	note := protocol.NotePayload{ID: "note_1", X: 1, Y: 1, Width: 200, Height: 200, Text: "hi", Color: "#ff0"}
	require.True(t, a.Apply(msg(t, protocol.TypeNoteCreate, note)))
	require.True(t, a.Apply(msg(t, protocol.TypeNoteUpdate, protocol.NotePayload{ID: "note_1", Text: "bye"})))
	require.True(t, a.Apply(msg(t, protocol.TypeNoteMove, protocol.NotePayload{ID: "note_1", X: 40, Y: 50})))
	require.True(t, a.Apply(msg(t, protocol.TypeNoteResize, protocol.NotePayload{ID: "note_1", Width: 20, Height: 300})))

	got, ok := s.Note("note_1")
	require.True(t, ok)
	assert.Equal(t, "bye", got.Text)
	assert.Equal(t, "#ff0", got.Color)
	assert.Equal(t, [4]float64{40, 50, 100, 300}, [4]float64{got.X, got.Y, got.Width, got.Height})

	require.True(t, a.Apply(msg(t, protocol.TypeNoteDelete, protocol.NotePayload{ID: "note_1"})))
	assert.Empty(t, s.Notes())
	assert.False(t, a.Apply(msg(t, protocol.TypeNoteCreate, protocol.NotePayload{Text: "no id"})))
}

func TestHistoryEventsReplayPatches(t *testing.T) {
	s := scene.New()
	r := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	s.Append(r)
	a := NewApplier(s, nil)

	del := msg(t, protocol.TypeDelete, protocol.Ref{Index: 0, ID: r.ID})
	require.True(t, a.Apply(msg(t, protocol.TypeUndo, protocol.HistoryPayload{Patches: []protocol.Message{del}})))
	_, ok := s.Live(0)
	assert.False(t, ok)

	require.True(t, a.Apply(msg(t, protocol.TypeRedo, protocol.HistoryPayload{ImageData: "data:image/png;base64,AA=="})))
	assert.Equal(t, "data:image/png;base64,AA==", a.Backdrop())
}

func TestCursorsAndLeave(t *testing.T) {
	a := NewApplier(scene.New(), nil)
	require.True(t, a.Apply(msg(t, protocol.TypeCursorMove, protocol.CursorPayload{X: 3, Y: 4})))
	a.Apply(msg(t, protocol.TypeDraw, protocol.DrawPayload{X: 1, Y: 1, IsStart: true}))

	assert.Equal(t, []Cursor{{ClientID: "peer-b", Point: geometry.Point{X: 3, Y: 4}}}, a.Cursors())

	require.True(t, a.Apply(protocol.Message{Type: protocol.TypeCursorLeave, ClientID: "peer-b"}))
	assert.Empty(t, a.Cursors())
	assert.Empty(t, a.Provisional())
}

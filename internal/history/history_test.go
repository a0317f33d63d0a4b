package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
)

func shapeAt(s *scene.Scene, i int) *scene.Shape {
	obj, _ := s.At(i)
	return obj.(*scene.Shape)
}

func TestUndoRedoCreate(t *testing.T) {
	s := scene.New()
	h := New(0)
	r := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	i := s.Append(r)
	h.Record(Created(i, r))

	patches, ok := h.Undo(s)
	require.True(t, ok)
	require.Len(t, patches, 1)
	assert.Equal(t, protocol.TypeDelete, patches[0].Type)
	_, live := s.Live(i)
	assert.False(t, live)

	patches, ok = h.Redo(s)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeRestore, patches[0].Type)
	_, live = s.Live(i)
	assert.True(t, live)

	ref, err := protocol.Decode[protocol.Ref](patches[0])
	require.NoError(t, err)
	assert.Equal(t, r.ID, ref.ID)
}

func TestUndoMoveNegatesDelta(t *testing.T) {
	s := scene.New()
	h := New(0)
	r := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	i := s.Append(r)
	s.Transform(i, 30, -5)
	h.Record(Moved(i, r, 30, -5))

	// A peer moves the same object in the meantime; undo composes with it.
	s.Transform(i, 1, 1)

	patches, ok := h.Undo(s)
	require.True(t, ok)
	assert.Equal(t, [2]float64{1, 1}, [2]float64{shapeAt(s, i).X, shapeAt(s, i).Y})

	mv, err := protocol.Decode[protocol.MovePayload](patches[0])
	require.NoError(t, err)
	assert.Equal(t, -30.0, mv.DeltaX)
	assert.Equal(t, 5.0, mv.DeltaY)
}

func TestUndoResizeRestoresGeometry(t *testing.T) {
	s := scene.New()
	h := New(0)
	st := scene.NewStroke([]geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, "#000", 2, scene.ToolPen)
	i := s.Append(st)
	before := st.Clone()
	require.True(t, s.Resize(i, geometry.HandleSE, 10, 10, before))
	after, _ := s.At(i)
	h.Record(Replaced(i, before, after))

	patches, ok := h.Undo(s)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeResizeStroke, patches[0].Type)
	got, _ := s.At(i)
	assert.Equal(t, before.(*scene.Stroke).Points, got.(*scene.Stroke).Points)

	_, ok = h.Redo(s)
	require.True(t, ok)
	got, _ = s.At(i)
	assert.Equal(t, after.(*scene.Stroke).Points, got.(*scene.Stroke).Points)
}

func TestUndoSkipsChangesDeletedByPeers(t *testing.T) {
	s := scene.New()
	h := New(0)
	a := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	b := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	ia := s.Append(a)
	h.Record(Created(ia, a))
	ib := s.Append(b)
	s.Transform(ib, 5, 0)
	h.Record(Moved(ib, b, 5, 0))

	// A peer deleted b; its move can no longer be undone.
	s.MarkDeleted(ib)

	patches, ok := h.Undo(s)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeDelete, patches[0].Type)
	_, live := s.Live(ia)
	assert.False(t, live)
	assert.False(t, h.CanUndo())
}

func TestRecordClearsRedoAndBoundsDepth(t *testing.T) {
	s := scene.New()
	h := New(3)
	for range 5 {
		r := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
		h.Record(Created(s.Append(r), r))
	}

	undone := 0
	for h.CanUndo() {
		_, ok := h.Undo(s)
		require.True(t, ok)
		undone++
	}
	assert.Equal(t, 3, undone)
	_, live := s.Live(1)
	assert.True(t, live, "oldest changes fell off the log")

	require.True(t, h.CanRedo())
	r := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	h.Record(Created(s.Append(r), r))
	assert.False(t, h.CanRedo())
}

func TestNoteChanges(t *testing.T) {
	s := scene.New()
	h := New(0)

	created := s.AddNote(scene.StickyNote{Text: "a", Color: "#ff0"})
	h.Record(NoteChanged(nil, &created))

	before := created
	s.MoveNote(created.ID, 300, 300)
	moved, _ := s.Note(created.ID)
	h.Record(NoteChanged(&before, &moved))

	patches, ok := h.Undo(s)
	require.True(t, ok)
	assert.Len(t, patches, 3)
	got, _ := s.Note(created.ID)
	assert.Equal(t, before, got)

	patches, ok = h.Undo(s)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeNoteDelete, patches[0].Type)
	assert.Empty(t, s.Notes())

	patches, ok = h.Redo(s)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeNoteCreate, patches[0].Type)
	got, _ = s.Note(created.ID)
	assert.Equal(t, created, got)
}

func TestInverseIsInvolution(t *testing.T) {
	r := scene.NewShape(scene.TypeRectangle, 0, 0, 1, 1, "#000", 1)
	r.ID = "obj_r"
	changes := []Change{
		Created(0, r),
		Deleted(0, r),
		Moved(0, r, 3, 4),
		Replaced(0, r, scene.NewShape(scene.TypeRectangle, 0, 0, 2, 2, "#000", 1)),
		NoteChanged(nil, &scene.StickyNote{ID: "note_1"}),
	}
	for _, c := range changes {
		t.Run(c.String(), func(t *testing.T) {
			assert.Equal(t, c, c.Inverse().Inverse())
		})
	}
}

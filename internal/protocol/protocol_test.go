package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/scene"
)

func TestEnvelopeWireShape(t *testing.T) {
	msg, err := New(TypeMove, MovePayload{Ref: Ref{Index: 2, ID: "obj_x"}, DeltaX: 5})
	require.NoError(t, err)
	msg.RoomID = "room_1"
	msg.ClientID = "c1"

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"move","roomId":"room_1","clientId":"c1","payload":{"index":2,"id":"obj_x","deltaX":5,"deltaY":0}}`, string(data))

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	mv, err := Decode[MovePayload](back)
	require.NoError(t, err)
	assert.Equal(t, 2, mv.Index)
	assert.Equal(t, "obj_x", mv.ID)
	assert.Equal(t, 5.0, mv.DeltaX)
}

func TestDecodeEmptyPayload(t *testing.T) {
	_, err := Decode[MovePayload](Message{Type: TypeMove})
	assert.Error(t, err)

	_, err = Decode[MovePayload](Message{Type: TypeMove, Payload: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}

func TestNewObjectEventNames(t *testing.T) {
	tests := []struct {
		obj  scene.Object
		want string
	}{
		{scene.NewStroke([]geometry.Point{{X: 1, Y: 1}}, "#000", 2, scene.ToolPen), TypeStroke},
		{scene.NewText("hi", 0, 0, "#000", 16), TypeText},
		{scene.NewShape(scene.TypeTriangle, 0, 0, 10, 10, "#000", 2), TypeShape},
		{scene.NewLine(scene.TypeArrow, 0, 0, 10, 10, "#000", 2), TypeShape},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+string(tt.obj.Header().Type), func(t *testing.T) {
			msg, err := NewObject(tt.obj)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Type)

			back, err := DecodeObject(msg)
			require.NoError(t, err)
			assert.Equal(t, tt.obj, back)
		})
	}
}

func TestDecodeObjectWithoutTypeTag(t *testing.T) {
	obj, err := DecodeObject(Message{Type: TypeStroke, Payload: json.RawMessage(`{"points":[{"x":1,"y":2}],"color":"#f00","size":3}`)})
	require.NoError(t, err)
	st := obj.(*scene.Stroke)
	assert.Equal(t, scene.TypeStroke, st.Type)
	assert.Equal(t, scene.ToolPen, st.Tool)

	obj, err = DecodeObject(Message{Type: TypeText, Payload: json.RawMessage(`{"text":"a","x":1,"y":2,"color":"#000","fontSize":12}`)})
	require.NoError(t, err)
	assert.Equal(t, scene.TypeText, obj.Header().Type)

	_, err = DecodeObject(Message{Type: TypeShape, Payload: json.RawMessage(`{"x":1}`)})
	assert.Error(t, err, "shape events must name their variant")

	_, err = DecodeObject(Message{Type: TypeStroke, Payload: json.RawMessage(`{"type":"rectangle","x":1}`)})
	assert.Error(t, err, "event and variant disagree")
}

func TestInitPayloadRoundTrip(t *testing.T) {
	in := InitPayload{
		Objects: ObjectList{
			scene.NewStroke([]geometry.Point{{X: 1, Y: 1}}, "#000", 2, scene.ToolErase),
			scene.NewLine(scene.TypeLine, 0, 0, 5, 5, "#00f", 1),
		},
	}
	msg, err := New(TypeInit, in)
	require.NoError(t, err)

	out, err := Decode[InitPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, in.Objects, out.Objects)

	empty, err := Decode[InitPayload](Message{Type: TypeInit, Payload: json.RawMessage(`{"objects":[]}`)})
	require.NoError(t, err)
	assert.Empty(t, empty.Objects)
}

func TestEventClassification(t *testing.T) {
	assert.True(t, IsCommit(TypeShape))
	assert.False(t, IsCommit(TypeMove))
	assert.True(t, IsPresence(TypeCursorMove))
	assert.False(t, IsPresence(TypeDraw))
	assert.True(t, IsRelayed(TypeNoteResize))
	assert.False(t, IsRelayed(TypeInit), "init only flows from the relay")
	assert.False(t, IsRelayed(TypeJoinRoom))
}

func TestNewResizeChoosesVariantEvent(t *testing.T) {
	ref := Ref{Index: 1, ID: "obj_1"}
	tests := []struct {
		obj  scene.Object
		want string
	}{
		{scene.NewStroke([]geometry.Point{{X: 1, Y: 1}}, "#000", 2, scene.ToolPen), TypeResizeStroke},
		{scene.NewShape(scene.TypeEllipse, 0, 0, 4, 4, "#000", 1), TypeResizeShape},
		{scene.NewLine(scene.TypeLine, 0, 0, 4, 4, "#000", 1), TypeResizeLine},
		{scene.NewText("a", 0, 0, "#000", 30), TypeResize},
	}
	for _, tt := range tests {
		msg, err := NewResize(ref, tt.obj)
		require.NoError(t, err)
		assert.Equal(t, tt.want, msg.Type)
	}

	msg, err := NewResize(ref, scene.NewText("a", 2, 3, "#000", 30))
	require.NoError(t, err)
	rp, err := Decode[ResizePayload](msg)
	require.NoError(t, err)
	obj, err := scene.UnmarshalObject(rp.Object)
	require.NoError(t, err)
	assert.Equal(t, 30.0, obj.(*scene.Text).FontSize)
	assert.Equal(t, "obj_1", rp.ID)
}

package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
)

func TestEvent(t *testing.T) {
	color.NoColor = true

	shape := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
	shape.ID = "obj_1"
	commit, err := protocol.NewObject(shape)
	require.NoError(t, err)
	commit.ClientID = "0123456789abcdef"

	undo, err := protocol.New(protocol.TypeUndo, protocol.HistoryPayload{
		Patches: []protocol.Message{{Type: protocol.TypeDelete}},
	})
	require.NoError(t, err)

	relayErr, err := protocol.New(protocol.TypeError, protocol.ErrorPayload{Message: "join a room first"})
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  protocol.Message
		want []string
	}{
		{"commit", commit, []string{"shape", "01234567 ", "rectangle obj_1"}},
		{"undo", undo, []string{"undo", "relay", "[delete] raster=false"}},
		{"error", relayErr, []string{"error", "join a room first"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Event(&buf, tt.msg)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestErrorReturnsTitle(t *testing.T) {
	err := Error("room not found", "", nil)
	assert.EqualError(t, err, "room not found")
}

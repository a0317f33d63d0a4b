package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inamate/whiteboard/internal/geometry"
)

func TestContentBounds(t *testing.T) {
	_, ok := Snapshot{}.ContentBounds()
	assert.False(t, ok)

	gone := rect(1000, 1000, 10, 10)
	gone.Deleted = true
	snap := Snapshot{
		Objects:     []Object{rect(0, 0, 10, 10), gone, NewLine(TypeLine, 50, 20, 20, 40, "#000", 1)},
		StickyNotes: []StickyNote{{X: -10, Y: 5, Width: 100, Height: 100}},
	}
	area, ok := snap.ContentBounds()
	assert.True(t, ok)
	assert.Equal(t, geometry.NewRect(-10, 0, 100, 105), area)
}

package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasPrefix(t *testing.T) {
	id := NewObjectID()
	assert.True(t, strings.HasPrefix(id, PrefixObject+"_"))
	require.NoError(t, Validate(id, PrefixObject))
	assert.NotEqual(t, id, NewObjectID())
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(NewNoteID(), PrefixObject))
	assert.Error(t, Validate("not an id", PrefixObject))
	assert.NoError(t, Validate(NewRoomID(), PrefixRoom))
}

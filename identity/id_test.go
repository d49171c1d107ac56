package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerId_ParseRoundTrip(t *testing.T) {
	id := NewPeerId()
	parsed, err := ParsePeerId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Len(t, id.Short(), 8)
}

func TestRoomId_BytesAreSixteen(t *testing.T) {
	id := NewRoomId()
	assert.Len(t, id.Bytes(), 16)
}

func TestPeerId_Uniqueness(t *testing.T) {
	a := NewPeerId()
	b := NewPeerId()
	assert.NotEqual(t, a, b)
}

func TestParsePeerId_Invalid(t *testing.T) {
	_, err := ParsePeerId("not-a-uuid")
	assert.Error(t, err)
}

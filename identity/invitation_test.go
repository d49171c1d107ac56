package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvitation_Valid(t *testing.T) {
	link := "room:550e8400-e29b-41d4-a716-446655440000@198.51.100.7:41000"
	inv, err := ParseInvitation(link)
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", inv.RoomId.String())
	assert.Equal(t, "198.51.100.7:41000", inv.Address)
}

func TestParseInvitation_IPv6(t *testing.T) {
	link := "room:550e8400-e29b-41d4-a716-446655440000@[::1]:41000"
	inv, err := ParseInvitation(link)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:41000", inv.Address)
}

func TestParseInvitation_RoundTrip(t *testing.T) {
	rid := NewRoomId()
	inv := Invitation{RoomId: rid, Address: "203.0.113.5:5000"}
	parsed, err := ParseInvitation(inv.String())
	require.NoError(t, err)
	assert.Equal(t, inv, parsed)
}

func TestParseInvitation_Errors(t *testing.T) {
	cases := []string{
		"room:not-a-uuid@198.51.100.7:41000",
		"550e8400-e29b-41d4-a716-446655440000@198.51.100.7:41000",
		"room:550e8400-e29b-41d4-a716-446655440000",
		"room:550e8400-e29b-41d4-a716-446655440000@@198.51.100.7:41000",
		"room:550e8400-e29b-41d4-a716-446655440000@not-a-host-port",
	}
	for _, link := range cases {
		_, err := ParseInvitation(link)
		assert.Error(t, err, link)
		var ierr *Error
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, KindOther, ierr.Kind)
	}
}

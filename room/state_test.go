package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-hartshorn/resonance-sub000/identity"
)

func newTestState() (*State, identity.PeerId) {
	self := identity.NewPeerId()
	return NewState(identity.NewRoomId(), self, "alice"), self
}

func TestNewState_SeedsSelfAsMember(t *testing.T) {
	s, self := newTestState()

	peers := s.Peers()
	require.Contains(t, peers, self)
	assert.Equal(t, "alice", peers[self].Name)
	assert.False(t, peers[self].WebRTCUp)
}

func TestAddPeer_SecondCallForSamePeerIsError(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()

	ev, err := s.AddPeer(bob, "bob")
	require.NoError(t, err)
	assert.Equal(t, EventPeerAdded, ev.Kind)
	assert.Equal(t, bob, ev.PeerId)

	_, err = s.AddPeer(bob, "bob")
	require.Error(t, err)
	var identErr *identity.Error
	require.ErrorAs(t, err, &identErr)
	assert.Equal(t, identity.KindInvalidState, identErr.Kind)
}

func TestRemovePeer_SecondCallIsNotFound(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()
	_, err := s.AddPeer(bob, "bob")
	require.NoError(t, err)

	ev, err := s.RemovePeer(bob)
	require.NoError(t, err)
	assert.Equal(t, EventPeerRemoved, ev.Kind)

	_, err = s.RemovePeer(bob)
	require.Error(t, err)
	var identErr *identity.Error
	require.ErrorAs(t, err, &identErr)
	assert.Equal(t, identity.KindNotFound, identErr.Kind)
}

func TestRemovePeer_ClearsAnyPendingAdmission(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()
	s.HandleJoinRequest(bob, "bob", "127.0.0.1:9000")
	require.Contains(t, s.PendingRequests(), bob)

	_, err := s.AddPeer(bob, "bob")
	require.NoError(t, err)
	_, err = s.RemovePeer(bob)
	require.NoError(t, err)

	assert.NotContains(t, s.PendingRequests(), bob)
}

func TestRenamePeer_UnknownPeerIsNotFound(t *testing.T) {
	s, _ := newTestState()
	_, err := s.RenamePeer(identity.NewPeerId(), "whoever")
	require.Error(t, err)
	var identErr *identity.Error
	require.ErrorAs(t, err, &identErr)
	assert.Equal(t, identity.KindNotFound, identErr.Kind)
}

func TestRenamePeer_UpdatesName(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()
	_, err := s.AddPeer(bob, "bob")
	require.NoError(t, err)

	ev, err := s.RenamePeer(bob, "bobby")
	require.NoError(t, err)
	assert.Equal(t, EventPeerRenamed, ev.Kind)
	assert.Equal(t, "bobby", s.Peers()[bob].Name)
}

func TestApproveJoinRequest_UnknownPeerIsNotFound(t *testing.T) {
	s, _ := newTestState()
	_, err := s.ApproveJoinRequest(identity.NewPeerId())
	require.Error(t, err)
	var identErr *identity.Error
	require.ErrorAs(t, err, &identErr)
	assert.Equal(t, identity.KindNotFound, identErr.Kind)
}

func TestApproveJoinRequest_AddsMemberAndClearsPending(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()
	s.HandleJoinRequest(bob, "bob", "127.0.0.1:9000")

	ev, err := s.ApproveJoinRequest(bob)
	require.NoError(t, err)
	assert.Equal(t, EventJoinRequestStatusChanged, ev.Kind)
	assert.Equal(t, StatusApproved, ev.Status)

	assert.Contains(t, s.Peers(), bob)
	assert.NotContains(t, s.PendingRequests(), bob)
}

func TestDenyJoinRequest_UnknownPeerIsHarmless(t *testing.T) {
	s, _ := newTestState()
	ev := s.DenyJoinRequest(identity.NewPeerId(), "no room")
	assert.Equal(t, EventJoinRequestStatusChanged, ev.Kind)
	assert.Equal(t, StatusDenied, ev.Status)
	assert.Equal(t, "no room", ev.Reason)
}

func TestDenyJoinRequest_RemovesPendingWithoutAddingMember(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()
	s.HandleJoinRequest(bob, "bob", "127.0.0.1:9000")

	s.DenyJoinRequest(bob, "denied")
	assert.NotContains(t, s.PendingRequests(), bob)
	assert.NotContains(t, s.Peers(), bob)
}

func TestUpdateWebRTCStatus_UnknownPeerIsNotFound(t *testing.T) {
	s, _ := newTestState()
	err := s.UpdateWebRTCStatus(identity.NewPeerId(), true)
	require.Error(t, err)
}

func TestUpdateWebRTCStatus_SetsFlag(t *testing.T) {
	s, _ := newTestState()
	bob := identity.NewPeerId()
	_, err := s.AddPeer(bob, "bob")
	require.NoError(t, err)

	require.NoError(t, s.UpdateWebRTCStatus(bob, true))
	assert.True(t, s.Peers()[bob].WebRTCUp)
}

func TestPeers_SnapshotDoesNotAliasInternalState(t *testing.T) {
	s, self := newTestState()
	snap := s.Peers()
	m := snap[self]
	m.Name = "mutated"

	assert.Equal(t, "alice", s.Peers()[self].Name)
}

// Package room implements the per-node authoritative view of a room
// (members, pending admissions, per-peer transport status) and the
// single-goroutine handler that serializes UI commands with Phase-1/
// Phase-2 network events into one stream. State itself is pure and
// synchronous — every method returns the event it produced (or an
// error) with no goroutine of its own, as spec.md §8's idempotence
// properties require.
package room

import (
	"github.com/j-hartshorn/resonance-sub000/identity"
)

// Member is one entry in a RoomState's roster: a peer's display name
// and whether its Phase-2 media connection is currently up.
type Member struct {
	PeerId   identity.PeerId
	Name     string
	WebRTCUp bool
}

// Pending is an admission request awaiting the local operator's
// Approve/Deny decision.
type Pending struct {
	PeerId identity.PeerId
	Name   string
	Addr   string
}

// State is the in-memory authoritative room view for one node. It holds
// exactly one local-self member and zero or more remotes (spec.md §3's
// RoomState invariant).
type State struct {
	roomId identity.RoomId
	selfId identity.PeerId

	members map[identity.PeerId]*Member
	pending map[identity.PeerId]*Pending
}

// NewState creates a RoomState for roomId with selfId already present as
// the local member under selfName.
func NewState(roomId identity.RoomId, selfId identity.PeerId, selfName string) *State {
	s := &State{
		roomId:  roomId,
		selfId:  selfId,
		members: make(map[identity.PeerId]*Member),
		pending: make(map[identity.PeerId]*Pending),
	}
	s.members[selfId] = &Member{PeerId: selfId, Name: selfName, WebRTCUp: false}
	return s
}

// ID returns the room this state belongs to.
func (s *State) ID() identity.RoomId { return s.roomId }

// SelfID returns the local node's PeerId.
func (s *State) SelfID() identity.PeerId { return s.selfId }

// AddPeer adds a new remote member. Calling it twice for the same
// peer_id is an error on the second call and leaves state unchanged
// (spec.md §8's idempotence property).
func (s *State) AddPeer(peerId identity.PeerId, name string) (RoomEvent, error) {
	if _, exists := s.members[peerId]; exists {
		return RoomEvent{}, identity.NewError(identity.KindInvalidState, "peer already a member")
	}
	s.members[peerId] = &Member{PeerId: peerId, Name: name}
	return RoomEvent{Kind: EventPeerAdded, PeerId: peerId, Name: name}, nil
}

// RemovePeer removes a member. Calling it twice is Ok then NotFound
// (spec.md §8).
func (s *State) RemovePeer(peerId identity.PeerId) (RoomEvent, error) {
	if _, exists := s.members[peerId]; !exists {
		return RoomEvent{}, identity.NewError(identity.KindNotFound, "peer not a member")
	}
	delete(s.members, peerId)
	delete(s.pending, peerId)
	return RoomEvent{Kind: EventPeerRemoved, PeerId: peerId}, nil
}

// RenamePeer updates a member's display name (supplements spec.md §3's
// "PeerInfo mutated on name learn" line, exposed as its own operation
// per original_source/network/src/phase1.rs's late-rename handling).
func (s *State) RenamePeer(peerId identity.PeerId, name string) (RoomEvent, error) {
	m, exists := s.members[peerId]
	if !exists {
		return RoomEvent{}, identity.NewError(identity.KindNotFound, "peer not a member")
	}
	m.Name = name
	return RoomEvent{Kind: EventPeerRenamed, PeerId: peerId, Name: name}, nil
}

// HandleJoinRequest records an admission request and returns the event
// to surface upward to the operator.
func (s *State) HandleJoinRequest(peerId identity.PeerId, name, addr string) RoomEvent {
	s.pending[peerId] = &Pending{PeerId: peerId, Name: name, Addr: addr}
	return RoomEvent{Kind: EventJoinRequestReceived, PeerId: peerId, Name: name, Addr: addr}
}

// ApproveJoinRequest marks a pending admission approved and adds the
// peer as a member (with WebRTC status false until Phase-2 connects).
func (s *State) ApproveJoinRequest(peerId identity.PeerId) (RoomEvent, error) {
	p, exists := s.pending[peerId]
	if !exists {
		return RoomEvent{}, identity.NewError(identity.KindNotFound, "no pending admission for peer")
	}
	delete(s.pending, peerId)
	s.members[peerId] = &Member{PeerId: peerId, Name: p.Name}
	return RoomEvent{Kind: EventJoinRequestStatusChanged, PeerId: peerId, Status: StatusApproved}, nil
}

// DenyJoinRequest marks a pending admission denied. Unlike approval,
// denial of an unknown peer is not an error — it still reports the
// status change so a duplicate or late decision is harmless to report.
func (s *State) DenyJoinRequest(peerId identity.PeerId, reason string) RoomEvent {
	delete(s.pending, peerId)
	return RoomEvent{Kind: EventJoinRequestStatusChanged, PeerId: peerId, Status: StatusDenied, Reason: reason}
}

// UpdateWebRTCStatus sets a member's webrtc_up flag.
func (s *State) UpdateWebRTCStatus(peerId identity.PeerId, up bool) error {
	m, exists := s.members[peerId]
	if !exists {
		return identity.NewError(identity.KindNotFound, "peer not a member")
	}
	m.WebRTCUp = up
	return nil
}

// Peers returns a snapshot of the current roster, safe for the caller
// to retain (no aliasing into State's internal maps).
func (s *State) Peers() map[identity.PeerId]Member {
	out := make(map[identity.PeerId]Member, len(s.members))
	for id, m := range s.members {
		out[id] = *m
	}
	return out
}

// PendingRequests returns a snapshot of outstanding admission requests.
func (s *State) PendingRequests() map[identity.PeerId]Pending {
	out := make(map[identity.PeerId]Pending, len(s.pending))
	for id, p := range s.pending {
		out[id] = *p
	}
	return out
}

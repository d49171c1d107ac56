package room

import "github.com/j-hartshorn/resonance-sub000/identity"

// EventKind discriminates the payload carried by a RoomEvent, following
// the same flattened-struct tagged-union shape as wire.ApplicationMessage.
type EventKind int

const (
	EventPeerAdded EventKind = iota + 1
	EventPeerRemoved
	EventPeerRenamed
	EventJoinRequestReceived
	EventJoinRequestStatusChanged
	EventError
)

// JoinRequestStatus is the outcome carried by an
// EventJoinRequestStatusChanged RoomEvent.
type JoinRequestStatus int

const (
	StatusApproved JoinRequestStatus = iota + 1
	StatusDenied
)

// RoomEvent is emitted upward to the UI by both State operations and the
// Handler's network-event reconciliation.
type RoomEvent struct {
	Kind   EventKind
	PeerId identity.PeerId
	Name   string
	Addr   string
	Status JoinRequestStatus
	Reason string

	ErrKind identity.Kind // set only when Kind == EventError
}

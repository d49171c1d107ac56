// Package identity defines the node and room identifiers shared across the
// bootstrap, transport, and room layers, plus the taxonomy of errors they
// report upward.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// PeerId is a per-node random 128-bit identifier, created once at node
// start and never reused.
type PeerId uuid.UUID

// NewPeerId generates a fresh random PeerId.
func NewPeerId() PeerId {
	return PeerId(uuid.New())
}

// ParsePeerId parses a canonical UUID string into a PeerId.
func ParsePeerId(s string) (PeerId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PeerId{}, fmt.Errorf("parse peer id: %w", err)
	}
	return PeerId(u), nil
}

// PeerIdFromBytes reinterprets 16 raw bytes (e.g. taken off the wire) as a
// PeerId without the round trip through its text form.
func PeerIdFromBytes(b [16]byte) PeerId {
	return PeerId(uuid.UUID(b))
}

func (p PeerId) String() string {
	return uuid.UUID(p).String()
}

// Bytes returns the 16 raw identifier bytes, used for PeerId-ordered
// tie-breaking (e.g. the Phase-1 key-label swap rule).
func (p PeerId) Bytes() []byte {
	b := uuid.UUID(p)
	return b[:]
}

// Short returns an 8-character display prefix, used by logging and the UI
// member list.
func (p PeerId) Short() string {
	s := p.String()
	if len(s) < 8 {
		return s
	}
	return s[:8]
}

func (p PeerId) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PeerId) UnmarshalText(data []byte) error {
	id, err := ParsePeerId(string(data))
	if err != nil {
		return err
	}
	*p = id
	return nil
}

// RoomId is a per-room random 128-bit identifier, minted by the room's
// creator and carried by every invitation.
type RoomId uuid.UUID

// NewRoomId generates a fresh random RoomId.
func NewRoomId() RoomId {
	return RoomId(uuid.New())
}

// ParseRoomId parses a canonical UUID string into a RoomId.
func ParseRoomId(s string) (RoomId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RoomId{}, fmt.Errorf("parse room id: %w", err)
	}
	return RoomId(u), nil
}

// RoomIdFromBytes reinterprets 16 raw bytes (e.g. taken off the wire) as a
// RoomId without the round trip through its text form.
func RoomIdFromBytes(b [16]byte) RoomId {
	return RoomId(uuid.UUID(b))
}

func (r RoomId) String() string {
	return uuid.UUID(r).String()
}

// Bytes returns the 16 raw identifier bytes, used as KDF/AAD binding
// material by the crypto package.
func (r RoomId) Bytes() []byte {
	b := uuid.UUID(r)
	return b[:]
}

func (r RoomId) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RoomId) UnmarshalText(data []byte) error {
	id, err := ParseRoomId(string(data))
	if err != nil {
		return err
	}
	*r = id
	return nil
}

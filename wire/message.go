// Package wire defines the Phase-1 frame-level tagged union and its
// deterministic length-prefixed binary encoding. Every value here is
// small and fixed-shape by design: the UDP path enforces a 1400-byte
// datagram ceiling, so the codec favors compact fixed/length-prefixed
// fields over a general-purpose serialization format.
package wire

import (
	"fmt"

	"github.com/j-hartshorn/resonance-sub000/identity"
)

// Type tags a frame with its concrete kind so Decode can dispatch without
// external type information, mirroring the teacher's ControlHeader-style
// discriminated frames in core/message.
type Type byte

const (
	TypeHelloInitiate Type = iota + 1
	TypeHelloAck
	TypeDHPubKey
	TypeAuthTag
	TypeJoinRequest
	TypeJoinResponse
	TypeEncryptedFrame
	TypeApplicationMessage
	TypePing
	TypePong
)

// ProtocolVersion is the Phase-1 wire version exchanged in every
// HelloInitiate/HelloAck. A mismatch causes the message to be dropped
// silently by the receiver (spec.md §4.3).
const ProtocolVersion uint16 = 1

// MaxDatagramSize is the largest encoded frame the Phase-1 socket will
// ever send or accept.
const MaxDatagramSize = 1400

// Frame is any Phase-1 wire message: it knows its own Type and how to
// encode its body (everything after the leading type byte).
type Frame interface {
	Type() Type
	encodeBody() []byte
}

// HelloInitiate opens a handshake: sent by the connecting peer.
type HelloInitiate struct {
	Version uint16
	RoomId  identity.RoomId
	PeerId  identity.PeerId
}

func (m HelloInitiate) Type() Type { return TypeHelloInitiate }

// HelloAck answers a HelloInitiate with the responder's own identity.
type HelloAck struct {
	Version uint16
	RoomId  identity.RoomId
	PeerId  identity.PeerId
}

func (m HelloAck) Type() Type { return TypeHelloAck }

// DHPubKey carries one side's ephemeral X25519 public key.
type DHPubKey struct {
	PubKey [32]byte
}

func (m DHPubKey) Type() Type { return TypeDHPubKey }

// AuthTagFrame carries the HMAC computed over both ephemeral public keys.
type AuthTagFrame struct {
	Tag [32]byte
}

func (m AuthTagFrame) Type() Type { return TypeAuthTag }

// JoinRequest is always carried inside an EncryptedFrame once
// Authenticated.
type JoinRequest struct {
	PeerId identity.PeerId
	Name   string
}

func (m JoinRequest) Type() Type { return TypeJoinRequest }

// JoinResponse is always carried inside an EncryptedFrame.
type JoinResponse struct {
	Approved bool
	Reason   string
}

func (m JoinResponse) Type() Type { return TypeJoinResponse }

// EncryptedFrame wraps an AEAD payload (nonce ‖ ciphertext ‖ tag) produced
// by the crypto package. Its plaintext, once decrypted, is itself a
// length-prefixed encoding of one of JoinRequest, JoinResponse, or
// ApplicationMessage.
type EncryptedFrame struct {
	Payload []byte
}

func (m EncryptedFrame) Type() Type { return TypeEncryptedFrame }

// ApplicationKind discriminates the payload carried by an
// ApplicationMessage.
type ApplicationKind byte

const (
	AppSdpOffer ApplicationKind = iota + 1
	AppSdpAnswer
	AppIceCandidate
	AppPeerListRequest
	AppPeerListResponse
)

// PeerInfo is one entry in a PeerListResponse roster snapshot.
type PeerInfo struct {
	PeerId identity.PeerId
	Name   string
}

// ApplicationMessage carries Phase-2 signaling traffic (SDP/ICE) and the
// peer-roster exchange over the already-authenticated Phase-1 channel. It
// is always carried inside an EncryptedFrame once Authenticated.
type ApplicationMessage struct {
	Kind ApplicationKind

	SDP           string     // AppSdpOffer, AppSdpAnswer
	ICECandidate  string     // AppIceCandidate
	Peers         []PeerInfo // AppPeerListResponse
}

func (m ApplicationMessage) Type() Type { return TypeApplicationMessage }

// Ping is sent by the liveness ticker to every Joined peer.
type Ping struct {
	PeerId identity.PeerId
}

func (m Ping) Type() Type { return TypePing }

// Pong answers a Ping.
type Pong struct {
	PeerId identity.PeerId
}

func (m Pong) Type() Type { return TypePong }

var errUnknownFrameType = fmt.Errorf("wire: unknown frame type")

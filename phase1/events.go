package phase1

import (
	"context"
	"net"

	"github.com/j-hartshorn/resonance-sub000/identity"
)

// Events are the upward hooks this package fires as the handshake state
// machine advances. Phase1 never creates or manages room membership
// itself — it only reports; the room layer decides what to do (modeled
// on the teacher's core/handshake Events: the handshake package emits,
// the agent layer owns policy).
type Events interface {
	// OnJoinRequested fires when an authenticated peer's encrypted
	// JoinRequest has been decrypted. The operator (or an auto-approval
	// policy upstream) must call Approve or Deny in response — phase1
	// never auto-approves.
	OnJoinRequested(ctx context.Context, peerId identity.PeerId, name string, addr *net.UDPAddr)
	// OnPeerJoined fires once a peer's JoinResponse{approved:true} has
	// been sent (responder) or received (initiator).
	OnPeerJoined(ctx context.Context, peerId identity.PeerId)
	// OnJoinDenied fires on the initiator side when the responder sends
	// JoinResponse{approved:false}.
	OnJoinDenied(ctx context.Context, peerId identity.PeerId, reason string)
	// OnPeerDisconnected fires when a connection is purged, whether by
	// explicit disconnect, ping timeout, or authentication failure.
	OnPeerDisconnected(ctx context.Context, peerId identity.PeerId, reason string)
	// OnAuthenticationFailed fires on any decrypt/HMAC verification
	// failure, before the failure counter may trigger a purge.
	OnAuthenticationFailed(ctx context.Context, peerId identity.PeerId)
	// OnApplicationMessage fires for a decrypted ApplicationMessage from
	// a Joined peer (SDP/ICE/peer-list traffic bound for Phase-2 or the
	// room layer).
	OnApplicationMessage(ctx context.Context, peerId identity.PeerId, msg ApplicationPayload)
}

// ApplicationPayload is the decoded form of a wire.ApplicationMessage
// handed upward once Phase-1 has authenticated and decrypted it.
type ApplicationPayload struct {
	Kind         string
	SDP          string
	ICECandidate string
	Peers        []PeerInfo
}

// PeerInfo mirrors wire.PeerInfo for callers that don't want to import
// the wire package directly.
type PeerInfo struct {
	PeerId identity.PeerId
	Name   string
}

// NoopEvents discards every callback; useful in tests that only exercise
// the state machine's frame exchange.
type NoopEvents struct{}

func (NoopEvents) OnJoinRequested(context.Context, identity.PeerId, string, *net.UDPAddr) {}
func (NoopEvents) OnPeerJoined(context.Context, identity.PeerId)                          {}
func (NoopEvents) OnJoinDenied(context.Context, identity.PeerId, string)                  {}
func (NoopEvents) OnPeerDisconnected(context.Context, identity.PeerId, string)            {}
func (NoopEvents) OnAuthenticationFailed(context.Context, identity.PeerId)                {}
func (NoopEvents) OnApplicationMessage(context.Context, identity.PeerId, ApplicationPayload) {
}

package phase1

import (
	"net"
	"sync"
	"time"

	"github.com/j-hartshorn/resonance-sub000/crypto"
	"github.com/j-hartshorn/resonance-sub000/identity"
)

// HandshakeState is a per-peer position in the Phase-1 handshake state
// machine: None -> HelloExchanged -> KeyExchanged -> Authenticated ->
// JoinRequested -> Joined, with Disconnected/TimedOut as terminal purge
// states.
type HandshakeState int

const (
	StateNone HandshakeState = iota
	StateHelloExchanged
	StateKeyExchanged
	StateAuthenticated
	StateJoinRequested
	StateJoined
	StateDisconnected
	StateTimedOut
)

func (s HandshakeState) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateHelloExchanged:
		return "HelloExchanged"
	case StateKeyExchanged:
		return "KeyExchanged"
	case StateAuthenticated:
		return "Authenticated"
	case StateJoinRequested:
		return "JoinRequested"
	case StateJoined:
		return "Joined"
	case StateDisconnected:
		return "Disconnected"
	case StateTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Role distinguishes which side of the handshake a PeerConnection is
// playing, since the transition table differs between them.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// maxAuthFailures is how many consecutive decrypt/HMAC failures a
// connection tolerates before phase1 purges it (spec.md §4.3: "repeated
// failures purge the connection").
const maxAuthFailures = 3

// PeerConnection is the mutable per-peer record phase1 owns: handshake
// state, the ephemeral DH keypair and shared-secret-derived session
// keys, and liveness bookkeeping. The Node's two maps (peers,
// addrToPeer) are guarded by the Node's own mutex, but a
// PeerConnection's own mutable fields are touched from more than one
// goroutine (recvLoop updates State/lastActivity; livenessLoop reads
// lastActivity; Approve/Deny/SendApplication read State from the room
// layer's goroutine), so they carry their own per-field mutex below.
type PeerConnection struct {
	PeerId identity.PeerId
	Addr   *net.UDPAddr
	Name   string
	Role   Role

	// mu guards State and lastActivity: the fields touched concurrently
	// by the recvLoop goroutine, the livenessLoop ticker goroutine, and
	// the Node's public API (Approve/Deny/SendApplication, called from
	// the room layer).
	mu           sync.Mutex
	State        HandshakeState
	lastActivity time.Time

	localKeyPair *crypto.KeyPair // nil once consumed by ComputeSharedSecret
	localPub     []byte
	peerPub      []byte
	Keys         *crypto.SessionKeys

	authFailures int

	// stageStart marks the beginning of the handshake stage currently in
	// progress, for HandshakeDuration. Written only on the recvLoop
	// goroutine; Approve/Deny read it from the caller's goroutine once the
	// peer is JoinRequested, after which recvLoop no longer writes it. It
	// has no lock of its own.
	stageStart time.Time
}

func (pc *PeerConnection) getState() HandshakeState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.State
}

func (pc *PeerConnection) setState(s HandshakeState) {
	pc.mu.Lock()
	pc.State = s
	pc.mu.Unlock()
}

// touchActivity records that a frame was just received from this peer.
func (pc *PeerConnection) touchActivity() {
	pc.mu.Lock()
	pc.lastActivity = time.Now()
	pc.mu.Unlock()
}

// getLastActivity returns the timestamp of the most recently received
// frame, for the liveness ticker's timeout check.
func (pc *PeerConnection) getLastActivity() time.Time {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.lastActivity
}

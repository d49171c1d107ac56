// Package phase1 implements the UDP bootstrap channel: one socket, a
// per-peer DH handshake state machine, AEAD-protected application
// traffic, and liveness tracking. It is modeled on the teacher's
// core/handshake.Server: a single owner holds per-peer pending state
// behind one mutex and reports progress through an Events interface
// rather than letting callers reach into that state directly.
package phase1

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/j-hartshorn/resonance-sub000/crypto"
	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/internal/metrics"
	"github.com/j-hartshorn/resonance-sub000/stun"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

const (
	livenessInterval = 30 * time.Second
	livenessTimeout  = 60 * time.Second

	rateLimitBurst = 100
	rateLimitRPS   = 50
)

// Node owns one UDP socket and every PeerConnection bootstrapped over
// it. It is safe for concurrent use; all map access goes through mu.
type Node struct {
	conn   *net.UDPConn
	selfId identity.PeerId
	roomId identity.RoomId
	name   string
	events Events

	limiter *rate.Limiter

	mu            sync.RWMutex
	peers         map[identity.PeerId]*PeerConnection
	addrToPeer    map[string]identity.PeerId
	pendingByAddr map[string]*PeerConnection // outbound connects awaiting HelloAck

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewNode binds a UDP socket at localAddr and returns a Node ready for
// Start. If events is nil, NoopEvents is used.
func NewNode(localAddr *net.UDPAddr, selfId identity.PeerId, roomId identity.RoomId, name string, events Events) (*Node, error) {
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, identity.WrapError(identity.KindNetwork, "bind phase1 socket", err)
	}
	if events == nil {
		events = NoopEvents{}
	}
	return &Node{
		conn:          conn,
		selfId:        selfId,
		roomId:        roomId,
		name:          name,
		events:        events,
		limiter:       rate.NewLimiter(rate.Limit(rateLimitRPS), rateLimitBurst),
		peers:         make(map[identity.PeerId]*PeerConnection),
		addrToPeer:    make(map[string]identity.PeerId),
		pendingByAddr: make(map[string]*PeerConnection),
		stopCh:        make(chan struct{}),
	}, nil
}

// LocalAddr returns the bound socket address (for STUN discovery and
// for display in an invitation link).
func (n *Node) LocalAddr() *net.UDPAddr {
	return n.conn.LocalAddr().(*net.UDPAddr)
}

// DiscoverPublicAddr runs a STUN binding request over a separate
// ephemeral UDP socket (spec.md §6: "Outbound STUN uses a separate
// ephemeral UDP socket"), so it never steals read deadlines from or
// races recvLoop on the live Phase-1 socket. Most NATs map every
// outbound UDP socket from this host to the same external port, so the
// discovered reflexive address is still the one a remote peer should
// dial for Phase-1 traffic.
func (n *Node) DiscoverPublicAddr(servers []string) (*net.UDPAddr, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, identity.WrapError(identity.KindNetwork, "open stun socket", err)
	}
	defer conn.Close()
	return stun.Discover(conn, servers)
}

// Start launches the receive loop and the liveness ticker. Both stop
// when ctx is cancelled or Close is called.
func (n *Node) Start(ctx context.Context) {
	n.wg.Add(2)
	go n.recvLoop(ctx)
	go n.livenessLoop(ctx)
}

// Close stops both background loops and closes the socket.
func (n *Node) Close() error {
	select {
	case <-n.stopCh:
	default:
		close(n.stopCh)
	}
	err := n.conn.Close()
	n.wg.Wait()
	return err
}

// Connect initiates a handshake with remote as the initiator role.
func (n *Node) Connect(remote *net.UDPAddr) error {
	pc := &PeerConnection{
		Addr:         remote,
		Role:         RoleInitiator,
		State:        StateNone,
		lastActivity: time.Now(),
	}

	n.mu.Lock()
	n.pendingByAddr[remote.String()] = pc
	n.mu.Unlock()

	hello := wire.HelloInitiate{Version: wire.ProtocolVersion, RoomId: n.roomId, PeerId: n.selfId}
	if err := n.send(remote, hello); err != nil {
		return fmt.Errorf("connect: send hello initiate: %w", err)
	}
	metrics.HandshakesInitiated.WithLabelValues("initiator").Inc()
	pc.setState(StateHelloExchanged)
	return nil
}

// Approve sends JoinResponse{approved:true} to peerId and moves it to
// Joined. Returns an error if the peer isn't currently JoinRequested.
func (n *Node) Approve(peerId identity.PeerId) error {
	n.mu.Lock()
	pc, ok := n.peers[peerId]
	n.mu.Unlock()
	if !ok || pc.getState() != StateJoinRequested {
		return fmt.Errorf("approve: peer %s not awaiting approval", peerId.Short())
	}

	resp := wire.JoinResponse{Approved: true}
	if err := n.sendEncrypted(pc, resp, crypto.DirectionResponderToInitiator); err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	pc.setState(StateJoined)
	metrics.HandshakesCompleted.WithLabelValues("joined").Inc()
	metrics.HandshakeDuration.WithLabelValues("join_wait").Observe(time.Since(pc.stageStart).Seconds())
	n.events.OnPeerJoined(context.Background(), peerId)
	return nil
}

// Deny sends JoinResponse{approved:false,reason} and purges the
// connection, forcing a fresh DH exchange on any future rejoin attempt.
func (n *Node) Deny(peerId identity.PeerId, reason string) error {
	n.mu.Lock()
	pc, ok := n.peers[peerId]
	n.mu.Unlock()
	if !ok || pc.getState() != StateJoinRequested {
		return fmt.Errorf("deny: peer %s not awaiting approval", peerId.Short())
	}

	resp := wire.JoinResponse{Approved: false, Reason: reason}
	_ = n.sendEncrypted(pc, resp, crypto.DirectionResponderToInitiator)
	metrics.HandshakesCompleted.WithLabelValues("denied").Inc()
	metrics.HandshakeDuration.WithLabelValues("join_wait").Observe(time.Since(pc.stageStart).Seconds())
	n.purge(peerId, "denied")
	return nil
}

// SendApplication encrypts and sends an ApplicationMessage to a Joined
// peer (Phase-2 SDP/ICE or a peer-list exchange).
func (n *Node) SendApplication(peerId identity.PeerId, msg wire.ApplicationMessage) error {
	n.mu.RLock()
	pc, ok := n.peers[peerId]
	n.mu.RUnlock()
	if !ok || pc.getState() != StateJoined {
		return fmt.Errorf("send application: peer %s not joined", peerId.Short())
	}
	direction := crypto.DirectionResponderToInitiator
	if pc.Role == RoleInitiator {
		direction = crypto.DirectionInitiatorToResponder
	}
	return n.sendEncrypted(pc, msg, direction)
}

// Peers returns a snapshot of every currently Joined peer, for the
// roster/peer-list exchange.
func (n *Node) Peers() []PeerInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]PeerInfo, 0, len(n.peers))
	for _, pc := range n.peers {
		if pc.getState() == StateJoined {
			out = append(out, PeerInfo{PeerId: pc.PeerId, Name: pc.Name})
		}
	}
	return out
}

// Disconnect explicitly purges peerId's connection (the room layer's
// LeaveRoom/DisconnectPeer path) — the terminal Disconnected state of
// spec.md §4.3's handshake machine.
func (n *Node) Disconnect(peerId identity.PeerId) {
	n.purge(peerId, "left")
}

func (n *Node) send(addr *net.UDPAddr, frame wire.Frame) error {
	encoded, err := wire.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := n.conn.WriteToUDP(encoded, addr); err != nil {
		return fmt.Errorf("write udp: %w", err)
	}
	return nil
}

func (n *Node) sendEncrypted(pc *PeerConnection, inner wire.Frame, direction byte) error {
	plaintext, err := wire.Encode(inner)
	if err != nil {
		return fmt.Errorf("encode inner frame: %w", err)
	}
	aad := crypto.BuildAAD(n.roomId, direction)
	ciphertext, err := crypto.Encrypt(pc.Keys.SendKey, plaintext, aad)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("encrypt").Inc()
		return fmt.Errorf("encrypt frame: %w", err)
	}
	metrics.CryptoOperations.WithLabelValues("encrypt").Inc()
	return n.send(pc.Addr, wire.EncryptedFrame{Payload: ciphertext})
}

func (n *Node) purge(peerId identity.PeerId, reason string) {
	n.mu.Lock()
	pc, ok := n.peers[peerId]
	if ok {
		delete(n.peers, peerId)
		delete(n.addrToPeer, pc.Addr.String())
	}
	n.mu.Unlock()
	if ok {
		n.events.OnPeerDisconnected(context.Background(), peerId, reason)
	}
}

package room

import (
	"context"
	"fmt"
	"net"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/internal/metrics"
	"github.com/j-hartshorn/resonance-sub000/phase1"
	"github.com/j-hartshorn/resonance-sub000/phase2"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

// commandQueueCapacity bounds the Handler's inbound UI command channel
// (spec.md §5's capacity-100 bounded queues).
const commandQueueCapacity = 100

// ErrQueueFull is returned by Submit when the command channel is full.
var ErrQueueFull = fmt.Errorf("room: command queue full")

// Config configures a Handler before any room has been created or
// joined.
type Config struct {
	LocalAddr  *net.UDPAddr
	Username   string
	ICEServers []string
}

// Handler is the single goroutine that serializes RoomCommands from the
// UI with NetworkEvents from Phase-1/Phase-2 into one stream, updating
// State and driving phase1.Node/phase2.Manager in response. Modeled on
// the teacher's core/session.Manager background-goroutine triad
// (ticker/stop-channel/run-loop), generalized here to a command+event
// select loop instead of a cleanup ticker.
// Handler's state/node/webrtc/adapter fields are touched only from the
// Run goroutine itself — the single-owner mailbox pattern of spec.md §9:
// other goroutines reach the handler exclusively through Submit/Events.
type Handler struct {
	cfg    Config
	selfId identity.PeerId

	state   *State
	node    *phase1.Node
	webrtc  *phase2.Manager
	adapter *netAdapter

	commands chan RoomCommand
	out      chan RoomEvent
	stopCh   chan struct{}
}

// NewHandler creates a Handler with a freshly generated PeerId. No room
// exists until a CreateRoom or JoinRoom command is processed.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		cfg:      cfg,
		selfId:   identity.NewPeerId(),
		commands: make(chan RoomCommand, commandQueueCapacity),
		out:      make(chan RoomEvent, commandQueueCapacity),
		stopCh:   make(chan struct{}),
	}
}

// SelfID returns this node's PeerId.
func (h *Handler) SelfID() identity.PeerId { return h.selfId }

// RoomID returns the current room's id. Zero-valued until a
// CreateRoom/JoinRoom command has been processed.
func (h *Handler) RoomID() identity.RoomId {
	if h.state == nil {
		return identity.RoomId{}
	}
	return h.state.ID()
}

// LocalAddr returns the bound Phase-1 socket address, for building this
// node's invitation link. Nil until a CreateRoom/JoinRoom command has
// been processed.
func (h *Handler) LocalAddr() *net.UDPAddr {
	if h.node == nil {
		return nil
	}
	return h.node.LocalAddr()
}

// DiscoverPublicAddr runs STUN binding discovery over a separate ephemeral
// UDP socket (see phase1.Node.DiscoverPublicAddr), for building an
// invitation link reachable from outside a NAT. Falls
// back to the bound local address if no STUN server answers. Nil until
// a CreateRoom/JoinRoom command has been processed.
func (h *Handler) DiscoverPublicAddr(stunServers []string) *net.UDPAddr {
	if h.node == nil {
		return nil
	}
	if addr, err := h.node.DiscoverPublicAddr(stunServers); err == nil {
		return addr
	}
	return h.node.LocalAddr()
}

// Events returns the channel RoomEvents are published on.
func (h *Handler) Events() <-chan RoomEvent { return h.out }

// Submit enqueues a command for the run loop. Non-blocking: a full queue
// returns ErrQueueFull rather than blocking the caller.
func (h *Handler) Submit(cmd RoomCommand) error {
	select {
	case h.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drives the handler loop until ctx is cancelled or a Shutdown
// command is processed. It blocks the calling goroutine — callers
// typically invoke it with `go`.
func (h *Handler) Run(ctx context.Context) {
	for {
		var netCh chan networkEvent
		if h.adapter != nil {
			netCh = h.adapter.ch
		}

		select {
		case <-ctx.Done():
			h.teardown()
			return
		case <-h.stopCh:
			h.teardown()
			return
		case cmd := <-h.commands:
			if h.handleCommand(ctx, cmd) {
				h.teardown()
				return
			}
		case ev := <-netCh:
			h.handleNetworkEvent(ev)
		}
	}
}

// Close stops the run loop and releases network resources.
func (h *Handler) Close() error {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
	}
	return nil
}

func (h *Handler) teardown() {
	if h.node != nil {
		_ = h.node.Close()
	}
}

func (h *Handler) emit(ev RoomEvent) {
	select {
	case h.out <- ev:
	default:
		// UI not draining fast enough: drop rather than block the loop.
	}
}

// handleCommand processes one RoomCommand. It returns true when the
// handler should stop (Shutdown).
func (h *Handler) handleCommand(ctx context.Context, cmd RoomCommand) bool {
	switch cmd.Kind {
	case CmdCreateRoom:
		h.doCreateRoom(ctx)
	case CmdJoinRoom:
		h.doJoinRoom(ctx, cmd)
	case CmdApproveJoinRequest:
		h.doApprove(cmd.PeerId)
	case CmdDenyJoinRequest:
		h.doDeny(cmd.PeerId, cmd.Reason)
	case CmdRenamePeer:
		h.doRename(cmd.PeerId, cmd.Name)
	case CmdLeaveRoom:
		h.doLeaveRoom()
	case CmdShutdown:
		return true
	}
	return false
}

func (h *Handler) doCreateRoom(ctx context.Context) {
	roomId := identity.NewRoomId()
	h.bootstrap(ctx, roomId)
	if ev, err := h.state.AddPeer(h.selfId, h.cfg.Username); err == nil {
		metrics.RoomMembers.Inc()
		h.emit(ev)
	}
}

func (h *Handler) doJoinRoom(ctx context.Context, cmd RoomCommand) {
	h.bootstrap(ctx, cmd.RoomId)
	if ev, err := h.state.AddPeer(h.selfId, h.cfg.Username); err == nil {
		metrics.RoomMembers.Inc()
		h.emit(ev)
	}
	remote, err := net.ResolveUDPAddr("udp", cmd.Address)
	if err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, Reason: err.Error()})
		return
	}
	if err := h.node.Connect(remote); err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, Reason: err.Error()})
	}
}

// bootstrap wires up the phase1/phase2 components and State for roomId.
// Idempotent no-op if already bootstrapped (a CreateRoom/JoinRoom command
// is only ever issued once per Handler in normal operation).
func (h *Handler) bootstrap(ctx context.Context, roomId identity.RoomId) {
	if h.node != nil {
		return
	}
	adapter := newNetAdapter()
	node, err := phase1.NewNode(h.cfg.LocalAddr, h.selfId, roomId, h.cfg.Username, adapter)
	if err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindInitialization, Reason: err.Error()})
		return
	}
	h.node = node
	h.webrtc = phase2.NewManager(h.cfg.ICEServers, node, adapter)
	h.adapter = adapter
	h.state = NewState(roomId, h.selfId, h.cfg.Username)
	node.Start(ctx)
}

func (h *Handler) doApprove(peerId identity.PeerId) {
	if h.state == nil {
		return
	}
	ev, err := h.state.ApproveJoinRequest(peerId)
	if err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNotFound, PeerId: peerId, Reason: err.Error()})
		return
	}
	metrics.JoinRequestsReceived.WithLabelValues("approved").Inc()
	metrics.RoomMembers.Inc()
	h.emit(ev)
	if err := h.node.Approve(peerId); err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, PeerId: peerId, Reason: err.Error()})
		return
	}
	if err := h.webrtc.CreateOffer(peerId); err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, PeerId: peerId, Reason: err.Error()})
	}
}

func (h *Handler) doDeny(peerId identity.PeerId, reason string) {
	if h.state == nil {
		return
	}
	ev := h.state.DenyJoinRequest(peerId, reason)
	metrics.JoinRequestsReceived.WithLabelValues("denied").Inc()
	h.emit(ev)
	if err := h.node.Deny(peerId, reason); err != nil {
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, PeerId: peerId, Reason: err.Error()})
	}
}

func (h *Handler) doRename(peerId identity.PeerId, name string) {
	if h.state == nil {
		return
	}
	if ev, err := h.state.RenamePeer(peerId, name); err == nil {
		h.emit(ev)
	}
}

func (h *Handler) doLeaveRoom() {
	if h.state == nil {
		return
	}
	for peerId := range h.state.Peers() {
		if peerId == h.selfId {
			continue
		}
		h.node.Disconnect(peerId)
		_ = h.webrtc.ClosePeerConnection(peerId)
		if ev, err := h.state.RemovePeer(peerId); err == nil {
			metrics.RoomMembers.Dec()
			h.emit(ev)
		}
	}
}

func (h *Handler) handleNetworkEvent(ev networkEvent) {
	if h.state == nil {
		return
	}
	switch ev.kind {
	case netPeerJoined:
		// Fires on both sides of a completed handshake (the approver via
		// Node.Approve, the joiner via its own JoinResponse{approved:true}).
		// Only doApprove initiates the Phase-2 offer (spec.md §4.5); this
		// case just records membership so the joiner doesn't also glare
		// an offer back at the approver.
		if roomEv, err := h.state.AddPeer(ev.peerId, ""); err == nil {
			metrics.RoomMembers.Inc()
			h.emit(roomEv)
		}

	case netJoinRequested:
		metrics.JoinRequestsReceived.WithLabelValues("pending").Inc()
		h.emit(h.state.HandleJoinRequest(ev.peerId, ev.name, ev.addr))

	case netJoinDenied:
		h.emit(RoomEvent{Kind: EventJoinRequestStatusChanged, PeerId: ev.peerId, Status: StatusDenied, Reason: ev.reason})

	case netPeerDisconnected:
		_ = h.webrtc.ClosePeerConnection(ev.peerId)
		if roomEv, err := h.state.RemovePeer(ev.peerId); err == nil {
			metrics.RoomMembers.Dec()
			metrics.PeersDisconnected.WithLabelValues(ev.reason).Inc()
			h.emit(roomEv)
		}

	case netAuthenticationFailed:
		h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindCrypto, PeerId: ev.peerId, Reason: ev.reason})

	case netWebRtcStateChanged:
		up := ev.webrtcState == "connected"
		_ = h.state.UpdateWebRTCStatus(ev.peerId, up)

	case netApplicationMessage:
		h.handleApplicationMessage(ev)
	}
}

func (h *Handler) handleApplicationMessage(ev networkEvent) {
	switch ev.appKind {
	case "sdp_offer":
		if err := h.webrtc.HandleOffer(ev.peerId, ev.sdp); err != nil {
			h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, PeerId: ev.peerId, Reason: err.Error()})
		}
	case "sdp_answer":
		if err := h.webrtc.HandleAnswer(ev.peerId, ev.sdp); err != nil {
			h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, PeerId: ev.peerId, Reason: err.Error()})
		}
	case "ice_candidate":
		if err := h.webrtc.HandleICECandidate(ev.peerId, ev.ice); err != nil {
			h.emit(RoomEvent{Kind: EventError, ErrKind: identity.KindNetwork, PeerId: ev.peerId, Reason: err.Error()})
		}
	case "peer_list_request":
		peers := make([]wire.PeerInfo, 0, len(h.state.Peers()))
		for id, m := range h.state.Peers() {
			peers = append(peers, wire.PeerInfo{PeerId: id, Name: m.Name})
		}
		resp := wire.ApplicationMessage{Kind: wire.AppPeerListResponse, Peers: peers}
		_ = h.node.SendApplication(ev.peerId, resp)
	case "peer_list_response":
		for _, p := range ev.peers {
			if roomEv, err := h.state.AddPeer(p.PeerId, p.Name); err == nil {
				h.emit(roomEv)
			}
		}
	}
}

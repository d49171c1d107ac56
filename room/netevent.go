package room

import (
	"context"
	"net"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/phase1"
	"github.com/j-hartshorn/resonance-sub000/phase2"
)

// netEventKind discriminates the internal NetworkEvent stream the
// Handler's loop selects on — the single point where Phase-1 and Phase-2
// callbacks (each running on their own goroutine) become one serialized
// sequence, per spec.md §4.5/§5.
type netEventKind int

const (
	netPeerJoined netEventKind = iota + 1
	netJoinRequested
	netJoinDenied
	netPeerDisconnected
	netAuthenticationFailed
	netWebRtcStateChanged
	netApplicationMessage
	netDataChannelMessage
)

// networkEvent is never exported: it is the Handler's private mailbox
// item, translated into RoomEvents (or dispatched into phase1/phase2) by
// the handler loop.
type networkEvent struct {
	kind netEventKind

	peerId identity.PeerId
	name   string
	addr   string
	reason string

	webrtcState string

	appKind string
	sdp     string
	ice     string
	peers   []phase1.PeerInfo

	dcLabel string
	dcData  []byte
}

// eventQueueCapacity bounds the Handler's network-event mailbox (spec.md
// §5's "typed bounded queues, capacity 100").
const eventQueueCapacity = 100

// netAdapter implements both phase1.Events and phase2.Events, forwarding
// every callback onto the Handler's single network-event channel. A full
// queue drops the event rather than blocking the network goroutine that
// produced it (spec.md §5: back-pressure surfaces as a dropped/queue-full
// condition, never a blocked receive/send loop).
type netAdapter struct {
	ch chan networkEvent
}

func newNetAdapter() *netAdapter {
	return &netAdapter{ch: make(chan networkEvent, eventQueueCapacity)}
}

func (a *netAdapter) post(ev networkEvent) {
	select {
	case a.ch <- ev:
	default:
		// Queue full: drop. Matches spec.md §5's NetworkError::QueueFull
		// back-pressure contract — the producing goroutine never blocks.
	}
}

// phase1.Events

func (a *netAdapter) OnJoinRequested(ctx context.Context, peerId identity.PeerId, name string, addr *net.UDPAddr) {
	a.post(networkEvent{kind: netJoinRequested, peerId: peerId, name: name, addr: addr.String()})
}

func (a *netAdapter) OnPeerJoined(ctx context.Context, peerId identity.PeerId) {
	a.post(networkEvent{kind: netPeerJoined, peerId: peerId})
}

func (a *netAdapter) OnJoinDenied(ctx context.Context, peerId identity.PeerId, reason string) {
	a.post(networkEvent{kind: netJoinDenied, peerId: peerId, reason: reason})
}

func (a *netAdapter) OnPeerDisconnected(ctx context.Context, peerId identity.PeerId, reason string) {
	a.post(networkEvent{kind: netPeerDisconnected, peerId: peerId, reason: reason})
}

func (a *netAdapter) OnAuthenticationFailed(ctx context.Context, peerId identity.PeerId) {
	a.post(networkEvent{kind: netAuthenticationFailed, peerId: peerId, reason: "HMAC verification failed"})
}

func (a *netAdapter) OnApplicationMessage(ctx context.Context, peerId identity.PeerId, msg phase1.ApplicationPayload) {
	a.post(networkEvent{
		kind:    netApplicationMessage,
		peerId:  peerId,
		appKind: msg.Kind,
		sdp:     msg.SDP,
		ice:     msg.ICECandidate,
		peers:   msg.Peers,
	})
}

// phase2.Events

func (a *netAdapter) OnConnectionStateChanged(peerId identity.PeerId, state string) {
	a.post(networkEvent{kind: netWebRtcStateChanged, peerId: peerId, webrtcState: state})
}

func (a *netAdapter) OnDataChannelOpen(peerId identity.PeerId, label string) {
	a.post(networkEvent{kind: netDataChannelMessage, peerId: peerId, dcLabel: label})
}

func (a *netAdapter) OnDataChannelMessage(peerId identity.PeerId, label string, data []byte) {
	a.post(networkEvent{kind: netDataChannelMessage, peerId: peerId, dcLabel: label, dcData: data})
}

func (a *netAdapter) OnAudioReceived(peerId identity.PeerId, payload []byte) {
	// Audio frames are not part of the room event stream and are not
	// reconciled into RoomState: the adapter discards them.
}

var (
	_ phase1.Events = (*netAdapter)(nil)
	_ phase2.Events = (*netAdapter)(nil)
)

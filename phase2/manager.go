// Package phase2 implements the WebRTC signaling interface: one logical
// peer connection per remote PeerId, established from SDP/ICE traffic
// relayed through Phase-1's encrypted channel. It is modeled on the
// pack's pion/webrtc peer-manager repos (n0remac-robot-webrtc,
// applegrew-ag-webrtc-sfu, saljam-webwormhole): one PeerConnection object
// per remote id behind a map and a mutex, wired up with the usual
// OnICECandidate/OnConnectionStateChange/OnDataChannel/OnTrack callbacks.
package phase2

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/internal/metrics"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

// Sender is the subset of phase1.Node's API this package needs: encrypted
// delivery of ApplicationMessage traffic to a Joined peer. Phase-2 never
// touches a socket directly — everything it emits is relayed through
// Phase-1 as spec.md §4.4 requires.
type Sender interface {
	SendApplication(peerId identity.PeerId, msg wire.ApplicationMessage) error
}

const (
	dataChannelPollInterval = 100 * time.Millisecond
	dataChannelPollTimeout  = 2 * time.Second
)

// Manager owns one *webrtc.PeerConnection per remote PeerId.
type Manager struct {
	config webrtc.Configuration
	sender Sender
	events Events

	mu    sync.Mutex
	peers map[identity.PeerId]*peerConn
}

// peerConn is the per-remote-peer record: the PeerConnection itself plus
// the named data channels created on it, resolving the source's racy
// re-create_data_channel lookup (spec.md §9) with an explicit map.
type peerConn struct {
	pc *webrtc.PeerConnection

	mu         sync.Mutex
	channels   map[string]*webrtc.DataChannel
	gaugeState string
}

// NewManager builds a Manager configured with the given STUN/TURN server
// URLs (e.g. "stun:stun.l.google.com:19302"). Messages it needs to relay
// to a peer are handed to sender; events observed from the PeerConnection
// are handed to events.
func NewManager(iceServers []string, sender Sender, events Events) *Manager {
	if events == nil {
		events = NoopEvents{}
	}
	servers := make([]webrtc.ICEServer, 0, len(iceServers))
	for _, u := range iceServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return &Manager{
		config: webrtc.Configuration{ICEServers: servers},
		sender: sender,
		events: events,
		peers:  make(map[identity.PeerId]*peerConn),
	}
}

// CreateOffer produces an SDP offer for peerId, sets it as the local
// description, and relays it via Sender as ApplicationMessage::SdpOffer.
func (m *Manager) CreateOffer(peerId identity.PeerId) error {
	pc, err := m.ensurePeer(peerId)
	if err != nil {
		return err
	}
	offer, err := pc.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("phase2: create offer: %w", err)
	}
	if err := pc.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("phase2: set local description: %w", err)
	}
	return m.sender.SendApplication(peerId, wire.ApplicationMessage{
		Kind: wire.AppSdpOffer,
		SDP:  offer.SDP,
	})
}

// HandleOffer sets sdp as the remote description, produces an answer, and
// relays it back via Sender as ApplicationMessage::SdpAnswer.
func (m *Manager) HandleOffer(peerId identity.PeerId, sdp string) error {
	pc, err := m.ensurePeer(peerId)
	if err != nil {
		return err
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := pc.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("phase2: set remote description: %w", err)
	}
	answer, err := pc.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("phase2: create answer: %w", err)
	}
	if err := pc.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("phase2: set local description: %w", err)
	}
	return m.sender.SendApplication(peerId, wire.ApplicationMessage{
		Kind: wire.AppSdpAnswer,
		SDP:  answer.SDP,
	})
}

// HandleAnswer sets sdp as the remote description on an existing
// PeerConnection (the initiator side, after CreateOffer).
func (m *Manager) HandleAnswer(peerId identity.PeerId, sdp string) error {
	m.mu.Lock()
	pc, ok := m.peers[peerId]
	m.mu.Unlock()
	if !ok {
		return ErrPeerNotFound
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := pc.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("phase2: set remote description: %w", err)
	}
	return nil
}

// HandleICECandidate adds a trickled remote candidate, decoded from the
// minimal JSON the source emits ({"candidate": "..."}), optionally
// carrying sdpMid/sdpMLineIndex when the sender included them.
func (m *Manager) HandleICECandidate(peerId identity.PeerId, candidateJSON string) error {
	m.mu.Lock()
	pc, ok := m.peers[peerId]
	m.mu.Unlock()
	if !ok {
		return ErrPeerNotFound
	}
	init, err := decodeICECandidate(candidateJSON)
	if err != nil {
		return fmt.Errorf("phase2: decode ice candidate: %w", err)
	}
	if err := pc.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("phase2: add ice candidate: %w", err)
	}
	return nil
}

// CreateDataChannel creates a reliable, ordered data channel named label
// on peerId's PeerConnection.
func (m *Manager) CreateDataChannel(peerId identity.PeerId, label string) error {
	pc, err := m.ensurePeer(peerId)
	if err != nil {
		return err
	}
	dc, err := pc.pc.CreateDataChannel(label, nil)
	if err != nil {
		return fmt.Errorf("phase2: create data channel %q: %w", label, err)
	}
	m.wireDataChannel(peerId, pc, dc)
	return nil
}

// SendDataChannelMessage enqueues data on the named channel. If the
// channel has not yet reached Open, it polls every 100ms for up to 2s
// before failing with ErrChannelTimeout (spec.md §4.4).
func (m *Manager) SendDataChannelMessage(peerId identity.PeerId, label string, data []byte) error {
	m.mu.Lock()
	pc, ok := m.peers[peerId]
	m.mu.Unlock()
	if !ok {
		return ErrPeerNotFound
	}

	pc.mu.Lock()
	dc, ok := pc.channels[label]
	pc.mu.Unlock()
	if !ok {
		return ErrChannelNotFound
	}

	deadline := time.Now().Add(dataChannelPollTimeout)
	for dc.ReadyState() != webrtc.DataChannelStateOpen {
		if time.Now().After(deadline) {
			return ErrChannelTimeout
		}
		time.Sleep(dataChannelPollInterval)
	}
	if err := dc.Send(data); err != nil {
		return err
	}
	metrics.DataChannelMessages.WithLabelValues("sent").Inc()
	return nil
}

// ClosePeerConnection tears down and removes peerId's PeerConnection.
func (m *Manager) ClosePeerConnection(peerId identity.PeerId) error {
	m.mu.Lock()
	pc, ok := m.peers[peerId]
	if ok {
		delete(m.peers, peerId)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	pc.mu.Lock()
	if pc.gaugeState != "" {
		metrics.PeerConnections.WithLabelValues(pc.gaugeState).Dec()
		pc.gaugeState = ""
	}
	pc.mu.Unlock()
	return pc.pc.Close()
}

func (m *Manager) ensurePeer(peerId identity.PeerId) (*peerConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pc, ok := m.peers[peerId]; ok {
		return pc, nil
	}

	raw, err := webrtc.NewPeerConnection(m.config)
	if err != nil {
		return nil, fmt.Errorf("phase2: new peer connection: %w", err)
	}
	pc := &peerConn{pc: raw, channels: make(map[string]*webrtc.DataChannel)}
	m.peers[peerId] = pc

	raw.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end-of-candidates
		}
		payload, err := encodeICECandidate(c.ToJSON())
		if err != nil {
			return
		}
		_ = m.sender.SendApplication(peerId, wire.ApplicationMessage{
			Kind:         wire.AppIceCandidate,
			ICECandidate: payload,
		})
	})

	raw.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.events.OnConnectionStateChanged(peerId, state.String())

		pc.mu.Lock()
		if pc.gaugeState != "" {
			metrics.PeerConnections.WithLabelValues(pc.gaugeState).Dec()
		}
		pc.gaugeState = state.String()
		pc.mu.Unlock()
		metrics.PeerConnections.WithLabelValues(state.String()).Inc()

		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			m.mu.Lock()
			if current, ok := m.peers[peerId]; ok && current == pc {
				delete(m.peers, peerId)
			}
			m.mu.Unlock()
		}
	})

	raw.OnDataChannel(func(dc *webrtc.DataChannel) {
		m.wireDataChannel(peerId, pc, dc)
	})

	raw.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		go drainAudioTrack(peerId, track, m.events)
	})

	return pc, nil
}

func (m *Manager) wireDataChannel(peerId identity.PeerId, pc *peerConn, dc *webrtc.DataChannel) {
	label := dc.Label()
	pc.mu.Lock()
	pc.channels[label] = dc
	pc.mu.Unlock()

	dc.OnOpen(func() {
		m.events.OnDataChannelOpen(peerId, label)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		metrics.DataChannelMessages.WithLabelValues("received").Inc()
		m.events.OnDataChannelMessage(peerId, label, msg.Data)
	})
	dc.OnClose(func() {
		pc.mu.Lock()
		if pc.channels[label] == dc {
			delete(pc.channels, label)
		}
		pc.mu.Unlock()
	})
}

package phase2

import "github.com/j-hartshorn/resonance-sub000/identity"

// Events are the upward hooks the Phase-2 transport fires as a peer's
// media/data connection progresses. Mirrors phase1.Events: this package
// only reports state, the room handler reconciles it.
type Events interface {
	// OnConnectionStateChanged fires whenever the underlying
	// PeerConnection's aggregate state changes (e.g. "connected",
	// "failed", "disconnected", "closed").
	OnConnectionStateChanged(peerId identity.PeerId, state string)
	// OnDataChannelOpen fires once a named data channel (local or
	// remote-initiated) reaches the Open state.
	OnDataChannelOpen(peerId identity.PeerId, label string)
	// OnDataChannelMessage fires for every inbound message on a named
	// data channel.
	OnDataChannelMessage(peerId identity.PeerId, label string, data []byte)
	// OnAudioReceived fires once per drained inbound RTP packet: payload
	// is the depacketized Opus frame, nominally 960 samples at 48kHz.
	// Codec decode is out of scope for this package (spec's Non-goal).
	OnAudioReceived(peerId identity.PeerId, payload []byte)
}

// NoopEvents discards every callback.
type NoopEvents struct{}

func (NoopEvents) OnConnectionStateChanged(identity.PeerId, string)       {}
func (NoopEvents) OnDataChannelOpen(identity.PeerId, string)              {}
func (NoopEvents) OnDataChannelMessage(identity.PeerId, string, []byte)  {}
func (NoopEvents) OnAudioReceived(identity.PeerId, []byte)                {}

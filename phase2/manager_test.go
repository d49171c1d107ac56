package phase2

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []wire.ApplicationMessage
}

func (f *fakeSender) SendApplication(peerId identity.PeerId, msg wire.ApplicationMessage) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) last() wire.ApplicationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNewManager_BuildsICEServerList(t *testing.T) {
	m := NewManager([]string{"stun:stun.example.org:3478"}, &fakeSender{}, nil)
	require.Len(t, m.config.ICEServers, 1)
	require.Equal(t, []string{"stun:stun.example.org:3478"}, m.config.ICEServers[0].URLs)
}

func TestCreateOffer_SendsSdpOfferAndSetsLocalDescription(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(nil, sender, nil)
	peerId := identity.NewPeerId()

	require.NoError(t, m.CreateOffer(peerId))
	require.Equal(t, 1, sender.count())
	msg := sender.last()
	require.Equal(t, wire.AppSdpOffer, msg.Kind)
	require.NotEmpty(t, msg.SDP)
}

func TestHandleOffer_RespondsWithSdpAnswer(t *testing.T) {
	offerer := NewManager(nil, &fakeSender{}, nil)
	offererPeerId := identity.NewPeerId()
	offererPc, err := offerer.ensurePeer(offererPeerId)
	require.NoError(t, err)
	offer, err := offererPc.pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, offererPc.pc.SetLocalDescription(offer))

	answererSender := &fakeSender{}
	answerer := NewManager(nil, answererSender, nil)
	answererPeerId := identity.NewPeerId()

	require.NoError(t, answerer.HandleOffer(answererPeerId, offer.SDP))
	require.Equal(t, 1, answererSender.count())
	msg := answererSender.last()
	require.Equal(t, wire.AppSdpAnswer, msg.Kind)
	require.NotEmpty(t, msg.SDP)
}

func TestHandleAnswer_UnknownPeerReturnsErrPeerNotFound(t *testing.T) {
	m := NewManager(nil, &fakeSender{}, nil)
	err := m.HandleAnswer(identity.NewPeerId(), "v=0")
	require.ErrorIs(t, err, ErrPeerNotFound)
}

func TestHandleICECandidate_UnknownPeerReturnsErrPeerNotFound(t *testing.T) {
	m := NewManager(nil, &fakeSender{}, nil)
	err := m.HandleICECandidate(identity.NewPeerId(), `{"candidate":"candidate:1 1 udp 1 0.0.0.0 1 typ host"}`)
	require.ErrorIs(t, err, ErrPeerNotFound)
}

func TestICECandidate_RoundTrip(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	encoded, err := encodeICECandidate(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 1 10.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})
	require.NoError(t, err)

	decoded, err := decodeICECandidate(encoded)
	require.NoError(t, err)
	require.Equal(t, "candidate:1 1 udp 1 10.0.0.1 5000 typ host", decoded.Candidate)
	require.NotNil(t, decoded.SDPMid)
	require.Equal(t, "0", *decoded.SDPMid)
	require.NotNil(t, decoded.SDPMLineIndex)
	require.Equal(t, uint16(0), *decoded.SDPMLineIndex)
}

func TestSendDataChannelMessage_TimesOutWhenChannelNeverOpens(t *testing.T) {
	m := NewManager(nil, &fakeSender{}, nil)
	peerId := identity.NewPeerId()
	require.NoError(t, m.CreateDataChannel(peerId, "control"))

	start := time.Now()
	err := m.SendDataChannelMessage(peerId, "control", []byte("hello"))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrChannelTimeout)
	require.GreaterOrEqual(t, elapsed, dataChannelPollTimeout)
}

func TestSendDataChannelMessage_UnknownLabelReturnsErrChannelNotFound(t *testing.T) {
	m := NewManager(nil, &fakeSender{}, nil)
	peerId := identity.NewPeerId()
	require.NoError(t, m.CreateDataChannel(peerId, "control"))

	err := m.SendDataChannelMessage(peerId, "nonexistent", []byte("hello"))
	require.ErrorIs(t, err, ErrChannelNotFound)
}

func TestClosePeerConnection_RemovesFromMap(t *testing.T) {
	m := NewManager(nil, &fakeSender{}, nil)
	peerId := identity.NewPeerId()
	_, err := m.ensurePeer(peerId)
	require.NoError(t, err)

	require.NoError(t, m.ClosePeerConnection(peerId))

	m.mu.Lock()
	_, ok := m.peers[peerId]
	m.mu.Unlock()
	require.False(t, ok)
}

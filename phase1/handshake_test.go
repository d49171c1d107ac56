package phase1

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j-hartshorn/resonance-sub000/crypto"
	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

// recordingEvents captures callbacks for assertions and, when autoApprove
// is set, immediately approves any OnJoinRequested peer — standing in for
// the room layer's join policy.
type recordingEvents struct {
	mu sync.Mutex

	node        *Node
	autoApprove bool

	joined      []identity.PeerId
	denied      []identity.PeerId
	disconnects []string
	authFails   int
	joinReqs    int
}

func (e *recordingEvents) OnJoinRequested(ctx context.Context, peerId identity.PeerId, name string, addr *net.UDPAddr) {
	e.mu.Lock()
	e.joinReqs++
	e.mu.Unlock()
	if e.autoApprove {
		_ = e.node.Approve(peerId)
	}
}

func (e *recordingEvents) OnPeerJoined(ctx context.Context, peerId identity.PeerId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joined = append(e.joined, peerId)
}

func (e *recordingEvents) OnJoinDenied(ctx context.Context, peerId identity.PeerId, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.denied = append(e.denied, peerId)
}

func (e *recordingEvents) OnPeerDisconnected(ctx context.Context, peerId identity.PeerId, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnects = append(e.disconnects, reason)
}

func (e *recordingEvents) OnAuthenticationFailed(ctx context.Context, peerId identity.PeerId) {
	e.mu.Lock()
	e.authFails++
	e.mu.Unlock()
}

func (e *recordingEvents) OnApplicationMessage(ctx context.Context, peerId identity.PeerId, msg ApplicationPayload) {
}

func (e *recordingEvents) joinedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.joined)
}

func (e *recordingEvents) deniedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.denied)
}

func localUDPAddr(t *testing.T) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	return addr
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "condition not met before timeout")
}

func TestHandshake_ConvergesToJoinedWithApproval(t *testing.T) {
	roomId := identity.NewRoomId()
	aliceId := identity.NewPeerId()
	bobId := identity.NewPeerId()

	bobEvents := &recordingEvents{autoApprove: true}
	bob, err := NewNode(localUDPAddr(t), bobId, roomId, "bob", bobEvents)
	require.NoError(t, err)
	defer bob.Close()
	bobEvents.node = bob

	aliceEvents := &recordingEvents{}
	alice, err := NewNode(localUDPAddr(t), aliceId, roomId, "alice", aliceEvents)
	require.NoError(t, err)
	defer alice.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	alice.Start(ctx)
	bob.Start(ctx)

	require.NoError(t, alice.Connect(bob.LocalAddr()))

	waitFor(t, 2*time.Second, func() bool {
		return aliceEvents.joinedCount() == 1 && bobEvents.joinedCount() == 1
	})

	require.Equal(t, 1, bobEvents.joinReqs)
	peers := alice.Peers()
	require.Len(t, peers, 1)
	require.Equal(t, bobId, peers[0].PeerId)
}

func TestHandshake_DenialPurgesConnection(t *testing.T) {
	roomId := identity.NewRoomId()
	aliceId := identity.NewPeerId()
	bobId := identity.NewPeerId()

	bobEvents := &recordingEvents{autoApprove: false}
	bob, err := NewNode(localUDPAddr(t), bobId, roomId, "bob", bobEvents)
	require.NoError(t, err)
	defer bob.Close()

	aliceEvents := &recordingEvents{}
	alice, err := NewNode(localUDPAddr(t), aliceId, roomId, "alice", aliceEvents)
	require.NoError(t, err)
	defer alice.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	alice.Start(ctx)
	bob.Start(ctx)

	require.NoError(t, alice.Connect(bob.LocalAddr()))

	waitFor(t, 2*time.Second, func() bool {
		return bobEvents.joinReqs == 1
	})

	require.NoError(t, bob.Deny(aliceId, "room full"))

	waitFor(t, 2*time.Second, func() bool {
		return aliceEvents.deniedCount() == 1
	})
	require.Equal(t, 0, aliceEvents.joinedCount())
}

func TestHandshake_TamperedAuthTagIsRejected(t *testing.T) {
	roomId := identity.NewRoomId()
	aliceId := identity.NewPeerId()
	bobId := identity.NewPeerId()

	bobEvents := &recordingEvents{autoApprove: true}
	bob, err := NewNode(localUDPAddr(t), bobId, roomId, "bob", bobEvents)
	require.NoError(t, err)
	defer bob.Close()
	bobEvents.node = bob

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bob.Start(ctx)

	// Forge a HelloInitiate/DHPubKey/AuthTagFrame sequence from a raw
	// socket with a deliberately wrong AuthTag, and confirm bob never
	// reaches Joined for this peer.
	conn, err := net.DialUDP("udp", nil, bob.LocalAddr())
	require.NoError(t, err)
	defer conn.Close()

	hello := wire.HelloInitiate{Version: wire.ProtocolVersion, RoomId: roomId, PeerId: aliceId}
	sendFrame(t, conn, hello)

	ackBuf := make([]byte, wire.MaxDatagramSize)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	nRead, err := conn.Read(ackBuf)
	require.NoError(t, err)
	ackFrame, err := wire.Decode(ackBuf[:nRead])
	require.NoError(t, err)
	_, ok := ackFrame.(wire.HelloAck)
	require.True(t, ok)

	nRead, err = conn.Read(ackBuf)
	require.NoError(t, err)
	dhFrame, err := wire.Decode(ackBuf[:nRead])
	require.NoError(t, err)
	_, ok = dhFrame.(wire.DHPubKey)
	require.True(t, ok)

	forgedKeyPair, err := crypto.GenerateDHKeyPair()
	require.NoError(t, err)
	sendFrame(t, conn, wire.DHPubKey{PubKey: toArray32(forgedKeyPair.PublicBytes())})

	var forgedTag [32]byte
	for i := range forgedTag {
		forgedTag[i] = 0xAA
	}
	sendFrame(t, conn, wire.AuthTagFrame{Tag: forgedTag})

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, bobEvents.joinedCount())
}

func sendFrame(t *testing.T, conn *net.UDPConn, f wire.Frame) {
	t.Helper()
	data, err := wire.Encode(f)
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
}

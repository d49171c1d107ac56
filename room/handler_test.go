package room

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func localUDPAddr(t *testing.T) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	return addr
}

func newHandler(t *testing.T, username string) (*Handler, context.Context, context.CancelFunc) {
	t.Helper()
	h := NewHandler(Config{LocalAddr: localUDPAddr(t), Username: username})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, ctx, cancel
}

func drainUntil(t *testing.T, events <-chan RoomEvent, timeout time.Duration, match func(RoomEvent) bool) RoomEvent {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			require.FailNow(t, "event not observed before timeout")
		}
	}
}

func waitForAddr(t *testing.T, h *Handler, timeout time.Duration) *net.UDPAddr {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if addr := h.LocalAddr(); addr != nil {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "handler never bootstrapped a local address")
	return nil
}

func TestHandler_CreateRoom_AddsSelfAsMember(t *testing.T) {
	host, _, _ := newHandler(t, "host")

	require.NoError(t, host.Submit(RoomCommand{Kind: CmdCreateRoom}))

	ev := drainUntil(t, host.Events(), time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventPeerAdded && ev.PeerId == host.SelfID()
	})
	require.Equal(t, "host", ev.Name)
}

func TestHandler_JoinRoom_RequestsAdmissionAndApprovalJoinsBothSides(t *testing.T) {
	host, _, _ := newHandler(t, "host")
	require.NoError(t, host.Submit(RoomCommand{Kind: CmdCreateRoom}))
	drainUntil(t, host.Events(), time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventPeerAdded && ev.PeerId == host.SelfID()
	})
	hostAddr := waitForAddr(t, host, time.Second)

	guest, _, _ := newHandler(t, "guest")
	require.NoError(t, guest.Submit(RoomCommand{
		Kind:    CmdJoinRoom,
		RoomId:  host.RoomID(),
		Address: hostAddr.String(),
	}))

	reqEv := drainUntil(t, host.Events(), 2*time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventJoinRequestReceived
	})
	require.Equal(t, guest.SelfID(), reqEv.PeerId)

	require.NoError(t, host.Submit(RoomCommand{Kind: CmdApproveJoinRequest, PeerId: reqEv.PeerId}))

	approvedEv := drainUntil(t, host.Events(), 2*time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventJoinRequestStatusChanged && ev.PeerId == guest.SelfID()
	})
	require.Equal(t, StatusApproved, approvedEv.Status)

	guestJoinedEv := drainUntil(t, guest.Events(), 2*time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventPeerAdded && ev.PeerId == host.SelfID()
	})
	require.NotEmpty(t, guestJoinedEv.PeerId)
}

func TestHandler_JoinRoom_DenialReportsStatusAndReasonToJoiner(t *testing.T) {
	host, _, _ := newHandler(t, "host")
	require.NoError(t, host.Submit(RoomCommand{Kind: CmdCreateRoom}))
	drainUntil(t, host.Events(), time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventPeerAdded && ev.PeerId == host.SelfID()
	})
	hostAddr := waitForAddr(t, host, time.Second)

	guest, _, _ := newHandler(t, "guest")
	require.NoError(t, guest.Submit(RoomCommand{
		Kind:    CmdJoinRoom,
		RoomId:  host.RoomID(),
		Address: hostAddr.String(),
	}))

	reqEv := drainUntil(t, host.Events(), 2*time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventJoinRequestReceived
	})

	require.NoError(t, host.Submit(RoomCommand{
		Kind:   CmdDenyJoinRequest,
		PeerId: reqEv.PeerId,
		Reason: "room full",
	}))

	deniedEv := drainUntil(t, guest.Events(), 2*time.Second, func(ev RoomEvent) bool {
		return ev.Kind == EventJoinRequestStatusChanged
	})
	require.Equal(t, StatusDenied, deniedEv.Status)
	require.Equal(t, "room full", deniedEv.Reason)
}

func TestHandler_Submit_QueueFullReturnsError(t *testing.T) {
	h := NewHandler(Config{LocalAddr: localUDPAddr(t), Username: "solo"})
	for i := 0; i < commandQueueCapacity; i++ {
		require.NoError(t, h.Submit(RoomCommand{Kind: CmdRenamePeer}))
	}
	require.ErrorIs(t, h.Submit(RoomCommand{Kind: CmdRenamePeer}), ErrQueueFull)
}

func TestHandler_Shutdown_StopsRunLoopFromDrainingCommands(t *testing.T) {
	h, _, cancel := newHandler(t, "solo")
	defer cancel()

	require.NoError(t, h.Submit(RoomCommand{Kind: CmdShutdown}))
	// Give the Run goroutine a moment to process the Shutdown command and
	// return, so nothing is left draining h.commands.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < commandQueueCapacity; i++ {
		require.NoError(t, h.Submit(RoomCommand{Kind: CmdRenamePeer}))
	}
	require.ErrorIs(t, h.Submit(RoomCommand{Kind: CmdRenamePeer}), ErrQueueFull)
}

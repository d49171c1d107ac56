package phase1

import (
	"context"
	"net"
	"time"

	"github.com/j-hartshorn/resonance-sub000/crypto"
	"github.com/j-hartshorn/resonance-sub000/internal/metrics"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

func (n *Node) recvLoop(ctx context.Context) {
	defer n.wg.Done()
	buf := make([]byte, wire.MaxDatagramSize+64)
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		default:
		}

		nRead, addr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-n.stopCh:
				return
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		if !n.limiter.Allow() {
			continue // rate limit exceeded: silently drop
		}

		frame, err := wire.Decode(buf[:nRead])
		if err != nil {
			continue // malformed datagram: drop
		}

		n.handleFrame(ctx, addr, frame)
	}
}

func (n *Node) handleFrame(ctx context.Context, addr *net.UDPAddr, frame wire.Frame) {
	n.mu.Lock()
	peerId, known := n.addrToPeer[addr.String()]
	var pc *PeerConnection
	if known {
		pc = n.peers[peerId]
	}
	pending := n.pendingByAddr[addr.String()]
	n.mu.Unlock()

	switch f := frame.(type) {
	case wire.HelloInitiate:
		n.handleHelloInitiate(addr, f)
		return
	case wire.HelloAck:
		if pending != nil {
			n.handleHelloAck(addr, pending, f)
		}
		return
	}

	if pc == nil {
		return // no established or pending connection for this frame
	}
	pc.touchActivity()

	switch f := frame.(type) {
	case wire.DHPubKey:
		n.handleDHPubKey(ctx, pc, f)
	case wire.AuthTagFrame:
		n.handleAuthTag(ctx, pc, f)
	case wire.EncryptedFrame:
		n.handleEncryptedFrame(ctx, pc, f)
	case wire.Ping:
		_ = n.send(addr, wire.Pong{PeerId: n.selfId})
	case wire.Pong:
		// lastActivity already refreshed above.
	}
}

func (n *Node) handleHelloInitiate(addr *net.UDPAddr, f wire.HelloInitiate) {
	if f.Version != wire.ProtocolVersion {
		return // version mismatch: drop silently, no record created
	}

	n.mu.Lock()
	if existingId, ok := n.addrToPeer[addr.String()]; ok && existingId == f.PeerId {
		// Duplicate HelloInitiate after state has already advanced: ignore.
		if n.peers[existingId].getState() != StateNone {
			n.mu.Unlock()
			return
		}
	}
	if existing, ok := n.peers[f.PeerId]; ok && existing.Addr.String() != addr.String() {
		// New address for a known peer id: replace, purging the old record.
		delete(n.addrToPeer, existing.Addr.String())
		delete(n.peers, f.PeerId)
	}

	pc := &PeerConnection{
		PeerId:       f.PeerId,
		Addr:         addr,
		Role:         RoleResponder,
		State:        StateNone,
		lastActivity: time.Now(),
	}
	n.peers[f.PeerId] = pc
	n.addrToPeer[addr.String()] = f.PeerId
	n.mu.Unlock()
	metrics.HandshakesInitiated.WithLabelValues("responder").Inc()

	ack := wire.HelloAck{Version: wire.ProtocolVersion, RoomId: n.roomId, PeerId: n.selfId}
	if err := n.send(addr, ack); err != nil {
		return
	}

	kp, err := crypto.GenerateDHKeyPair()
	if err != nil {
		return
	}
	pc.localKeyPair = kp
	pc.localPub = kp.PublicBytes()
	pc.stageStart = time.Now()
	pc.setState(StateKeyExchanged)

	_ = n.send(addr, wire.DHPubKey{PubKey: toArray32(pc.localPub)})
}

func (n *Node) handleHelloAck(addr *net.UDPAddr, pc *PeerConnection, f wire.HelloAck) {
	if f.Version != wire.ProtocolVersion {
		return
	}
	if pc.getState() != StateHelloExchanged {
		return
	}

	pc.PeerId = f.PeerId

	kp, err := crypto.GenerateDHKeyPair()
	if err != nil {
		return
	}
	pc.localKeyPair = kp
	pc.localPub = kp.PublicBytes()

	n.mu.Lock()
	delete(n.pendingByAddr, addr.String())
	n.peers[pc.PeerId] = pc
	n.addrToPeer[addr.String()] = pc.PeerId
	n.mu.Unlock()

	pc.stageStart = time.Now()
	pc.setState(StateKeyExchanged)
	_ = n.send(addr, wire.DHPubKey{PubKey: toArray32(pc.localPub)})
}

func (n *Node) handleDHPubKey(ctx context.Context, pc *PeerConnection, f wire.DHPubKey) {
	if pc.getState() != StateKeyExchanged || pc.localKeyPair == nil {
		return
	}

	pc.peerPub = append([]byte(nil), f.PubKey[:]...)
	shared, err := pc.localKeyPair.ComputeSharedSecret(pc.peerPub)
	pc.localKeyPair = nil
	if err != nil {
		return
	}

	metrics.CryptoOperations.WithLabelValues("dh").Inc()
	metrics.HandshakeDuration.WithLabelValues("dh_exchange").Observe(time.Since(pc.stageStart).Seconds())

	keys, err := crypto.DeriveSessionKeys(shared, n.roomId.Bytes(), n.selfId, pc.PeerId)
	if err != nil {
		return
	}
	pc.Keys = keys
	pc.stageStart = time.Now()

	switch pc.Role {
	case RoleInitiator:
		tag := crypto.AuthTag(keys.MACKey, pc.localPub, pc.peerPub)
		metrics.CryptoOperations.WithLabelValues("hmac").Inc()
		if err := n.send(pc.Addr, wire.AuthTagFrame{Tag: toArray32(tag)}); err != nil {
			return
		}
		pc.setState(StateAuthenticated)
		metrics.HandshakeDuration.WithLabelValues("auth").Observe(time.Since(pc.stageStart).Seconds())
		pc.stageStart = time.Now()

		join := wire.JoinRequest{PeerId: n.selfId, Name: n.name}
		if err := n.sendEncrypted(pc, join, crypto.DirectionInitiatorToResponder); err != nil {
			return
		}
		pc.setState(StateJoinRequested)
	case RoleResponder:
		pc.setState(StateAuthenticated)
	}
}

func (n *Node) handleAuthTag(ctx context.Context, pc *PeerConnection, f wire.AuthTagFrame) {
	if pc.Role != RoleResponder || pc.getState() != StateAuthenticated || pc.Keys == nil {
		return
	}
	if err := crypto.VerifyAuthTag(pc.Keys.MACKey, pc.peerPub, pc.localPub, f.Tag[:]); err != nil {
		metrics.CryptoErrors.WithLabelValues("hmac").Inc()
		metrics.HandshakesCompleted.WithLabelValues("auth_failed").Inc()
		n.events.OnAuthenticationFailed(ctx, pc.PeerId)
		n.purge(pc.PeerId, "authentication failed")
		return
	}
	metrics.CryptoOperations.WithLabelValues("hmac").Inc()
	metrics.HandshakeDuration.WithLabelValues("auth").Observe(time.Since(pc.stageStart).Seconds())
	pc.stageStart = time.Now()
	// Remains Authenticated; waits for the encrypted JoinRequest.
}

func (n *Node) handleEncryptedFrame(ctx context.Context, pc *PeerConnection, f wire.EncryptedFrame) {
	if pc.Keys == nil {
		return
	}

	var recvDirection byte = crypto.DirectionResponderToInitiator
	if pc.Role == RoleResponder {
		recvDirection = crypto.DirectionInitiatorToResponder
	}
	aad := crypto.BuildAAD(n.roomId, recvDirection)

	plaintext, err := crypto.Decrypt(pc.Keys.RecvKey, f.Payload, aad)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("decrypt").Inc()
		pc.authFailures++
		n.events.OnAuthenticationFailed(ctx, pc.PeerId)
		if pc.authFailures >= maxAuthFailures {
			metrics.HandshakesCompleted.WithLabelValues("auth_failed").Inc()
			n.purge(pc.PeerId, "repeated authentication failures")
		}
		return
	}
	metrics.CryptoOperations.WithLabelValues("decrypt").Inc()
	pc.authFailures = 0

	inner, err := wire.Decode(plaintext)
	if err != nil {
		return
	}

	switch m := inner.(type) {
	case wire.JoinRequest:
		if pc.Role != RoleResponder || pc.getState() != StateAuthenticated {
			return
		}
		pc.Name = m.Name
		pc.stageStart = time.Now()
		pc.setState(StateJoinRequested)
		n.events.OnJoinRequested(ctx, pc.PeerId, pc.Name, pc.Addr)

	case wire.JoinResponse:
		if pc.Role != RoleInitiator || pc.getState() != StateJoinRequested {
			return
		}
		metrics.HandshakeDuration.WithLabelValues("join_wait").Observe(time.Since(pc.stageStart).Seconds())
		if m.Approved {
			pc.setState(StateJoined)
			metrics.HandshakesCompleted.WithLabelValues("joined").Inc()
			n.events.OnPeerJoined(ctx, pc.PeerId)
		} else {
			metrics.HandshakesCompleted.WithLabelValues("denied").Inc()
			n.events.OnJoinDenied(ctx, pc.PeerId, m.Reason)
			n.purge(pc.PeerId, "join denied")
		}

	case wire.ApplicationMessage:
		if pc.getState() != StateJoined {
			return // responder MUST NOT accept application traffic before Joined
		}
		n.events.OnApplicationMessage(ctx, pc.PeerId, toApplicationPayload(m))
	}
}

func toApplicationPayload(m wire.ApplicationMessage) ApplicationPayload {
	out := ApplicationPayload{SDP: m.SDP, ICECandidate: m.ICECandidate}
	switch m.Kind {
	case wire.AppSdpOffer:
		out.Kind = "sdp_offer"
	case wire.AppSdpAnswer:
		out.Kind = "sdp_answer"
	case wire.AppIceCandidate:
		out.Kind = "ice_candidate"
	case wire.AppPeerListRequest:
		out.Kind = "peer_list_request"
	case wire.AppPeerListResponse:
		out.Kind = "peer_list_response"
		out.Peers = make([]PeerInfo, 0, len(m.Peers))
		for _, p := range m.Peers {
			out.Peers = append(out.Peers, PeerInfo{PeerId: p.PeerId, Name: p.Name})
		}
	}
	return out
}

func toArray32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

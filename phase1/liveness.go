package phase1

import (
	"context"
	"time"

	"github.com/j-hartshorn/resonance-sub000/internal/metrics"
	"github.com/j-hartshorn/resonance-sub000/wire"
)

// livenessLoop pings every Joined peer every livenessInterval and purges
// any peer that has gone livenessTimeout without activity (a received
// frame of any kind, including the Pong this loop provokes).
func (n *Node) livenessLoop(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.checkLiveness()
		}
	}
}

func (n *Node) checkLiveness() {
	now := time.Now()

	n.mu.RLock()
	stale := make([]*PeerConnection, 0)
	live := make([]*PeerConnection, 0, len(n.peers))
	for _, pc := range n.peers {
		if now.Sub(pc.getLastActivity()) >= livenessTimeout {
			stale = append(stale, pc)
			continue
		}
		if pc.getState() == StateJoined {
			live = append(live, pc)
		}
	}
	n.mu.RUnlock()

	for _, pc := range stale {
		if pc.getState() == StateJoined {
			metrics.HandshakesCompleted.WithLabelValues("timed_out").Inc()
		}
		n.purge(pc.PeerId, "ping timeout")
	}
	for _, pc := range live {
		_ = n.send(pc.Addr, wire.Ping{PeerId: n.selfId})
	}
}

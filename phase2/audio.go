package phase2

import (
	"errors"
	"io"
	"time"

	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/internal/metrics"
)

const audioRetryDelay = 10 * time.Millisecond

// drainAudioTrack reads RTP packets off an inbound audio track, depacketizes
// each into its Opus payload (nominally 960 samples at 48kHz — one RTP
// packet per frame, so no cross-packet buffering is needed), and surfaces
// it upward via OnAudioReceived. EOF ends the task; any other read error
// sleeps briefly and retries, per spec.md §4.4.
func drainAudioTrack(peerId identity.PeerId, track *webrtc.TrackRemote, events Events) {
	var depacketizer codecs.OpusPacket
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			time.Sleep(audioRetryDelay)
			continue
		}
		payload, err := depacketizer.Unmarshal(packet.Payload)
		if err != nil {
			metrics.AudioPacketsReceived.WithLabelValues("depacketize_error").Inc()
			continue
		}
		metrics.AudioPacketsReceived.WithLabelValues("ok").Inc()
		events.OnAudioReceived(peerId, payload)
	}
}

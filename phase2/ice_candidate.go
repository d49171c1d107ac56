package phase2

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// iceCandidatePayload is the minimal JSON shape the source emits
// ({"candidate":"<string>"}), extended here with the optional sdpMid/
// sdpMLineIndex fields some WebRTC stacks require — included when the
// local candidate event provides them (spec.md §9's Design Notes).
type iceCandidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func encodeICECandidate(init webrtc.ICECandidateInit) (string, error) {
	payload := iceCandidatePayload{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeICECandidate(raw string) (webrtc.ICECandidateInit, error) {
	var payload iceCandidatePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	return webrtc.ICECandidateInit{
		Candidate:     payload.Candidate,
		SDPMid:        payload.SDPMid,
		SDPMLineIndex: payload.SDPMLineIndex,
	}, nil
}

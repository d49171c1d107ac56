package phase2

import "errors"

// ErrChannelTimeout is returned by SendDataChannelMessage when the named
// channel does not reach the Open state within the poll window.
var ErrChannelTimeout = errors.New("phase2: data channel did not open in time")

// ErrPeerNotFound is returned when an operation names a peer with no
// PeerConnection (HandleAnswer, HandleICECandidate, SendDataChannelMessage).
var ErrPeerNotFound = errors.New("phase2: no peer connection for peer id")

// ErrChannelNotFound is returned by SendDataChannelMessage when the named
// label was never created for this peer.
var ErrChannelNotFound = errors.New("phase2: no data channel with that label")

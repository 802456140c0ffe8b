// Package client is the participant side of a call: it acquires local
// media, talks to the relay and drives a peer connection through the
// negotiation state machine.
package client

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// LocalTrack is one captured media track. Disabling it keeps the track
// negotiated but stops its samples.
type LocalTrack interface {
	Kind() MediaKind
	Enabled() bool
	SetEnabled(on bool)
	Stop()
	// TrackLocal is what gets attached to the peer connection.
	TrackLocal() webrtc.TrackLocal
}

// MediaDevices acquires local tracks. Acquire returns an error wrapping
// domain.ErrMediaDenied when the user refuses access.
type MediaDevices interface {
	Acquire(ctx context.Context) ([]LocalTrack, error)
}

// PeerConnection is the subset of a WebRTC peer connection the session
// drives. Callbacks may fire on any goroutine.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	AddTrack(t LocalTrack) error
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	Close() error
}

type PeerFactory func() (PeerConnection, error)

// RelayLink is an open relay connection. Read returns an error wrapping
// domain.ErrMeetingEnded when the relay closed it because the meeting
// ended, and one wrapping domain.ErrTransport otherwise.
type RelayLink interface {
	Send(msg domain.Inbound) error
	Read() (domain.Outbound, error)
	Close() error
}

type RelayDialer interface {
	Dial(ctx context.Context) (RelayLink, error)
}

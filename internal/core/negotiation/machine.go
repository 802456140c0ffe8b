// Package negotiation is the per-participant call state machine. It holds
// no I/O; the client drives it with events and acts on the resulting state.
package negotiation

import (
	"errors"
	"fmt"
)

type State string

const (
	Idle            State = "idle"
	MediaAcquiring  State = "media-acquiring"
	MediaError      State = "media-error"
	MediaReady      State = "media-ready"
	RelayConnecting State = "relay-connecting"
	RelayError      State = "relay-error"
	RelayConnected  State = "relay-connected"
	AwaitingPeer    State = "awaiting-peer"
	Offering        State = "offering"
	Answering       State = "answering"
	Negotiating     State = "negotiating"
	Connected       State = "connected"
	Disconnected    State = "disconnected"
	Ended           State = "ended"
)

type Event string

const (
	AcquireMedia       Event = "acquire-media"
	MediaGranted       Event = "media-granted"
	MediaDenied        Event = "media-denied"
	ConnectRelay       Event = "connect-relay"
	RelayOpened        Event = "relay-opened"
	RelayFailed        Event = "relay-failed"
	JoinedAlone        Event = "joined-alone"
	JoinedWithPeer     Event = "joined-with-peer"
	JoinRejected       Event = "join-rejected"
	PeerJoined         Event = "peer-joined"
	OfferReceived      Event = "offer-received"
	DescriptionSent    Event = "description-sent"
	NegotiationFailed  Event = "negotiation-failed"
	TransportConnected Event = "transport-connected"
	TransportLost      Event = "transport-lost"
	PeerLeft           Event = "peer-left"
	End                Event = "end"
)

var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	Idle: {
		AcquireMedia: MediaAcquiring,
	},
	MediaAcquiring: {
		MediaGranted: MediaReady,
		MediaDenied:  MediaError,
	},
	MediaReady: {
		ConnectRelay: RelayConnecting,
	},
	RelayConnecting: {
		RelayOpened: RelayConnected,
		RelayFailed: RelayError,
	},
	RelayConnected: {
		JoinedAlone:    AwaitingPeer,
		JoinedWithPeer: Offering,
		JoinRejected:   RelayError,
		RelayFailed:    RelayError,
	},
	AwaitingPeer: {
		PeerJoined:    AwaitingPeer,
		PeerLeft:      AwaitingPeer,
		OfferReceived: Answering,
		RelayFailed:   RelayError,
	},
	Offering: {
		DescriptionSent:   Negotiating,
		NegotiationFailed: Disconnected,
		PeerLeft:          Disconnected,
		RelayFailed:       RelayError,
	},
	Answering: {
		DescriptionSent:   Negotiating,
		NegotiationFailed: Disconnected,
		PeerLeft:          Disconnected,
		RelayFailed:       RelayError,
	},
	Negotiating: {
		TransportConnected: Connected,
		TransportLost:      Disconnected,
		NegotiationFailed:  Disconnected,
		PeerLeft:           Disconnected,
		RelayFailed:        RelayError,
	},
	// The media path no longer needs the relay once it is up.
	Connected: {
		TransportLost: Disconnected,
		PeerLeft:      Disconnected,
		RelayFailed:   Connected,
	},
	// A peer that comes back is negotiated from scratch.
	Disconnected: {
		PeerJoined:         AwaitingPeer,
		OfferReceived:      Answering,
		TransportConnected: Connected,
		TransportLost:      Disconnected,
		PeerLeft:           Disconnected,
		RelayFailed:        RelayError,
	},
}

// Transition returns the state reached from s on e. End is accepted from
// every state, including Ended itself.
func Transition(s State, e Event) (State, error) {
	if e == End {
		return Ended, nil
	}
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, e)
}

// Waiting reports whether s only makes progress through the relay.
func Waiting(s State) bool {
	switch s {
	case RelayConnected, AwaitingPeer, Offering, Answering, Negotiating, Disconnected:
		return true
	}
	return false
}

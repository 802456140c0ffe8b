package negotiation

import (
	"errors"
	"testing"
)

func TestTransition_Paths(t *testing.T) {
	paths := map[string]struct {
		events []Event
		want   State
	}{
		"initiator": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedWithPeer, DescriptionSent, TransportConnected},
			Connected,
		},
		"responder": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedAlone, PeerJoined, OfferReceived, DescriptionSent, TransportConnected},
			Connected,
		},
		"media denied": {
			[]Event{AcquireMedia, MediaDenied},
			MediaError,
		},
		"relay unreachable": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayFailed},
			RelayError,
		},
		"meeting full": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinRejected},
			RelayError,
		},
		"relay lost while waiting": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedAlone, RelayFailed},
			RelayError,
		},
		"relay lost mid call": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedWithPeer, DescriptionSent, TransportConnected, RelayFailed},
			Connected,
		},
		"peer left mid call": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedWithPeer, DescriptionSent, TransportConnected, PeerLeft},
			Disconnected,
		},
		"peer returns": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedAlone, OfferReceived, DescriptionSent, TransportConnected, PeerLeft, PeerJoined, OfferReceived},
			Answering,
		},
		"ended mid negotiation": {
			[]Event{AcquireMedia, MediaGranted, ConnectRelay, RelayOpened, JoinedWithPeer, End},
			Ended,
		},
	}

	for name, tc := range paths {
		t.Run(name, func(t *testing.T) {
			s := Idle
			for _, e := range tc.events {
				next, err := Transition(s, e)
				if err != nil {
					t.Fatalf("%s on %s: %v", s, e, err)
				}
				s = next
			}
			if s != tc.want {
				t.Fatalf("got %s want %s", s, tc.want)
			}
		})
	}
}

func TestTransition_EndFromEveryState(t *testing.T) {
	states := []State{Idle, MediaAcquiring, MediaError, MediaReady, RelayConnecting, RelayError,
		RelayConnected, AwaitingPeer, Offering, Answering, Negotiating, Connected, Disconnected, Ended}
	for _, s := range states {
		if next, err := Transition(s, End); err != nil || next != Ended {
			t.Fatalf("%s on end: %s %v", s, next, err)
		}
	}
}

func TestTransition_Rejected(t *testing.T) {
	cases := []struct {
		s State
		e Event
	}{
		{Idle, ConnectRelay},
		{MediaError, ConnectRelay},
		{AwaitingPeer, DescriptionSent},
		{Offering, OfferReceived},
		{Connected, OfferReceived},
		{Ended, RelayOpened},
		{RelayError, OfferReceived},
	}
	for _, tc := range cases {
		next, err := Transition(tc.s, tc.e)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s on %s: expected ErrInvalidTransition, got %v", tc.s, tc.e, err)
		}
		if next != tc.s {
			t.Fatalf("%s on %s: state moved to %s", tc.s, tc.e, next)
		}
	}
}

func TestWaiting(t *testing.T) {
	if !Waiting(AwaitingPeer) || !Waiting(Negotiating) {
		t.Fatalf("awaiting states must count as waiting")
	}
	if Waiting(Connected) || Waiting(Ended) || Waiting(Idle) {
		t.Fatalf("non-waiting state reported as waiting")
	}
}

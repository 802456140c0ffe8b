package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Wyydra/safemeet/internal/core/domain"
	"github.com/Wyydra/safemeet/internal/core/negotiation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status strings shown to the user next to the state.
var (
	StatusMediaDenied       = domain.ErrMediaDenied.Error()
	StatusMeetingFull       = domain.ErrMeetingFull.Error()
	StatusMeetingEnded      = domain.ErrMeetingEnded.Error()
	StatusRelayLost         = "connection to relay lost"
	StatusPeerLeft          = "peer disconnected"
	StatusPeerConnection    = "connection to peer lost"
	StatusNegotiationFailed = "could not connect to peer"
)

var errSessionEnded = errors.New("session ended")

// StateObserver is called after every accepted transition.
type StateObserver func(state negotiation.State, status string)

type Options struct {
	MeetCode domain.MeetCode
	UserID   domain.UserID
	Devices  MediaDevices
	NewPeer  PeerFactory
	Relay    RelayDialer
	Observer StateObserver
}

type pendingCandidate struct {
	from domain.UserID
	init webrtc.ICECandidateInit
}

type relayMessage struct{ msg domain.Outbound }
type relayClosed struct{ err error }
type localCandidate struct {
	gen  int
	init webrtc.ICECandidateInit
}
type peerState struct {
	gen   int
	state webrtc.PeerConnectionState
}
type endRequest struct{}

// Session is one participant's call. After Start succeeds, everything
// except the media toggles runs on a single loop goroutine.
type Session struct {
	opts Options
	log  zerolog.Logger

	events  chan any
	done    chan struct{}
	endOnce sync.Once

	mu      sync.Mutex
	state   negotiation.State
	status  string
	tracks  []LocalTrack
	running bool

	// Owned by whoever runs shutdown or the loop.
	link       RelayLink
	pc         PeerConnection
	gen        int
	remote     domain.UserID
	remoteSet  bool
	pending    []pendingCandidate
	cleanupErr error
}

func NewSession(opts Options) *Session {
	return &Session{
		opts:   opts,
		log:    log.With().Str("meet_code", opts.MeetCode.String()).Str("user_id", opts.UserID.String()).Logger(),
		events: make(chan any, 64),
		done:   make(chan struct{}),
		state:  negotiation.Idle,
	}
}

func (s *Session) State() negotiation.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed once the session reached Ended and released everything.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) fire(e negotiation.Event, status string) bool {
	s.mu.Lock()
	prev := s.state
	next, err := negotiation.Transition(prev, e)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug().Err(err).Msg("Event ignored")
		return false
	}
	s.state = next
	s.status = status
	s.mu.Unlock()

	s.log.Debug().Str("from", string(prev)).Str("to", string(next)).Str("event", string(e)).Msg("State changed")
	if s.opts.Observer != nil {
		s.opts.Observer(next, status)
	}
	return true
}

// Start acquires media, opens the relay and joins the room. Capacity and
// media errors surface here, before the session starts waiting on peers.
func (s *Session) Start(ctx context.Context) error {
	if !s.fire(negotiation.AcquireMedia, "") {
		return errSessionEnded
	}
	tracks, err := s.opts.Devices.Acquire(ctx)
	if err != nil {
		status := err.Error()
		if errors.Is(err, domain.ErrMediaDenied) {
			status = StatusMediaDenied
		}
		s.fire(negotiation.MediaDenied, status)
		return fmt.Errorf("acquire media: %w", err)
	}
	for _, t := range tracks {
		t.SetEnabled(t.Kind() != KindAudio)
	}
	s.mu.Lock()
	s.tracks = tracks
	s.mu.Unlock()
	if !s.fire(negotiation.MediaGranted, "") {
		stopTracks(tracks)
		return errSessionEnded
	}

	s.fire(negotiation.ConnectRelay, "")
	link, err := s.opts.Relay.Dial(ctx)
	if err != nil {
		s.fire(negotiation.RelayFailed, StatusRelayLost)
		return fmt.Errorf("dial relay: %w", err)
	}
	s.mu.Lock()
	if s.state == negotiation.Ended {
		s.mu.Unlock()
		_ = link.Close()
		return errSessionEnded
	}
	s.link = link
	s.running = true
	s.mu.Unlock()

	s.fire(negotiation.RelayOpened, "")
	go s.read(link)
	go s.run()

	if err := link.Send(domain.Join{MeetCode: s.opts.MeetCode, UserID: s.opts.UserID}); err != nil {
		_ = link.Close()
		return fmt.Errorf("join relay: %w", err)
	}
	return nil
}

// End tears the session down. It is safe to call more than once and from
// any state; the returned error joins whatever cleanup steps failed.
func (s *Session) End() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running {
		s.post(endRequest{})
		<-s.done
	} else {
		s.shutdown("")
	}
	return s.cleanupErr
}

// SetMicrophone flips the enabled flag on the audio tracks.
func (s *Session) SetMicrophone(on bool) {
	s.setEnabled(KindAudio, on)
}

// SetCamera flips the enabled flag on the video tracks.
func (s *Session) SetCamera(on bool) {
	s.setEnabled(KindVideo, on)
}

func (s *Session) setEnabled(kind MediaKind, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.Kind() == kind {
			t.SetEnabled(on)
		}
	}
}

func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) read(link RelayLink) {
	for {
		msg, err := link.Read()
		if err != nil {
			s.post(relayClosed{err: err})
			return
		}
		s.post(relayMessage{msg: msg})
	}
}

func (s *Session) run() {
	for ev := range s.events {
		switch ev := ev.(type) {
		case relayMessage:
			s.onRelayMessage(ev.msg)
		case relayClosed:
			if errors.Is(ev.err, domain.ErrMeetingEnded) {
				// The relay already unbound us and closed the transport.
				if s.link != nil {
					_ = s.link.Close()
					s.link = nil
				}
				s.shutdown(StatusMeetingEnded)
				return
			}
			s.onRelayLost(ev.err)
		case localCandidate:
			s.onLocalCandidate(ev)
		case peerState:
			s.onPeerState(ev)
		case endRequest:
			s.shutdown("")
			return
		}
	}
}

func (s *Session) onRelayMessage(msg domain.Outbound) {
	switch m := msg.(type) {
	case domain.Joined:
		if len(m.ExistingPeers) == 0 {
			s.fire(negotiation.JoinedAlone, "")
			return
		}
		s.remote = m.ExistingPeers[0]
		if s.fire(negotiation.JoinedWithPeer, "") {
			s.offer()
		}

	case domain.UserJoined:
		if s.fire(negotiation.PeerJoined, "") {
			s.resetPeer(m.UserID)
			s.remote = m.UserID
		}

	case domain.UserLeft:
		if m.UserID != s.remote {
			return
		}
		if s.fire(negotiation.PeerLeft, StatusPeerLeft) {
			s.resetPeer("")
			s.remote = ""
		}

	case domain.Relayed:
		switch m.Kind {
		case domain.SignalOffer:
			s.answer(m)
		case domain.SignalAnswer:
			s.acceptAnswer(m)
		case domain.SignalICECandidate:
			s.remoteCandidate(m)
		}

	case domain.Error:
		if s.State() == negotiation.RelayConnected {
			s.fire(negotiation.JoinRejected, m.Message)
			if err := s.link.Close(); err != nil {
				s.log.Debug().Err(err).Msg("Error closing rejected relay link")
			}
			// Never bound, so there is nothing to leave.
			s.link = nil
			return
		}
		s.log.Warn().Str("message", m.Message).Msg("Relay reported an error")
	}
}

func (s *Session) onRelayLost(err error) {
	if s.link == nil {
		// Closed on purpose after a rejected join.
		return
	}
	s.log.Warn().Err(err).Msg("Relay connection lost")
	if err := s.link.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Error closing lost relay link")
	}
	s.link = nil

	waiting := negotiation.Waiting(s.State())
	if s.fire(negotiation.RelayFailed, StatusRelayLost) && waiting {
		s.resetPeer("")
	}
}

func (s *Session) newPeer() error {
	pc, err := s.opts.NewPeer()
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	s.gen++
	gen := s.gen
	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.post(localCandidate{gen: gen, init: c})
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.post(peerState{gen: gen, state: st})
	})

	s.mu.Lock()
	tracks := s.tracks
	s.mu.Unlock()
	for _, t := range tracks {
		if err := pc.AddTrack(t); err != nil {
			_ = pc.Close()
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}
	}
	s.pc = pc
	return nil
}

// resetPeer drops the current peer connection. Buffered candidates from
// keep survive; everything else is discarded.
func (s *Session) resetPeer(keep domain.UserID) {
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Error closing peer connection")
		}
		s.pc = nil
	}
	s.gen++
	s.remoteSet = false
	s.pending = lo.Filter(s.pending, func(p pendingCandidate, _ int) bool {
		return keep != "" && p.from == keep
	})
}

func (s *Session) negotiationFailed(err error) {
	s.log.Error().Err(err).Str("peer", s.remote.String()).Msg("Negotiation failed")
	s.fire(negotiation.NegotiationFailed, StatusNegotiationFailed)
	s.resetPeer("")
}

// offer runs on the side that found a peer already in the room.
func (s *Session) offer() {
	if err := s.newPeer(); err != nil {
		s.negotiationFailed(err)
		return
	}
	desc, err := s.pc.CreateOffer()
	if err != nil {
		s.negotiationFailed(fmt.Errorf("create offer: %w", err))
		return
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		s.negotiationFailed(fmt.Errorf("set local offer: %w", err))
		return
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		s.negotiationFailed(err)
		return
	}
	if err := s.link.Send(domain.Offer{TargetUserID: s.remote, SDP: payload}); err != nil {
		s.negotiationFailed(fmt.Errorf("send offer: %w", err))
		return
	}
	s.fire(negotiation.DescriptionSent, "")
}

// answer applies the remote offer before creating the answer, then
// flushes candidates that arrived ahead of it.
func (s *Session) answer(m domain.Relayed) {
	if !s.fire(negotiation.OfferReceived, "") {
		s.log.Warn().Str("from", m.FromUserID.String()).Msg("Unexpected offer dropped")
		return
	}
	s.resetPeer(m.FromUserID)
	s.remote = m.FromUserID

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(m.Payload, &offer); err != nil {
		s.negotiationFailed(fmt.Errorf("decode offer: %w", err))
		return
	}
	if err := s.newPeer(); err != nil {
		s.negotiationFailed(err)
		return
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.negotiationFailed(fmt.Errorf("set remote offer: %w", err))
		return
	}
	s.remoteSet = true
	s.flushCandidates()

	desc, err := s.pc.CreateAnswer()
	if err != nil {
		s.negotiationFailed(fmt.Errorf("create answer: %w", err))
		return
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		s.negotiationFailed(fmt.Errorf("set local answer: %w", err))
		return
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		s.negotiationFailed(err)
		return
	}
	if err := s.link.Send(domain.Answer{TargetUserID: s.remote, SDP: payload}); err != nil {
		s.negotiationFailed(fmt.Errorf("send answer: %w", err))
		return
	}
	s.fire(negotiation.DescriptionSent, "")
}

func (s *Session) acceptAnswer(m domain.Relayed) {
	if s.State() != negotiation.Negotiating || s.pc == nil || s.remoteSet || m.FromUserID != s.remote {
		s.log.Warn().Str("from", m.FromUserID.String()).Msg("Unexpected answer dropped")
		return
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(m.Payload, &answer); err != nil {
		s.negotiationFailed(fmt.Errorf("decode answer: %w", err))
		return
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		s.negotiationFailed(fmt.Errorf("set remote answer: %w", err))
		return
	}
	s.remoteSet = true
	s.flushCandidates()
}

func (s *Session) remoteCandidate(m domain.Relayed) {
	if s.remote != "" && m.FromUserID != s.remote {
		s.log.Debug().Str("from", m.FromUserID.String()).Msg("Candidate from unknown peer dropped")
		return
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(m.Payload, &init); err != nil {
		s.log.Warn().Err(err).Msg("Malformed remote candidate dropped")
		return
	}
	if s.pc == nil || !s.remoteSet {
		s.pending = append(s.pending, pendingCandidate{from: m.FromUserID, init: init})
		return
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		s.log.Warn().Err(err).Msg("Failed to add remote candidate")
	}
}

func (s *Session) flushCandidates() {
	pending := s.pending
	s.pending = nil
	for _, p := range pending {
		if p.from != s.remote {
			continue
		}
		if err := s.pc.AddICECandidate(p.init); err != nil {
			s.log.Warn().Err(err).Msg("Failed to add buffered candidate")
		}
	}
	if len(pending) > 0 {
		s.log.Debug().Int("count", len(pending)).Msg("Buffered candidates flushed")
	}
}

func (s *Session) onLocalCandidate(ev localCandidate) {
	if ev.gen != s.gen || s.remote == "" || s.link == nil {
		return
	}
	payload, err := json.Marshal(ev.init)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode local candidate")
		return
	}
	if err := s.link.Send(domain.ICECandidate{TargetUserID: s.remote, Candidate: payload}); err != nil {
		s.log.Debug().Err(err).Msg("Failed to send local candidate")
	}
}

func (s *Session) onPeerState(ev peerState) {
	if ev.gen != s.gen {
		return
	}
	switch ev.state {
	case webrtc.PeerConnectionStateConnected:
		s.fire(negotiation.TransportConnected, "")
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		if !s.fire(negotiation.TransportLost, StatusPeerConnection) {
			return
		}
		// Without a relay no peer or offer can ever arrive, so there is
		// nothing left to wait for.
		if s.link == nil && negotiation.Waiting(s.State()) {
			s.fire(negotiation.RelayFailed, StatusRelayLost)
			s.resetPeer("")
			s.remote = ""
		}
	}
}

func stopTracks(tracks []LocalTrack) {
	for _, t := range tracks {
		t.Stop()
	}
}

// shutdown leaves the room, closes the peer connection, stops local
// tracks and releases session state. Every step runs even if an earlier
// one failed.
func (s *Session) shutdown(status string) {
	s.endOnce.Do(func() {
		var errs []error

		if s.link != nil {
			if err := s.link.Send(domain.Leave{}); err != nil {
				errs = append(errs, fmt.Errorf("leave: %w", err))
			}
		}

		if s.pc != nil {
			if err := s.pc.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close peer connection: %w", err))
			}
		}

		s.mu.Lock()
		tracks := s.tracks
		s.tracks = nil
		s.mu.Unlock()
		stopTracks(tracks)

		if s.link != nil {
			if err := s.link.Close(); err != nil {
				s.log.Debug().Err(err).Msg("Error closing relay link")
			}
		}
		s.link = nil
		s.pc = nil
		s.gen++
		s.remote = ""
		s.remoteSet = false
		s.pending = nil
		s.cleanupErr = errors.Join(errs...)
		for _, err := range errs {
			s.log.Warn().Err(err).Msg("Cleanup step failed")
		}

		s.fire(negotiation.End, status)
		close(s.done)
	})
}

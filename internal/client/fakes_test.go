package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

// journal records cleanup and negotiation steps across fakes in order.
type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) add(step string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, step)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string{}, j.steps...)
}

type fakeTrack struct {
	kind    MediaKind
	j       *journal
	enabled atomic.Bool
	stopped atomic.Bool
}

func (t *fakeTrack) Kind() MediaKind               { return t.kind }
func (t *fakeTrack) Enabled() bool                 { return t.enabled.Load() }
func (t *fakeTrack) SetEnabled(on bool)            { t.enabled.Store(on) }
func (t *fakeTrack) TrackLocal() webrtc.TrackLocal { return nil }
func (t *fakeTrack) Stop() {
	t.stopped.Store(true)
	t.j.add("stop " + string(t.kind))
}

type fakeDevices struct {
	j      *journal
	err    error
	tracks []*fakeTrack
}

func (d *fakeDevices) Acquire(ctx context.Context) ([]LocalTrack, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.tracks = []*fakeTrack{{kind: KindAudio, j: d.j}, {kind: KindVideo, j: d.j}}
	d.tracks[0].enabled.Store(true)
	d.tracks[1].enabled.Store(true)
	return []LocalTrack{d.tracks[0], d.tracks[1]}, nil
}

type fakePeer struct {
	j        *journal
	closeErr error

	mu          sync.Mutex
	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	remote      *webrtc.SessionDescription
	added       []string
	closed      bool
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.j.add("create offer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	p.j.add("create answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (p *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.j.add("set local " + desc.Type.String())
	return nil
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = &desc
	p.j.add("set remote " + desc.Type.String())
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.added = append(p.added, c.Candidate)
	p.j.add("add candidate " + c.Candidate)
	return nil
}

func (p *fakePeer) AddTrack(t LocalTrack) error { return nil }

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = fn
}

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.j.add("close peer")
	return p.closeErr
}

func (p *fakePeer) emitCandidate(c string) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	fn(webrtc.ICECandidateInit{Candidate: c})
}

func (p *fakePeer) emitState(st webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	fn(st)
}

func (p *fakePeer) candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.added...)
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakePeers struct {
	j        *journal
	closeErr error

	mu    sync.Mutex
	peers []*fakePeer
}

func (f *fakePeers) factory() (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{j: f.j, closeErr: f.closeErr}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakePeers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *fakePeers) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type fakeLink struct {
	j       *journal
	sendErr func(domain.Inbound) error

	inbox  chan domain.Outbound
	closed chan error
	once   sync.Once

	mu   sync.Mutex
	sent []domain.Inbound
}

func newFakeLink(j *journal) *fakeLink {
	return &fakeLink{
		j:      j,
		inbox:  make(chan domain.Outbound, 16),
		closed: make(chan error, 2),
	}
}

func (l *fakeLink) Send(msg domain.Inbound) error {
	if msg.Type() == domain.SignalLeave {
		l.j.add("leave")
	}
	if l.sendErr != nil {
		if err := l.sendErr(msg); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, msg)
	return nil
}

func (l *fakeLink) Read() (domain.Outbound, error) {
	select {
	case msg := <-l.inbox:
		return msg, nil
	case err := <-l.closed:
		return nil, err
	}
}

// drop simulates the relay closing the transport with err.
func (l *fakeLink) drop(err error) {
	l.closed <- err
}

func (l *fakeLink) Close() error {
	l.once.Do(func() {
		l.j.add("close relay")
		select {
		case l.closed <- domain.ErrTransport:
		default:
		}
	})
	return nil
}

func (l *fakeLink) messages() []domain.Inbound {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Inbound{}, l.sent...)
}

type fakeDialer struct {
	link *fakeLink
	err  error
}

func (d *fakeDialer) Dial(ctx context.Context) (RelayLink, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.link, nil
}

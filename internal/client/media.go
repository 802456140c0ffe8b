package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

var errTrackStopped = errors.New("track stopped")

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SampleTrack is a LocalTrack fed with encoded samples.
type SampleTrack struct {
	kind    MediaKind
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	samples atomic.Uint64

	stopOnce sync.Once
	done     chan struct{}
}

func NewSampleTrack(kind MediaKind, streamID string) (*SampleTrack, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == KindVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	local, err := webrtc.NewTrackLocalStaticSample(codec, string(kind), streamID)
	if err != nil {
		return nil, err
	}
	t := &SampleTrack{kind: kind, local: local, done: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *SampleTrack) Kind() MediaKind               { return t.kind }
func (t *SampleTrack) Enabled() bool                 { return t.enabled.Load() }
func (t *SampleTrack) SetEnabled(on bool)            { t.enabled.Store(on) }
func (t *SampleTrack) TrackLocal() webrtc.TrackLocal { return t.local }

// Samples counts the samples forwarded so far.
func (t *SampleTrack) Samples() uint64 { return t.samples.Load() }

func (t *SampleTrack) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Done is closed once the track is stopped.
func (t *SampleTrack) Done() <-chan struct{} { return t.done }

func (t *SampleTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// WriteSample forwards s unless the track is disabled, in which case the
// sample is discarded.
func (t *SampleTrack) WriteSample(s media.Sample) error {
	if t.Stopped() {
		return errTrackStopped
	}
	if !t.enabled.Load() {
		return nil
	}
	if err := t.local.WriteSample(s); err != nil {
		return err
	}
	t.samples.Add(1)
	return nil
}

// SyntheticDevices stands in for a camera and microphone on headless
// hosts. Access is always granted. The audio pump runs until the track is
// stopped; ctx only bounds acquisition.
type SyntheticDevices struct{}

func (SyntheticDevices) Acquire(ctx context.Context) ([]LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	streamID := "safemeet-" + uuid.NewString()
	audio, err := NewSampleTrack(KindAudio, streamID)
	if err != nil {
		return nil, err
	}
	video, err := NewSampleTrack(KindVideo, streamID)
	if err != nil {
		return nil, err
	}
	go Pump(audio, opusSilence, 20*time.Millisecond)
	return []LocalTrack{audio, video}, nil
}

// Pump writes frame to t every interval until t is stopped.
func Pump(t *SampleTrack, frame []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
			if err := t.WriteSample(media.Sample{Data: frame, Duration: interval}); err != nil {
				return
			}
		}
	}
}

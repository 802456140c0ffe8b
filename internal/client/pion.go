package client

import (
	"github.com/pion/transport/v4"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultSTUNServers is used when the configuration names none.
var DefaultSTUNServers = []string{"stun:stun.l.google.com:19302"}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

// PionOption adjusts the setting engine shared by every peer connection a
// factory builds.
type PionOption func(*webrtc.SettingEngine)

// WithNet routes ICE traffic through n instead of the host network.
func WithNet(n transport.Net) PionOption {
	return func(se *webrtc.SettingEngine) {
		se.SetNet(n)
	}
}

// NewPionPeerFactory builds peer connections that gather candidates
// through the given STUN servers. With no servers only host candidates
// are gathered.
func NewPionPeerFactory(stunServers []string, opts ...PionOption) PeerFactory {
	se := webrtc.SettingEngine{LoggerFactory: zerologFactory{base: log.Logger}}
	for _, opt := range opts {
		opt(&se)
	}

	cfg := webrtc.Configuration{}
	if len(stunServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}

	return func() (PeerConnection, error) {
		me := &webrtc.MediaEngine{}
		if err := me.RegisterDefaultCodecs(); err != nil {
			return nil, err
		}
		api := webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(me))
		pc, err := api.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		return &pionPeer{pc: pc}, nil
	}
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *pionPeer) AddTrack(t LocalTrack) error {
	sender, err := p.pc.AddTrack(t.TrackLocal())
	if err != nil {
		return err
	}
	// RTCP has to be drained for interceptors like NACK to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *pionPeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Debug().Str("state", st.String()).Msg("Peer connection state has changed")
		fn(st)
	})
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

// Package rtc provides the pion/webrtc backed peers and local media used
// by call endpoints running in Go.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/okian/vigil/internal/domain/call"
	"github.com/okian/vigil/pkg/logger"
)

// Factory creates pion peer connections. It implements call.PeerFactory
// and is shared by every endpoint in the process.
type Factory struct {
	api     *webrtc.API
	servers []webrtc.ICEServer
	logger  logger.Logger
}

// NewFactory returns a Factory using servers for ICE.
func NewFactory(servers []webrtc.ICEServer, opts ...Option) *Factory {
	f := &Factory{servers: servers, logger: logger.Nop()}
	settings := webrtc.SettingEngine{}
	for _, opt := range opts {
		opt(f, &settings)
	}
	f.api = webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	f.logger = f.logger.Named("rtc")
	return f
}

// NewPeer implements call.PeerFactory.
func (f *Factory) NewPeer(ctx context.Context, cfg call.PeerConfig) (call.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{ICEServers: f.servers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	p := &Peer{pc: pc, logger: f.logger, remote: newRemoteStreams()}

	if err := p.addMedia(cfg); err != nil {
		_ = pc.Close()
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || cfg.OnICECandidate == nil {
			return
		}
		cfg.OnICECandidate(c.ToJSON())
	})
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if cfg.OnRemoteStream == nil {
			return
		}
		want := announcedTracks(pc.RemoteDescription(), remote.StreamID())
		if s, ok := p.remote.add(remote.StreamID(), newRemoteTrack(remote), want); ok {
			cfg.OnRemoteStream(s)
		}
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		if cfg.OnStateChange == nil {
			return
		}
		if mapped, ok := mapState(st); ok {
			cfg.OnStateChange(mapped)
		}
	})
	return p, nil
}

// Peer wraps a pion PeerConnection as a call.Peer.
type Peer struct {
	pc     *webrtc.PeerConnection
	logger logger.Logger
	remote *remoteStreams

	closeOnce sync.Once
	closeErr  error
}

func (p *Peer) addMedia(cfg call.PeerConfig) error {
	sent := map[call.TrackKind]bool{}
	if cfg.Local != nil {
		for _, t := range cfg.Local.Tracks {
			lt, ok := t.(*LocalTrack)
			if !ok {
				continue
			}
			if _, err := p.pc.AddTrack(lt.sample); err != nil {
				return fmt.Errorf("add %s track: %w", lt.Kind(), err)
			}
			sent[lt.Kind()] = true
		}
	}

	// Receive what the channel carries even when nothing is sent.
	want := []call.TrackKind{call.TrackAudio, call.TrackVideo}
	if cfg.Channel == call.ChannelScreen {
		want = []call.TrackKind{call.TrackVideo}
	}
	for _, k := range want {
		if sent[k] {
			continue
		}
		init := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}
		if _, err := p.pc.AddTransceiverFromKind(codecType(k), init); err != nil {
			return fmt.Errorf("add %s transceiver: %w", k, err)
		}
	}
	return nil
}

// CreateOffer implements call.Peer.
func (p *Peer) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local offer: %w", err)
	}
	return offer, nil
}

// CreateAnswer implements call.Peer.
func (p *Peer) CreateAnswer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local answer: %w", err)
	}
	return answer, nil
}

// SetAnswer implements call.Peer.
func (p *Peer) SetAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

// AddICECandidate implements call.Peer.
func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Close implements call.Peer. Extra calls return the first result.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.pc.Close()
	})
	return p.closeErr
}

func mapState(st webrtc.PeerConnectionState) (call.PeerState, bool) {
	switch st {
	case webrtc.PeerConnectionStateConnected:
		return call.PeerConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return call.PeerDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return call.PeerFailed, true
	case webrtc.PeerConnectionStateClosed:
		return call.PeerClosed, true
	default:
		return "", false
	}
}

func codecType(k call.TrackKind) webrtc.RTPCodecType {
	if k == call.TrackAudio {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

// Package rtc lets a browser act as the translator's microphone and speaker
// over WebRTC. The browser posts an SDP offer; its Opus track is decoded
// into a Microphone and the Speaker's output is encoded onto a local track.
package rtc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

// ErrNoPeer is returned by the factories before a browser has connected.
var ErrNoPeer = errors.New("rtc: no browser connected")

// Bridge holds the current browser peer. A new offer replaces it.
type Bridge struct {
	config webrtc.Configuration
	logger *slog.Logger

	mu   sync.Mutex
	peer *Peer
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithICEServers sets STUN/TURN server URLs.
func WithICEServers(urls ...string) Option {
	return func(b *Bridge) {
		if len(urls) > 0 {
			b.config.ICEServers = append(b.config.ICEServers, webrtc.ICEServer{URLs: urls})
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// NewBridge creates a Bridge with no peer.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Offer answers a browser's SDP offer. Any previous peer is closed.
func (b *Bridge) Offer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	peer, answer, err := newPeer(ctx, b.config, offer, b.logger)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	b.mu.Lock()
	old := b.peer
	b.peer = peer
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
	b.logger.Info("browser peer connected", "peer_id", peer.id)
	return answer, nil
}

func (b *Bridge) current() *Peer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peer
}

// Microphone is an audioio.SourceFactory backed by the browser's track.
func (b *Bridge) Microphone(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
	p := b.current()
	if p == nil {
		return nil, ErrNoPeer
	}
	if logger == nil {
		logger = b.logger
	}
	mic := newMicrophone(cfg, logger)
	p.attach(mic)
	return mic, nil
}

// Speaker is an audioio.SinkFactory that plays to the browser.
func (b *Bridge) Speaker(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
	p := b.current()
	if p == nil {
		return nil, ErrNoPeer
	}
	if logger == nil {
		logger = b.logger
	}
	return newSpeaker(cfg, p.track, logger), nil
}

// Connected reports whether a browser peer is attached.
func (b *Bridge) Connected() bool {
	return b.current() != nil
}

// Stats returns the current peer's counters. ok is false without a peer.
func (b *Bridge) Stats() (stats PeerStats, ok bool) {
	p := b.current()
	if p == nil {
		return PeerStats{}, false
	}
	return p.Stats(), true
}

// Close closes the current peer.
func (b *Bridge) Close() error {
	b.mu.Lock()
	p := b.peer
	b.peer = nil
	b.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Close()
}

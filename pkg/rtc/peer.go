package rtc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

type decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

type encoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// maxOpusSamples is 120ms at 48kHz, the longest Opus packet.
const maxOpusSamples = 5760

// Peer is one browser connection: its audio track feeds the attached
// Microphone and its local track carries the Speaker's output.
type Peer struct {
	id     string
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	logger *slog.Logger

	newDecoder func(sampleRate, channels int) (decoder, error)

	mu    sync.Mutex
	mic   *Microphone
	state webrtc.PeerConnectionState

	group     errgroup.Group
	closeOnce sync.Once

	packets      atomic.Int64
	lost         atomic.Int64
	decodeErrors atomic.Int64
}

// PeerStats counts inbound audio packets.
type PeerStats struct {
	Packets      int64  `json:"packets"`
	Lost         int64  `json:"lost"`
	DecodeErrors int64  `json:"decode_errors"`
	State        string `json:"state"`
}

// newPeer answers offer and waits for ICE gathering so the answer carries
// every candidate.
func newPeer(ctx context.Context, config webrtc.Configuration, offer webrtc.SessionDescription, logger *slog.Logger) (*Peer, webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, webrtc.SessionDescription{}, fmt.Errorf("failed to create peer connection: %w", err)
	}

	id := uuid.NewString()
	p := &Peer{
		id:         id,
		pc:         pc,
		logger:     logger.With("peer_id", id),
		newDecoder: newDecoder,
		state:      webrtc.PeerConnectionStateNew,
	}

	answer, err := p.negotiate(ctx, offer)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, err
	}
	return p, answer, nil
}

func (p *Peer) negotiate(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	var empty webrtc.SessionDescription

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusRate, Channels: 2},
		"audio", "livetranslate",
	)
	if err != nil {
		return empty, fmt.Errorf("failed to create audio track: %w", err)
	}
	p.track = track

	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return empty, fmt.Errorf("failed to add audio track: %w", err)
	}

	// Drain RTCP so the interceptors keep working.
	p.group.Go(func() error {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return nil
			}
		}
	})

	p.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		p.logger.Info("browser audio track", "codec", remote.Codec().MimeType)

		dec, err := p.newDecoder(opusRate, 1)
		if err != nil {
			p.logger.Error("failed to create opus decoder", "error", err)
			return
		}
		p.group.Go(func() error {
			return p.readTrack(func() (*rtp.Packet, error) {
				pkt, _, err := remote.ReadRTP()
				return pkt, err
			}, dec)
		})
	})

	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.mu.Lock()
		p.state = state
		p.mu.Unlock()
		p.logger.Info("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			p.pc.Close()
		}
	})

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return empty, fmt.Errorf("invalid offer: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return empty, fmt.Errorf("failed to create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return empty, fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return empty, ctx.Err()
	}
	return *p.pc.LocalDescription(), nil
}

// readTrack decodes packets until read fails.
func (p *Peer) readTrack(read func() (*rtp.Packet, error), dec decoder) error {
	var seq sequence
	pcm := make([]int16, maxOpusSamples)

	for {
		pkt, err := read()
		if err != nil {
			p.logger.Debug("browser audio track ended", "error", err)
			return nil
		}

		missing := seq.observe(pkt)
		if missing < 0 {
			continue
		}
		p.packets.Add(1)
		p.lost.Add(int64(missing))

		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			if p.decodeErrors.Add(1) <= 5 {
				p.logger.Warn("opus decode failed", "error", err, "payload_bytes", len(pkt.Payload))
			}
			continue
		}

		samples := make([]float32, n)
		for i := range samples {
			samples[i] = audioio.Int16ToFloat(pcm[i])
		}
		p.deliver(samples)
	}
}

func (p *Peer) deliver(samples []float32) {
	p.mu.Lock()
	mic := p.mic
	p.mu.Unlock()
	if mic != nil {
		mic.push(samples, opusRate)
	}
}

func (p *Peer) attach(mic *Microphone) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mic = mic
}

// Stats returns packet counters and the connection state.
func (p *Peer) Stats() PeerStats {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	return PeerStats{
		Packets:      p.packets.Load(),
		Lost:         p.lost.Load(),
		DecodeErrors: p.decodeErrors.Load(),
		State:        state.String(),
	}
}

// Close closes the peer connection and waits for its readers.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.pc.Close()
		p.group.Wait()
	})
	return err
}

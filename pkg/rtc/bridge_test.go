package rtc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

func browserOffer(t *testing.T) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection failed: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		t.Fatalf("AddTransceiverFromKind failed: %v", err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription failed: %v", err)
	}
	<-gathered
	return pc, *pc.LocalDescription()
}

func TestBridge_FactoriesWithoutPeer(t *testing.T) {
	b := NewBridge()
	if b.Connected() {
		t.Error("Expected no peer")
	}
	if _, err := b.Microphone(micConfig(320), nil); !errors.Is(err, ErrNoPeer) {
		t.Errorf("Microphone: expected ErrNoPeer, got %v", err)
	}
	if _, err := b.Speaker(audioio.DefaultConfig(), nil); !errors.Is(err, ErrNoPeer) {
		t.Errorf("Speaker: expected ErrNoPeer, got %v", err)
	}
	if _, ok := b.Stats(); ok {
		t.Error("Expected no stats without a peer")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBridge_OfferAnswer(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	browser, offer := browserOffer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	answer, err := b.Offer(ctx, offer)
	if err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		t.Errorf("Expected answer, got %s", answer.Type)
	}
	if !strings.Contains(strings.ToLower(answer.SDP), "opus") {
		t.Error("Expected answer to negotiate opus")
	}
	if err := browser.SetRemoteDescription(answer); err != nil {
		t.Fatalf("browser rejected answer: %v", err)
	}

	if !b.Connected() {
		t.Fatal("Expected a peer after Offer")
	}
	src, err := b.Microphone(micConfig(320), nil)
	if err != nil {
		t.Fatalf("Microphone failed: %v", err)
	}
	defer src.Close()
	if src.Name() != "webrtc" {
		t.Errorf("Expected webrtc source, got %s", src.Name())
	}
	sink, err := b.Speaker(audioio.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Speaker failed: %v", err)
	}
	defer sink.Close()
	if sink.Config().SampleRate != opusRate {
		t.Errorf("Expected %d Hz sink, got %d", opusRate, sink.Config().SampleRate)
	}

	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if b.Connected() {
		t.Error("Expected no peer after Close")
	}
}

func TestBridge_InvalidOffer(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	_, err := b.Offer(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"})
	if err == nil {
		t.Fatal("Expected error for invalid offer")
	}
	if b.Connected() {
		t.Error("Expected no peer after a failed offer")
	}
}

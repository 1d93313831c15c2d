package playback

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

const rate = 24000

func segment(t *testing.T, ctx *audioio.Context, seconds float64) *audioio.Buffer {
	t.Helper()
	samples := make([]float32, int(seconds*rate))
	for i := range samples {
		samples[i] = 0.25
	}
	buf, err := ctx.NewBuffer([][]float32{samples}, rate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	return buf
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScheduler_BackToBack(t *testing.T) {
	ctx := audioio.NewContext(rate)
	s := NewScheduler(ctx)

	a, err := s.Enqueue(segment(t, ctx, 0.5))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	b, err := s.Enqueue(segment(t, ctx, 0.3))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if !near(a.Start(), 0) || !near(b.Start(), 0.5) {
		t.Errorf("Expected starts 0 and 0.5, got %f and %f", a.Start(), b.Start())
	}
	if !near(b.End(), 0.8) {
		t.Errorf("Expected second segment to end at 0.8, got %f", b.End())
	}
	if s.Active() != 2 {
		t.Errorf("Expected 2 active voices, got %d", s.Active())
	}

	ctx.Render(make([]float32, int(0.6*rate)))
	if s.Active() != 1 {
		t.Errorf("Expected first voice removed on end, got %d active", s.Active())
	}
	ctx.Render(make([]float32, int(0.3*rate)))
	if s.Active() != 0 {
		t.Errorf("Expected no active voices, got %d", s.Active())
	}
}

func TestScheduler_TimelineNeverBehindClock(t *testing.T) {
	ctx := audioio.NewContext(rate)
	s := NewScheduler(ctx)

	s.Enqueue(segment(t, ctx, 0.1))
	ctx.Render(make([]float32, rate)) // clock at 1.0, timeline at 0.1

	v, err := s.Enqueue(segment(t, ctx, 0.2))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !near(v.Start(), 1.0) {
		t.Errorf("Expected start at current time 1.0, got %f", v.Start())
	}
	w, err := s.Enqueue(segment(t, ctx, 0.1))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !near(w.Start(), 1.2) {
		t.Errorf("Expected following segment at 1.2, got %f", w.Start())
	}
}

func TestScheduler_NonDecreasingStarts(t *testing.T) {
	ctx := audioio.NewContext(rate)
	s := NewScheduler(ctx)

	last := -1.0
	for i := 0; i < 20; i++ {
		v, err := s.Enqueue(segment(t, ctx, 0.05+float64(i%3)*0.02))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if v.Start() < last || v.Start() < ctx.CurrentTime() {
			t.Fatalf("Segment %d starts at %f, previous %f, now %f", i, v.Start(), last, ctx.CurrentTime())
		}
		last = v.Start()
		if i%4 == 0 {
			ctx.Render(make([]float32, 1200))
		}
	}
}

func TestScheduler_Flush(t *testing.T) {
	ctx := audioio.NewContext(rate)
	s := NewScheduler(ctx)

	s.Enqueue(segment(t, ctx, 0.5))
	s.Enqueue(segment(t, ctx, 0.5))
	ctx.Render(make([]float32, int(0.2*rate)))

	if n := s.Flush(); n != 2 {
		t.Errorf("Expected 2 stopped, got %d", n)
	}
	if s.Active() != 0 {
		t.Errorf("Expected empty set, got %d active", s.Active())
	}
	if n := s.Flush(); n != 0 {
		t.Errorf("Expected second flush to be a no-op, got %d", n)
	}

	out := make([]float32, 100)
	ctx.Render(out)
	for _, v := range out {
		if v != 0 {
			t.Fatal("Expected silence after flush")
		}
	}

	v, _ := s.Enqueue(segment(t, ctx, 0.1))
	if !near(v.Start(), ctx.CurrentTime()) {
		t.Errorf("Expected post-flush segment to start now (%f), got %f", ctx.CurrentTime(), v.Start())
	}
	w, _ := s.Enqueue(segment(t, ctx, 0.1))
	if !near(w.Start(), v.End()) {
		t.Errorf("Expected timeline to resume after flush at %f, got %f", v.End(), w.Start())
	}
}

func TestScheduler_ClosedContext(t *testing.T) {
	ctx := audioio.NewContext(rate)
	s := NewScheduler(ctx)
	buf := segment(t, ctx, 0.1)
	s.Enqueue(buf)
	ctx.Close()
	s.Reset()

	if _, err := s.Enqueue(buf); !errors.Is(err, audioio.ErrContextClosed) {
		t.Errorf("Expected ErrContextClosed, got %v", err)
	}
	if s.Active() != 0 {
		t.Errorf("Expected no active voices, got %d", s.Active())
	}
}

func TestScheduler_NilContext(t *testing.T) {
	s := NewScheduler(nil)
	if _, err := s.Enqueue(nil); !errors.Is(err, ErrNoContext) {
		t.Errorf("Expected ErrNoContext, got %v", err)
	}
}

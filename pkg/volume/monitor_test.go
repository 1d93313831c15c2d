package volume

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fixedTap struct {
	value uint8
	bins  int
}

func (f *fixedTap) FrequencyBinCount() int { return f.bins }

func (f *fixedTap) ByteFrequencyData(dst []uint8) []uint8 {
	if cap(dst) < f.bins {
		dst = make([]uint8, f.bins)
	}
	dst = dst[:f.bins]
	for i := range dst {
		dst[i] = f.value
	}
	return dst
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name string
		bins []uint8
		want float64
	}{
		{"empty", nil, 0},
		{"silence", make([]uint8, 128), 0},
		{"full", []uint8{255, 255, 255}, 1},
		{"half", []uint8{0, 255}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Level(tt.bins); got != tt.want {
				t.Errorf("Level() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestLevel_Bounds(t *testing.T) {
	bins := make([]uint8, 128)
	for seed := 0; seed < 256; seed++ {
		for i := range bins {
			bins[i] = uint8((seed*31 + i*17) % 256)
		}
		if l := Level(bins); l < 0 || l > 1 {
			t.Fatalf("Level out of range: %f", l)
		}
	}
}

func TestMonitor_StepThrottles(t *testing.T) {
	var got []Snapshot
	m := New(&fixedTap{value: 255, bins: 128}, nil, func(s Snapshot) { got = append(got, s) })

	base := time.Unix(0, 0)
	// 16ms ticks over 200ms: emissions at 0, 64, 128, 192.
	for i := 0; i <= 12; i++ {
		m.step(base.Add(time.Duration(i) * 16 * time.Millisecond))
	}

	if len(got) != 4 {
		t.Fatalf("Expected 4 snapshots, got %d", len(got))
	}
	for _, s := range got {
		if s.Input != 1 || s.Output != 0 {
			t.Errorf("Unexpected snapshot %+v", s)
		}
	}
}

func TestMonitor_StepStopsWhenNotAlive(t *testing.T) {
	alive := true
	emitted := 0
	m := New(nil, nil, func(Snapshot) { emitted++ }, WithAlive(func() bool { return alive }))

	if !m.step(time.Unix(1, 0)) {
		t.Fatal("Expected step to continue while alive")
	}
	alive = false
	if m.step(time.Unix(2, 0)) {
		t.Fatal("Expected step to stop when not alive")
	}
	if emitted != 1 {
		t.Errorf("Expected 1 emission, got %d", emitted)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot
	m := New(&fixedTap{value: 51, bins: 128}, &fixedTap{value: 102, bins: 128}, func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}, WithFrameInterval(2*time.Millisecond), WithMinInterval(5*time.Millisecond))

	m.Start(context.Background())
	m.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(snaps)
		mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected snapshots, got %d", n)
		}
		time.Sleep(time.Millisecond)
	}

	m.Stop()
	m.Stop()

	mu.Lock()
	n := len(snaps)
	first := snaps[0]
	mu.Unlock()
	if first.Input != 0.2 || first.Output != 0.4 {
		t.Errorf("Unexpected snapshot %+v", first)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(snaps) != n {
		t.Error("Snapshot emitted after Stop")
	}
}

func TestMonitor_ExitsWhenNotAlive(t *testing.T) {
	m := New(nil, nil, nil, WithFrameInterval(time.Millisecond), WithAlive(func() bool { return false }))
	m.Start(context.Background())

	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit")
	}
	m.Stop()
}

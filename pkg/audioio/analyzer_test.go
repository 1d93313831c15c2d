package audioio

import (
	"math"
	"testing"
)

func sine(n int, freq, rate float64, amp float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return s
}

func maxByte(b []uint8) uint8 {
	var m uint8
	for _, v := range b {
		if v > m {
			m = v
		}
	}
	return m
}

func TestNewAnalyzer_Sizes(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{256, 256},
		{2048, 2048},
		{0, DefaultFFTSize},
		{100, DefaultFFTSize},
		{16, DefaultFFTSize},
	}

	for _, tt := range tests {
		a := NewAnalyzer(tt.in)
		if a.FFTSize() != tt.want {
			t.Errorf("NewAnalyzer(%d).FFTSize() = %d, want %d", tt.in, a.FFTSize(), tt.want)
		}
		if a.FrequencyBinCount() != tt.want/2 {
			t.Errorf("FrequencyBinCount = %d, want %d", a.FrequencyBinCount(), tt.want/2)
		}
	}
}

func TestAnalyzer_Silence(t *testing.T) {
	a := NewAnalyzer(256)
	a.Write(make([]float32, 256))
	bins := a.ByteFrequencyData(nil)
	if len(bins) != 128 {
		t.Fatalf("Expected 128 bins, got %d", len(bins))
	}
	if m := maxByte(bins); m != 0 {
		t.Errorf("Expected all-zero bins for silence, got max %d", m)
	}
}

func TestAnalyzer_ToneLandsInItsBin(t *testing.T) {
	const rate = 16000.0
	a := NewAnalyzer(256)
	// Bin width is 62.5Hz; 2000Hz is bin 32.
	a.Write(sine(256, 2000, rate, 0.9))

	var bins []uint8
	for i := 0; i < 30; i++ {
		bins = a.ByteFrequencyData(bins)
	}

	peak := 0
	for i, v := range bins {
		if v > bins[peak] {
			peak = i
		}
	}
	if peak < 31 || peak > 33 {
		t.Errorf("Expected peak near bin 32, got %d", peak)
	}
	if bins[peak] < 200 {
		t.Errorf("Expected a loud peak, got %d", bins[peak])
	}
}

func TestAnalyzer_SmoothingDecays(t *testing.T) {
	a := NewAnalyzer(256)
	// Quiet enough that the peak stays below the byte ceiling.
	a.Write(sine(256, 1000, 16000, 0.02))
	var bins []uint8
	for i := 0; i < 30; i++ {
		bins = a.ByteFrequencyData(bins)
	}
	loud := maxByte(bins)

	a.Write(make([]float32, 256))
	bins = a.ByteFrequencyData(bins)
	after := maxByte(bins)
	if after == 0 || after >= loud {
		t.Errorf("Expected smoothed decay below %d but above 0, got %d", loud, after)
	}

	a.Reset()
	if m := maxByte(a.ByteFrequencyData(bins)); m != 0 {
		t.Errorf("Expected zero after Reset, got %d", m)
	}
}

func TestAnalyzer_ReusesDestination(t *testing.T) {
	a := NewAnalyzer(256)
	dst := make([]uint8, 0, 256)
	out := a.ByteFrequencyData(dst)
	if len(out) != 128 || &out[0] != &dst[:1][0] {
		t.Error("Expected destination slice to be reused")
	}
}

package audioio

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyzer defaults, matching a browser AnalyserNode.
const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
	minAnalyzerFFTSize = 32
	maxAnalyzerFFTSize = 32768
)

// Analyzer is a frequency-domain tap. Audio written to it is kept in a
// sliding window of FFTSize samples; ByteFrequencyData returns the smoothed
// magnitude spectrum of that window scaled to bytes.
type Analyzer struct {
	fftSize   int
	smoothing float64
	minDB     float64
	maxDB     float64

	fft    *fourier.FFT
	window []float64

	mu       sync.Mutex
	ring     []float32
	pos      int
	seq      []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyzer returns an Analyzer with the given FFT size. Sizes that are not
// a power of two in [32, 32768] fall back to DefaultFFTSize.
func NewAnalyzer(fftSize int) *Analyzer {
	if fftSize < minAnalyzerFFTSize || fftSize > maxAnalyzerFFTSize || fftSize&(fftSize-1) != 0 {
		fftSize = DefaultFFTSize
	}
	ones := make([]float64, fftSize)
	for i := range ones {
		ones[i] = 1
	}
	return &Analyzer{
		fftSize:   fftSize,
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDecibels,
		maxDB:     DefaultMaxDecibels,
		fft:       fourier.NewFFT(fftSize),
		window:    window.Blackman(ones),
		ring:      make([]float32, fftSize),
		seq:       make([]float64, fftSize),
		coeffs:    make([]complex128, fftSize/2+1),
		smoothed:  make([]float64, fftSize/2),
	}
}

// FFTSize returns the analysis window length.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// FrequencyBinCount returns FFTSize/2.
func (a *Analyzer) FrequencyBinCount() int { return a.fftSize / 2 }

// Write appends samples to the analysis window.
func (a *Analyzer) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(samples) >= a.fftSize {
		copy(a.ring, samples[len(samples)-a.fftSize:])
		a.pos = 0
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.fftSize
	}
}

// ByteFrequencyData computes the current spectrum into dst, which is grown to
// FrequencyBinCount if needed, and returns it. Each byte maps the bin's
// smoothed level linearly from [minDecibels, maxDecibels] to [0, 255].
func (a *Analyzer) ByteFrequencyData(dst []uint8) []uint8 {
	bins := a.FrequencyBinCount()
	if cap(dst) < bins {
		dst = make([]uint8, bins)
	}
	dst = dst[:bins]

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < a.fftSize; i++ {
		a.seq[i] = float64(a.ring[(a.pos+i)%a.fftSize]) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	scale := 1 / float64(a.fftSize)
	rangeDB := a.maxDB - a.minDB
	for k := 0; k < bins; k++ {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := 255 * (db - a.minDB) / rangeDB
		switch {
		case v <= 0 || math.IsNaN(v):
			dst[k] = 0
		case v >= 255:
			dst[k] = 255
		default:
			dst[k] = uint8(v)
		}
	}
	return dst
}

// Reset clears the analysis window and smoothing history.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

package pcm

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

func TestEncode_MIMEType(t *testing.T) {
	blob := Encode([]float32{0}, 16000)
	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("Expected audio/pcm;rate=16000, got %s", blob.MIMEType)
	}
}

func TestEncode_Clamps(t *testing.T) {
	blob := Encode([]float32{2, -2}, 16000)
	raw, err := Decode(blob.Data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := audioio.PCM16ToFloat(raw)
	if got[0] < 0.9999 || got[1] != -1 {
		t.Errorf("Expected clamped full scale, got %v", got)
	}
}

func TestRoundTrip(t *testing.T) {
	sweep := make([]float32, 4096)
	for i := range sweep {
		f := 100 + 3900*float64(i)/float64(len(sweep))
		sweep[i] = float32(0.9 * math.Sin(2*math.Pi*f*float64(i)/16000))
	}

	tests := []struct {
		name    string
		samples []float32
	}{
		{"silence", make([]float32, 4096)},
		{"full scale", []float32{1, -1, 1, -1}},
		{"sine sweep", sweep},
	}

	const tolerance = 1.0 / 16384
	ctx := audioio.NewContext(16000)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := Encode(tt.samples, 16000)
			raw, err := Decode(blob.Data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			buf, err := DecodeAudioData(raw, ctx, ParseRate(blob.MIMEType), 1)
			if err != nil {
				t.Fatalf("DecodeAudioData failed: %v", err)
			}
			got := buf.ChannelData(0)
			if len(got) != len(tt.samples) {
				t.Fatalf("Expected %d samples, got %d", len(tt.samples), len(got))
			}
			for i, s := range tt.samples {
				if d := math.Abs(float64(got[i] - s)); d > tolerance {
					t.Fatalf("Sample %d: %f vs %f (diff %g)", i, got[i], s, d)
				}
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode("not base64!!"); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDecodeAudioData_Invalid(t *testing.T) {
	ctx := audioio.NewContext(24000)

	tests := []struct {
		name     string
		raw      []byte
		channels int
	}{
		{"empty", nil, 1},
		{"odd length", []byte{1, 2, 3}, 1},
		{"partial stereo frame", []byte{1, 2, 3, 4, 5, 6}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeAudioData(tt.raw, ctx, 24000, tt.channels); !errors.Is(err, ErrDecode) {
				t.Errorf("Expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestDecodeAudioData_Stereo(t *testing.T) {
	ctx := audioio.NewContext(24000)
	raw := audioio.FloatToPCM16([]float32{0.5, -0.5, 0.25, -0.25})
	buf, err := DecodeAudioData(raw, ctx, 24000, 2)
	if err != nil {
		t.Fatalf("DecodeAudioData failed: %v", err)
	}
	if buf.NumberOfChannels() != 2 || buf.Length() != 2 {
		t.Fatalf("Unexpected shape: %d ch, %d frames", buf.NumberOfChannels(), buf.Length())
	}
	if buf.ChannelData(1)[0] != -0.5 {
		t.Errorf("Expected right channel -0.5, got %f", buf.ChannelData(1)[0])
	}
}

func TestDecodeAudioData_Duration(t *testing.T) {
	ctx := audioio.NewContext(24000)
	buf, err := DecodeAudioData(make([]byte, 24000), ctx, 24000, 1)
	if err != nil {
		t.Fatalf("DecodeAudioData failed: %v", err)
	}
	if buf.Duration() != 0.5 {
		t.Errorf("Expected 0.5s, got %f", buf.Duration())
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"AUDIO/PCM;RATE=8000", 8000},
		{"audio/pcm", 0},
		{"audio/opus;rate=48000", 0},
		{"audio/pcm;rate=abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := ParseRate(tt.mime); got != tt.want {
				t.Errorf("ParseRate(%q) = %d, want %d", tt.mime, got, tt.want)
			}
		})
	}
}

// Package pcm converts between normalized float samples and the wire format
// used by Gemini Live: 16-bit little-endian PCM, base64 encoded, labelled
// with an "audio/pcm;rate=N" MIME type.
package pcm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

// ErrDecode is returned for malformed base64 or PCM payloads.
var ErrDecode = errors.New("pcm: decode failed")

const mimePrefix = "audio/pcm"

// Blob is an encoded audio payload ready for transmission.
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// MIMEType returns the PCM MIME type for rate.
func MIMEType(rate int) string {
	return mimePrefix + ";rate=" + strconv.Itoa(rate)
}

// ParseRate extracts the rate parameter from a PCM MIME type.
// It returns 0 if the type is not PCM or carries no rate.
func ParseRate(mime string) int {
	base, params, _ := strings.Cut(mime, ";")
	if !strings.EqualFold(strings.TrimSpace(base), mimePrefix) {
		return 0
	}
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(k, "rate") {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return 0
}

// Encode clamps samples to [-1, 1], converts them to 16-bit little-endian
// PCM and returns the base64 payload labelled with sampleRate.
func Encode(samples []float32, sampleRate int) Blob {
	return Blob{
		Data:     base64.StdEncoding.EncodeToString(audioio.FloatToPCM16(samples)),
		MIMEType: MIMEType(sampleRate),
	}
}

// Decode returns the raw bytes of a base64 payload.
func Decode(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return raw, nil
}

// DecodeAudioData interprets raw as interleaved 16-bit little-endian PCM with
// the given channel count and returns a Buffer bound to ctx.
func DecodeAudioData(raw []byte, ctx *audioio.Context, sampleRate, channels int) (*audioio.Buffer, error) {
	if channels <= 0 {
		channels = 1
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if len(raw)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrDecode, len(raw), channels)
	}

	samples := audioio.PCM16ToFloat(raw)
	frames := len(samples) / channels
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			data[ch][i] = samples[i*channels+ch]
		}
	}
	return ctx.NewBuffer(data, sampleRate)
}

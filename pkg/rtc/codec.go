//go:build cgo

package rtc

import (
	"gopkg.in/hraban/opus.v2"
)

// OpusAvailable reports whether this build can encode and decode Opus.
func OpusAvailable() bool { return true }

type opusDecoder struct {
	dec *opus.Decoder
}

func newDecoder(sampleRate, channels int) (decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) Decode(data []byte, pcm []int16) (int, error) {
	return d.dec.Decode(data, pcm)
}

type opusEncoder struct {
	enc *opus.Encoder
}

func newEncoder(sampleRate, channels int) (encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) Encode(pcm []int16, data []byte) (int, error) {
	return e.enc.Encode(pcm, data)
}

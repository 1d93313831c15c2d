//go:build !cgo

package rtc

import "errors"

// OpusAvailable reports whether this build can encode and decode Opus.
func OpusAvailable() bool { return false }

var errNoOpus = errors.New("rtc: opus requires cgo")

func newDecoder(_, _ int) (decoder, error) { return nil, errNoOpus }

func newEncoder(_, _ int) (encoder, error) { return nil, errNoOpus }

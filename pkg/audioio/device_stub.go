//go:build !cgo

package audioio

import (
	"errors"
	"log/slog"
)

const deviceAvailable = false

var errNoDevice = errors.New("device backend requires cgo (miniaudio)")

func newDeviceSource(_ Config, _ *slog.Logger) (Source, error) {
	return nil, errNoDevice
}

func newDeviceSink(_ Config, _ *slog.Logger) (Sink, error) {
	return nil, errNoDevice
}

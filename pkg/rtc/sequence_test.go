package rtc

import (
	"testing"

	"github.com/pion/rtp"
)

func TestSequence_Observe(t *testing.T) {
	tests := []struct {
		name string
		seqs []uint16
		want []int
	}{
		{"in order", []uint16{10, 11, 12}, []int{0, 0, 0}},
		{"gap", []uint16{10, 11, 14}, []int{0, 0, 2}},
		{"duplicate", []uint16{10, 10, 11}, []int{0, -1, 0}},
		{"late", []uint16{10, 12, 11, 13}, []int{0, 1, -1, 0}},
		{"wraps", []uint16{65534, 65535, 0, 2}, []int{0, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s sequence
			for i, seq := range tt.seqs {
				got := s.observe(&rtp.Packet{Header: rtp.Header{SequenceNumber: seq}})
				if got != tt.want[i] {
					t.Errorf("packet %d (seq %d): got %d, want %d", i, seq, got, tt.want[i])
				}
			}
		})
	}
}

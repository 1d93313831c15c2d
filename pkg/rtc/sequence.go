package rtc

import "github.com/pion/rtp"

// sequence tracks RTP sequence numbers to count lost packets.
type sequence struct {
	started bool
	last    uint16
}

// observe returns the number of packets missing before pkt. Late or
// duplicate packets report -1 and should be skipped.
func (s *sequence) observe(pkt *rtp.Packet) int {
	seq := pkt.SequenceNumber
	if !s.started {
		s.started = true
		s.last = seq
		return 0
	}
	delta := seq - s.last // wraps at 65536
	if delta == 0 || delta > 0x8000 {
		return -1
	}
	s.last = seq
	return int(delta) - 1
}

package realtime

import "sync/atomic"

// session is the state owned by one consumer goroutine. A fresh session per
// Start keeps samples from a previous stream out of the new one.
type session struct {
	id   string
	stop chan struct{}
	done chan struct{}

	analyzer  *analyzer
	smooth    smoother
	buffer    []float64
	bufferLen atomic.Int64
}

// append adds samples to the rolling buffer, keeping only the newest limit.
func (s *session) append(samples []float64, limit int) {
	s.buffer = append(s.buffer, samples...)
	if excess := len(s.buffer) - limit; excess > 0 {
		n := copy(s.buffer, s.buffer[excess:])
		s.buffer = s.buffer[:n]
	}
	s.bufferLen.Store(int64(len(s.buffer)))
}

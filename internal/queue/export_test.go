package queue

import "time"

// SetClockForTest overrides the store's time source.
func (s *Store) SetClockForTest(clock func() time.Time) {
	s.clock = clock
}

// SetStaleTimeoutForTest overrides the lock staleness window.
func (s *Store) SetStaleTimeoutForTest(timeout time.Duration) {
	s.staleTimeout = timeout
}

package rews

import (
	"sync"
	"time"
)

// reconnectScheduler decides whether and when another connection attempt
// happens. The wait is a fixed interval, no backoff growth. A configured
// retry cap is compared before incrementing, so maxRetries=N permits
// exactly N attempts after the initial connection. Once the cap is reached
// the scheduler stops permanently.
type reconnectScheduler struct {
	logger     Logger
	interval   time.Duration
	maxRetries int

	mu      sync.Mutex
	retries int
	stopped bool
	timer   *time.Timer
}

func newReconnectScheduler(logger Logger, interval time.Duration, maxRetries int) *reconnectScheduler {
	return &reconnectScheduler{
		logger:     logger.WithField("component", "reconnect_scheduler"),
		interval:   interval,
		maxRetries: maxRetries,
	}
}

// schedule arms the reconnect timer. After the interval elapses the retry
// counter is incremented and connect is invoked. It returns false when no
// attempt will be made: either the scheduler was stopped or the retry cap
// is reached, in which case the stop is terminal.
func (s *reconnectScheduler) schedule(connect func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if s.maxRetries > 0 && s.retries >= s.maxRetries {
		s.stopped = true
		s.logger.Errorf("%s: stopping after %d attempts", ErrRetriesExhausted, s.retries)
		return false
	}

	s.logger.Infof("reconnecting in %s (attempt %d)", s.interval, s.retries+1)

	s.timer = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.retries++
		s.mu.Unlock()

		connect()
	})

	return true
}

// reset zeroes the retry counter. Invoked on every successful open.
func (s *reconnectScheduler) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retries = 0
}

// stop cancels any pending timer and prevents future scheduling. A timer
// that already fired re-checks the stopped flag, so a stale fire cannot
// trigger a connect.
func (s *reconnectScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *reconnectScheduler) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retries
}

func (s *reconnectScheduler) exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped
}

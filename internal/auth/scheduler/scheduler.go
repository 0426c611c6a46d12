package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// Purger is implemented by the auth usecase.
type Purger interface {
	PurgeExpired() (int64, error)
}

// SessionSweeper periodically deletes expired session records
type SessionSweeper struct {
	purger   Purger
	interval time.Duration
	log      *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewSessionSweeper creates a new sweeper
func NewSessionSweeper(purger Purger, interval time.Duration, log *zap.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{
		purger:   purger,
		interval: interval,
		log:      log.Named("session-sweeper"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *SessionSweeper) Start() {
	s.log.Info("starting session sweeper", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				s.log.Info("session sweeper stopped")
				return
			}
		}
	}()
}

// Stop stops the loop and waits for it to exit
func (s *SessionSweeper) Stop() {
	close(s.stopChan)
	<-s.done
}

func (s *SessionSweeper) sweep() {
	n, err := s.purger.PurgeExpired()
	if err != nil {
		s.log.Error("failed to purge expired sessions", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("purged expired sessions", zap.Int64("count", n))
	}
}

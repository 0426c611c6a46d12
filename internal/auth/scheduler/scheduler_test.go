package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired() (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSweeperRunsImmediatelyAndOnTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &countingPurger{}
	s := NewSessionSweeper(p, 10*time.Millisecond, zap.NewNop())
	s.Start()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSweeperSurvivesErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &countingPurger{err: errors.New("db down")}
	s := NewSessionSweeper(p, 10*time.Millisecond, zap.NewNop())
	s.Start()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

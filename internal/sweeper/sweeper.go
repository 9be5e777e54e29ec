// Package sweeper periodically ends course sessions whose token expired.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionCloser ends expired sessions and reports how many it closed.
type SessionCloser interface {
	CloseExpiredSessions(ctx context.Context, at time.Time) (int, error)
}

// Sweeper runs a SessionCloser on a cron schedule.
type Sweeper struct {
	closer   SessionCloser
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// New creates a sweeper. schedule uses cron syntax including descriptors
// such as "@every 1m".
func New(closer SessionCloser, schedule string) *Sweeper {
	return &Sweeper{
		closer:   closer,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// RunOnce closes every session expired at the current time.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	return s.closer.CloseExpiredSessions(ctx, s.now())
}

// Start schedules the sweep. Jobs run until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		n, err := s.RunOnce(ctx)
		if err != nil {
			log.Printf("sweeper: close expired sessions failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("sweeper: closed %d expired session(s)", n)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

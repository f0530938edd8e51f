package ledger

import (
	"context"
	"time"
)

// DefaultPollInterval is the wait between confirmation attempts
const DefaultPollInterval = time.Second

// PollPolicy controls confirmation polling. Now and Sleep may be replaced to run on virtual time.
type PollPolicy struct {
	Interval time.Duration
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
}

// DefaultPollPolicy polls once per second on the wall clock
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval: DefaultPollInterval,
		Now:      time.Now,
		Sleep:    sleepContext,
	}
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

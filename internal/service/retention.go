package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"workbench/internal/history"
)

// Retention prunes ledger entries older than a fixed age on a cron schedule.
type Retention struct {
	ledger   *history.Ledger
	schedule string
	maxAge   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running chan struct{} // closed when the in-flight run ends; nil while idle
	cron    *cron.Cron
}

// NewRetention creates a Retention that keeps days of history. The schedule is a
// standard five-field cron expression.
func NewRetention(ledger *history.Ledger, schedule string, days int) *Retention {
	return &Retention{
		ledger:   ledger,
		schedule: schedule,
		maxAge:   time.Duration(days) * 24 * time.Hour,
		now:      time.Now,
	}
}

// SetClock overrides the clock used to compute the cutoff.
func (r *Retention) SetClock(now func() time.Time) { r.now = now }

// Start schedules pruning. It is a no-op when retention is disabled (days <= 0).
func (r *Retention) Start(ctx context.Context) error {
	if r.maxAge <= 0 {
		log.Printf("[History] retention disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		if _, _, err := r.RunOnce(ctx); err != nil {
			log.Printf("[History] prune failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	log.Printf("[History] pruning entries older than %s on %q", r.maxAge, r.schedule)
	return nil
}

// RunOnce prunes now. ran is false when a previous run is still in flight.
func (r *Retention) RunOnce(ctx context.Context) (deleted int, ran bool, err error) {
	if !r.begin() {
		log.Printf("[History] prune still running, skipping")
		return 0, false, nil
	}
	defer r.end()

	cutoff := r.now().Add(-r.maxAge)
	deleted, err = r.ledger.Prune(ctx, cutoff)
	if deleted > 0 {
		log.Printf("[History] pruned %d entries executed before %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, true, err
}

// Stop unschedules pruning and waits for an in-flight run or ctx.
func (r *Retention) Stop(ctx context.Context) {
	if r.cron != nil {
		select {
		case <-r.cron.Stop().Done():
		case <-ctx.Done():
		}
		r.cron = nil
	}
	r.wait(ctx)
}

// begin marks a run as in flight. It returns false when one already is.
func (r *Retention) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running != nil {
		return false
	}
	r.running = make(chan struct{})
	return true
}

func (r *Retention) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.running)
	r.running = nil
}

// wait blocks until no run is in flight or ctx is done.
func (r *Retention) wait(ctx context.Context) {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if running == nil {
		return
	}
	select {
	case <-running:
	case <-ctx.Done():
	}
}

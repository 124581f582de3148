package service

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically expires pending reservations whose deadline has
// passed.  It keeps the derived view fresh; correctness never depends on
// it running.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper returns a sweeper running every interval (30s when <= 0).
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				log.Printf("sweeper: expire pending failed: %v", err)
			}
		}
	}
}

// SweepOnce runs a single pass and returns how many reservations expired.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := w.svc.store.ExpirePending(ctx, w.svc.clock.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("sweeper: expired %d pending reservation(s)", n)
	}
	return n, nil
}

package cstore

import (
	"context"
	"errors"
	"time"

	"github.com/ValentinKolb/docdb/lib/persist"
	"github.com/sourcegraph/conc"
)

// initialBackoff is the first retry delay after a retryable failure
const initialBackoff = time.Second

// Run starts the sync and sweep loops and blocks until ctx is cancelled.
// After both loops stopped it performs exactly one final full sync and returns its error.
func (e *Engine) Run(ctx context.Context) error {
	var wg conc.WaitGroup
	wg.Go(func() { e.loop(ctx, "sync", e.cfg.CacheTime, e.SyncAll) })
	wg.Go(func() { e.loop(ctx, "sweep", e.cfg.FlushTime, e.Sweep) })
	wg.Wait()

	Logger.Infof("background loops stopped, running final sync")
	if err := e.SyncAll(); err != nil {
		Logger.Errorf("final sync failed: %v", err)
		return err
	}
	Logger.Infof("final sync completed")
	return nil
}

// loop runs cycle every interval until ctx is done. Failures never end the loop.
func (e *Engine) loop(ctx context.Context, name string, interval time.Duration, cycle func() error) {
	var backoff time.Duration
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			Logger.Debugf("%s loop stopped", name)
			return
		case <-timer.C:
		}

		err := cycle()
		switch {
		case err == nil:
			backoff = 0
			timer.Reset(interval)
		case persist.IsRetryable(err):
			backoff = nextBackoff(backoff, interval)
			Logger.Warningf("%s failed, retrying in %s: %v", name, backoff, err)
			timer.Reset(backoff)
		default:
			backoff = 0
			Logger.Errorf("%s failed, operator intervention required: %v", name, err)
			timer.Reset(interval)
		}
	}
}

// nextBackoff doubles the previous delay, starting at initialBackoff and capped at limit
func nextBackoff(prev, limit time.Duration) time.Duration {
	next := initialBackoff
	if prev > 0 {
		next = prev * 2
	}
	if next > limit {
		next = limit
	}
	return next
}

// SyncAll writes every resident collection to disk. Entries stay resident.
func (e *Engine) SyncAll() error {
	start := time.Now()
	e.metrics.syncs.Inc()

	var errs []error
	synced := 0
	e.table.Range(func(name string, s *slot) bool {
		// the read lock keeps an eviction from overtaking this write
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.evicted {
			return true
		}
		if err := e.disk.Write(name, s.docs); err != nil {
			errs = append(errs, err)
			return true
		}
		synced++
		return true
	})

	e.metrics.syncDuration.UpdateDuration(start)
	if err := errors.Join(errs...); err != nil {
		e.metrics.syncFailures.Inc()
		return err
	}
	Logger.Debugf("synced %d collections in %s", synced, time.Since(start))
	return nil
}

// Sweep writes back and drops every collection whose flush time has passed.
// The write happens under the slot lock only, the table is touched afterwards
// to drop the entry.
func (e *Engine) Sweep() error {
	now := e.now().UnixNano()
	e.metrics.sweeps.Inc()

	var errs []error
	e.table.Range(func(name string, candidate *slot) bool {
		if now < candidate.flushAt.Load() {
			return true
		}

		evicted, err := e.evict(name, candidate, now)
		if err != nil {
			errs = append(errs, err)
			return true
		}
		if !evicted {
			return true
		}

		// writers that still hold the slot see evicted and resolve again
		e.table.Compute(name, func(cur *slot, loaded bool) (*slot, bool) {
			if !loaded || cur != candidate {
				return cur, !loaded
			}
			return nil, true
		})
		e.metrics.evictions.Inc()
		Logger.Infof("evicted collection %s", name)
		return true
	})

	if err := errors.Join(errs...); err != nil {
		e.metrics.sweepFailures.Inc()
		return err
	}
	return nil
}

// evict writes a slot back and marks it evicted, unless it was accessed since now
func (e *Engine) evict(name string, s *slot, now int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted || now < s.flushAt.Load() {
		return false, nil
	}
	if err := e.disk.Write(name, s.docs); err != nil {
		return false, err
	}
	s.evicted = true
	return true, nil
}

// Package workerpool runs a batch of events through a shared
// *matcher.Matcher with bounded concurrency. Matcher.Process takes no locks
// and mutates nothing shared, so many goroutines may call it at once; this
// package exists to demonstrate and exercise that purity guarantee under
// real concurrent load, not to work around any contention in the Matcher
// itself.
package workerpool

import (
	"context"
	"fmt"

	"github.com/danielsvitols/tornado/internal/matcher"
	"github.com/danielsvitols/tornado/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many events are processed concurrently.
type Pool struct {
	size int64
}

// New returns a Pool that processes at most size events concurrently. A
// non-positive size is treated as 1.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: int64(size)}
}

// Source supplies the Matcher generation each worker should use, so a Pool
// always evaluates against whatever is currently live behind a
// reload.Manager even mid-batch.
type Source interface {
	Current() *matcher.Matcher
}

// staticSource adapts a single, fixed Matcher to the Source interface.
type staticSource struct{ m *matcher.Matcher }

func (s staticSource) Current() *matcher.Matcher { return s.m }

// Static wraps a fixed Matcher as a Source, for callers that do not use
// hot-reload.
func Static(m *matcher.Matcher) Source { return staticSource{m} }

// Process evaluates every event in events against src.Current(), using at
// most p.size goroutines at a time, and returns one ProcessedEvent per
// input event in the same order. It returns the first error encountered
// acquiring a worker slot (e.g. ctx cancellation); Matcher.Process itself
// never errors.
func (p *Pool) Process(ctx context.Context, src Source, events []model.Event) ([]*model.ProcessedEvent, error) {
	results := make([]*model.ProcessedEvent, len(events))

	sem := semaphore.NewWeighted(p.size)
	g, gctx := errgroup.WithContext(ctx)

	for i, event := range events {
		i, event := i, event
		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, fmt.Errorf("workerpool: acquiring slot for event %d: %w", i, err)
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = src.Current().Process(event)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

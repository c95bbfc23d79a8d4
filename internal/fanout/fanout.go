// Package fanout runs independent best-effort calls with bounded concurrency
// and reports how many succeeded.
package fanout

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Tally counts the outcome of a batch.
type Tally struct {
	Sent   int
	Failed int
}

func (t Tally) Total() int {
	return t.Sent + t.Failed
}

// Task is one outbound call.
type Task func(ctx context.Context) error

// Run executes tasks with at most limit in flight. A failing task never stops
// the others. Tasks not started before ctx is done count as failed.
func Run(ctx context.Context, limit int, tasks ...Task) Tally {
	return Each(ctx, limit, tasks, func(ctx context.Context, task Task) error {
		return task(ctx)
	})
}

// Each calls fn once per item with at most limit calls in flight.
func Each[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) Tally {
	if limit <= 0 {
		limit = 1
	}

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)

	for _, item := range items {
		if ctx.Err() != nil {
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Tally{Sent: int(sent.Load()), Failed: int(failed.Load())}
}

// Package runner provides the bounded-concurrency fan-out/fan-in executor
// used by the batch pipeline stages (per-file embedding, per-service
// analysis).
package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// MaxWorkers is the global cap on workers per batch regardless of what the
// caller requests.
const MaxWorkers = 10

// Map runs worker over every item with at most limit workers in flight and
// collects the non-nil results. Output order is unspecified; callers must
// not rely on positional correspondence with the input.
//
// A worker returning (nil-equivalent, false) is intentionally skipped: its
// slot simply produces nothing (empty file, already-embedded duplicate). A
// worker returning an error aborts the whole batch: remaining workers are
// canceled via the context and the first error is returned. Per-item error
// isolation is deliberately not provided at this layer.
func Map[I, O any](ctx context.Context, items []I, limit int, worker func(context.Context, I) (O, bool, error)) ([]O, error) {
	if len(items) == 0 {
		return nil, nil
	}

	bound := limit
	if bound <= 0 || bound > MaxWorkers {
		bound = MaxWorkers
	}
	if bound > len(items) {
		bound = len(items)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bound)

	var mu sync.Mutex
	var results []O

	for _, item := range items {
		g.Go(func() error {
			out, ok, err := worker(ctx, item)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, out)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MapOrdered is Map with output order matching input order. Skipped slots
// are compacted out after all workers finish.
func MapOrdered[I, O any](ctx context.Context, items []I, limit int, worker func(context.Context, I) (O, bool, error)) ([]O, error) {
	if len(items) == 0 {
		return nil, nil
	}

	bound := limit
	if bound <= 0 || bound > MaxWorkers {
		bound = MaxWorkers
	}
	if bound > len(items) {
		bound = len(items)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bound)

	slots := make([]O, len(items))
	kept := make([]bool, len(items))

	for i, item := range items {
		g.Go(func() error {
			out, ok, err := worker(ctx, item)
			if err != nil {
				return err
			}
			slots[i] = out
			kept[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]O, 0, len(items))
	for i, ok := range kept {
		if ok {
			results = append(results, slots[i])
		}
	}
	return results, nil
}

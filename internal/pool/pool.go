// Package pool runs a bounded number of concurrent workers over a set
// of items and collects one result per item, regardless of outcome.
package pool

import (
	"context"
	"sync"
)

// Run executes work for every item in items, with at most concurrency
// running at once. It returns exactly len(items) results, in item
// order. If failed reports true for any result, the shared context
// passed to all in-flight and future work is cancelled — this is how
// the engine implements "first ChunkFailed cancels the rest of the
// pool" without the pool needing to know what failure means.
//
// Run returns only after every worker has terminated, so no goroutine
// spawned here survives the call.
func Run[T any, R any](parent context.Context, items []T, concurrency int, work func(context.Context, T) R, failed func(R) bool) []R {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make([]R, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			r := work(ctx, item)
			results[i] = r
			if failed != nil && failed(r) {
				cancel()
			}
		}(i, item)
	}

	wg.Wait()
	return results
}

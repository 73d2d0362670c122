// Package parallel provides worker helpers for the embarrassingly parallel
// loops in histoml: per-query kNN prediction and hyperparameter sweeps.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items across CPU cores and executes fn for each
// half-open range [start, end). fn must not share mutable state across
// ranges; results belong in pre-sized, index-addressed slices so aggregation
// stays order-independent.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so the last chunk absorbs the remainder.
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ForEach executes fn once per index in [0, items). Sweep candidates use it
// so each candidate runs with its own copy of the deterministic seed and
// writes its result to its own slot.
func ForEach(items int, fn func(i int)) {
	Parallelize(items, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

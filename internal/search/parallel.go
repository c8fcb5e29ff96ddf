package search

import (
	"golang.org/x/sync/errgroup"
)

// Predicate decides whether a candidate is productive.
type Predicate interface {
	IsProductive(n uint64) bool
}

// evaluateChunk tests every candidate in c across up to workers goroutines.
// The chunk is split into contiguous slices, one per goroutine; hits come
// back in ascending order.
func evaluateChunk(pred Predicate, c Chunk, workers int) ([]uint64, error) {
	n := c.Len()
	if n == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	if uint64(workers) > n {
		workers = int(n)
	}

	per := n / uint64(workers)
	rem := n % uint64(workers)

	results := make([][]uint64, workers)
	var g errgroup.Group

	lo := c.Start
	for i := 0; i < workers; i++ {
		size := per
		if uint64(i) < rem {
			size++
		}
		start, end := lo, lo+size
		lo = end

		g.Go(func() error {
			var hits []uint64
			for v := start; v < end; v++ {
				if pred.IsProductive(v) {
					hits = append(hits, v)
				}
			}
			results[i] = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	if total == 0 {
		return nil, nil
	}

	out := make([]uint64, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

package dynamo

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor runs fn over [0, n) split into at most Workers(n, minChunk)
// contiguous chunks. It returns after every chunk has finished, with the
// first error any chunk reported. The chunk index lets callers address
// per-worker scratch.
func ParallelFor(n, minChunk int, fn func(chunk, start, end int) error) error {
	workers := Workers(n, minChunk)
	if workers == 1 {
		return fn(0, 0, n)
	}

	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			break
		}
		chunk := w
		g.Go(func() error {
			return fn(chunk, start, end)
		})
	}

	return g.Wait()
}

// Workers returns the number of chunks ParallelFor uses for n items.
func Workers(n, minChunk int) int {
	workers := runtime.GOMAXPROCS(0)
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		return 1
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}
	return max(workers, 1)
}

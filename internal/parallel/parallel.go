// Package parallel provides the data-parallel loop-over-a-range primitive
// spec §5 calls "a thread pool runs data-parallel loops over vertex
// ranges": blocking kernels that partition an index range across worker
// goroutines sized to GOMAXPROCS, with no cooperative scheduling inside a
// process.
//
// Grounded on Tingshow-liu-Cluster-BFS-Golang's parlay_go.Append, the one
// place in the retrieved pack that hand-rolls this exact chunk-and-fan-out
// shape for a vertex-range loop.
package parallel

import (
	"runtime"
	"sync"
)

// Range runs fn(i) for every i in [0, n), split into contiguous chunks
// across up to GOMAXPROCS goroutines, and blocks until every chunk
// completes.
func Range(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Package parallel provides a chunked parallel-for used by the CPU
// backend's convolution and pooling kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split across goroutines.
type Config struct {
	// NumWorkers is the goroutine count. Zero means runtime.NumCPU().
	NumWorkers int
	// MinChunkSize is the smallest work slice handed to a worker. Work
	// smaller than this runs serially to avoid goroutine overhead.
	MinChunkSize int
}

// DefaultConfig returns a config suited to compute-bound kernels.
func DefaultConfig() Config {
	return Config{NumWorkers: runtime.NumCPU(), MinChunkSize: 64}
}

// For runs f(start, end) over [0, n) split into contiguous chunks, one
// chunk per worker. f must be safe to call concurrently on disjoint ranges.
func For(n int, cfg Config, f func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if cfg.MinChunkSize > 0 && n/workers < cfg.MinChunkSize {
		workers = n / cfg.MinChunkSize
	}
	if workers <= 1 {
		f(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

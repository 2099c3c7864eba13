// Package parallel provides the worker-loop helper used by the vision
// convolution kernels.
//
// Parallelism here is strictly intra-kernel: iterations write disjoint
// output ranges, so results are deterministic regardless of worker count.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls kernel-loop parallelism.
type Config struct {
	Enabled    bool // Whether to spread iterations across goroutines.
	NumWorkers int  // Number of worker goroutines.
	MinPerCall int  // Minimum iterations before goroutines are worth spawning.
}

// DefaultConfig returns settings based on the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinPerCall: 4,
	}
}

// Serial returns a config that always runs iterations sequentially.
func Serial() Config {
	return Config{}
}

// For executes f(i) for i in [0, n), splitting the range across workers.
// Falls back to a plain loop when parallelism is disabled or n is small.
//
// f must only write state owned by iteration i.
func For(n int, cfg Config, f func(i int)) {
	if !cfg.Enabled || n < cfg.MinPerCall {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

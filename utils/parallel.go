// Package utils contains the worker helpers, integer helpers and typed errors shared by the
// pipeline packages.
package utils

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ParallelFactor caps the goroutines ParallelFor starts. It is at most GOMAXPROCS, and a quarter
// of it on machines with more than 32 procs, since two eye workers share the machine.
var ParallelFactor = parallelFactor(runtime.GOMAXPROCS(0))

func parallelFactor(procs int) int {
	if procs <= 0 {
		return 1
	}
	if procs > 32 {
		return procs / 4
	}
	return procs
}

// ParallelFor calls work once for every index in [0, n), spread over up to ParallelFactor
// goroutines that each take a contiguous run of indices. Indices never repeat, so work may write
// its own output slot without locking. It returns ctx's error without calling work when ctx has
// already ended; otherwise every run is processed. A panic ends its own run and is returned as an
// error once all runs are done.
func ParallelFor(ctx context.Context, n int, work func(i int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}

	groups := min(ParallelFactor, n)
	per, extra := n/groups, n%groups
	errs := make([]error, groups)
	var wg sync.WaitGroup
	wg.Add(groups)
	from := 0
	for g := 0; g < groups; g++ {
		to := from + per
		if g < extra {
			to++
		}
		lo, hi := from, to
		go func() {
			defer wg.Done()
			i := lo
			defer func() {
				if r := recover(); r != nil {
					errs[g] = errors.Errorf("parallel work panicked at index %d: %v", i, r)
				}
			}()
			for ; i < hi; i++ {
				work(i)
			}
		}()
		from = to
	}
	wg.Wait()
	return multierr.Combine(errs...)
}

// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error { return e.Err }

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count; values <= 0 mean 2x NumCPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return n
}

// ProgressFunc is called after each item is processed.
type ProgressFunc func()

// Map runs fn over items on a bounded pool. results[i] and errs[i] hold the
// outcome for items[i], so output order never depends on scheduling.
// Items not started before ctx is cancelled report ctx.Err().
func Map[T, R any](ctx context.Context, items []T, maxWorkers int, fn func(context.Context, T) (R, error), onProgress ProgressFunc) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	p := pool.New().WithMaxGoroutines(Workers(maxWorkers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			if onProgress != nil {
				defer onProgress()
			}
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(ctx, item)
			return nil // Don't stop pool on individual failures
		})
	}
	_ = p.Wait() // Errors are captured per slot

	return results, errs
}

// MapFiles runs fn over files in parallel. Failed files leave the zero value
// in their slot and are reported in path order; the returned
// *ProcessingErrors is nil when every file succeeded.
func MapFiles[R any](ctx context.Context, files []string, maxWorkers int, fn func(context.Context, string) (R, error), onProgress ProgressFunc) ([]R, *ProcessingErrors) {
	results, errs := Map(ctx, files, maxWorkers, fn, onProgress)
	return results, collect(files, errs)
}

func collect(files []string, errs []error) *ProcessingErrors {
	var pe *ProcessingErrors
	for i, err := range errs {
		if err == nil {
			continue
		}
		if pe == nil {
			pe = &ProcessingErrors{}
		}
		pe.Errors = append(pe.Errors, ProcessingError{Path: files[i], Err: err})
	}
	if pe != nil {
		sort.SliceStable(pe.Errors, func(i, j int) bool { return pe.Errors[i].Path < pe.Errors[j].Path })
	}
	return pe
}

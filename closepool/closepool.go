// SPDX-License-Identifier: GPL-3.0-or-later

// Package closepool allows pooling cleanup steps
// and running them in a single operation.
package closepool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"
)

// Func is a cleanup step. It should honour the context deadline.
type Func func(ctx context.Context) error

// Pool allows pooling a set of cleanup steps.
//
// The zero value is ready to use.
type Pool struct {
	// StepTimeout is the optional timeout for each step. If zero,
	// steps are only bounded by the context passed to [*Pool.Close].
	StepTimeout time.Duration

	// handles contains the steps to run.
	handles []entry

	// mu provides mutual exclusion.
	mu sync.Mutex
}

// entry is a named cleanup step.
type entry struct {
	name string
	fn   Func
}

// Add adds a named cleanup step to the pool.
func (p *Pool) Add(name string, fn Func) {
	p.mu.Lock()
	p.handles = append(p.handles, entry{name, fn})
	p.mu.Unlock()
}

// AddCloser adds a named [io.Closer] to the pool.
func (p *Pool) AddCloser(name string, closer io.Closer) {
	p.Add(name, func(context.Context) error {
		return closer.Close()
	})
}

// Close runs all the steps inside the pool iterating in backward
// order. Therefore, if one registers an address and then the engine
// bound to such an address, the engine is shut down first. A failing
// or timing out step does not prevent the following steps from running.
// The returned error is the join of all the errors, each prefixed with
// the name of the step that produced it.
func (p *Pool) Close(ctx context.Context) error {
	// Lock and copy the steps to run.
	p.mu.Lock()
	steps := p.handles
	p.handles = nil
	p.mu.Unlock()

	// Run all the steps.
	var errv []error
	for _, step := range slices.Backward(steps) {
		if err := p.run(ctx, step); err != nil {
			errv = append(errv, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errv...)
}

// run runs a single step honouring the StepTimeout.
func (p *Pool) run(ctx context.Context, step entry) error {
	if p.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.StepTimeout)
		defer cancel()
	}
	return step.fn(ctx)
}

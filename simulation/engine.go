// SPDX-License-Identifier: GPL-3.0-or-later

package simulation

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/internal/rngx"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/iti/rngstream"
)

// Ref identifies a simulated object.
type Ref struct {
	DeviceID uint32       `json:"deviceId"`
	Key      objtable.Key `json:"object"`
}

// String returns the "device/type:instance" representation.
func (r Ref) String() string {
	return fmt.Sprintf("%d/%s", r.DeviceID, r.Key)
}

// Target receives the simulated values.
//
// SetSimulated must evaluate paused while holding the object lock and
// skip the write, returning false, when paused returns true.
type Target interface {
	SetSimulated(key objtable.Key, value any, paused func() bool) (bool, error)
}

// Status is the status of a simulation task.
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusAbsent  Status = "absent"
)

// Handle is a running simulation task.
type Handle struct {
	// Ref is the simulated object.
	Ref Ref

	// Params contains the task parameters.
	Params Params

	cancel   context.CancelFunc
	done     chan struct{}
	failures atomic.Uint64
	paused   atomic.Bool
	started  chan struct{}
	ticks    atomic.Uint64
}

// Failures returns the number of failed writes.
func (h *Handle) Failures() uint64 {
	return h.failures.Load()
}

// Ticks returns the number of committed writes.
func (h *Handle) Ticks() uint64 {
	return h.ticks.Load()
}

// Paused returns whether the task is paused.
func (h *Handle) Paused() bool {
	return h.paused.Load()
}

// Status returns the task status.
func (h *Handle) Status() Status {
	select {
	case <-h.done:
		return StatusAbsent
	default:
	}
	if h.paused.Load() {
		return StatusPaused
	}
	return StatusRunning
}

// Done returns a channel closed when the task terminates.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// stop cancels the task and waits for its termination.
func (h *Handle) stop() {
	h.cancel()
	<-h.started
	<-h.done
}

// Engine manages the simulation tasks.
//
// The zero value is ready to use.
type Engine struct {
	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// mu protects tasks.
	mu    sync.Mutex
	tasks map[Ref]*Handle
}

// Start validates the parameters and starts a task writing to target,
// replacing any task already simulating the same object. The replaced
// task has terminated by the time the new one runs.
func (e *Engine) Start(ref Ref, target Target, params Params) (*Handle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.Values = slices.Clone(params.Values)

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		Ref:     ref,
		Params:  params,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: make(chan struct{}),
	}

	e.mu.Lock()
	if e.tasks == nil {
		e.tasks = make(map[Ref]*Handle)
	}
	prev := e.tasks[ref]
	e.tasks[ref] = h
	e.mu.Unlock()

	// The previous task may be blocked on the object lock held by a
	// writer whose observer is waiting for mu, so wait without mu.
	go func() {
		if prev != nil {
			prev.stop()
		}
		close(h.started)
		e.run(ctx, h, target)
	}()

	e.logger().Info(
		"simulationStart",
		slog.String("ref", ref.String()),
		slog.String("mode", string(params.Mode)),
		slog.Float64("intervalSeconds", params.IntervalSeconds),
		slog.Bool("replaced", prev != nil),
	)
	return h, nil
}

func (e *Engine) run(ctx context.Context, h *Handle, target Target) {
	defer close(h.done)

	var rng *rngstream.RngStream
	if h.Params.Mode == ModeRandomWalk {
		rng = rngx.New("walk:" + h.Ref.String())
	}
	gen := newGenerator(h.Params, rng)

	ticker := time.NewTicker(h.Params.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		if h.paused.Load() {
			continue
		}
		value := gen.next()
		written, err := target.SetSimulated(h.Ref.Key, value, h.paused.Load)
		if err != nil {
			h.failures.Add(1)
			e.logger().Warn(
				"simulationWriteFailed",
				slog.String("ref", h.Ref.String()),
				slog.Any("value", value),
				slog.Any("err", err),
				slog.String("errClass", errclass.New(err)),
			)
			continue
		}
		if written {
			h.ticks.Add(1)
			e.logger().Debug(
				"simulationTick",
				slog.String("ref", h.Ref.String()),
				slog.Any("value", value),
			)
		}
	}
}

// Get returns the task simulating the given object.
func (e *Engine) Get(ref Ref) (*Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, found := e.tasks[ref]
	return h, found
}

// Status returns the status of the task simulating the given object.
func (e *Engine) Status(ref Ref) Status {
	h, found := e.Get(ref)
	if !found {
		return StatusAbsent
	}
	return h.Status()
}

// Pause pauses the task simulating the given object, returning
// whether such a task exists. Pause does not block on the task.
func (e *Engine) Pause(ref Ref) bool {
	h, found := e.Get(ref)
	if found && !h.paused.Swap(true) {
		e.logger().Info("simulationPause", slog.String("ref", ref.String()))
	}
	return found
}

// Resume resumes the task simulating the given object, returning
// whether such a task exists.
func (e *Engine) Resume(ref Ref) bool {
	h, found := e.Get(ref)
	if found && h.paused.Swap(false) {
		e.logger().Info("simulationResume", slog.String("ref", ref.String()))
	}
	return found
}

// Stop stops the task simulating the given object and waits for
// its termination, returning whether such a task existed.
func (e *Engine) Stop(ref Ref) bool {
	e.mu.Lock()
	h, found := e.tasks[ref]
	delete(e.tasks, ref)
	e.mu.Unlock()
	if found {
		h.stop()
		e.logger().Info("simulationStop", slog.String("ref", ref.String()))
	}
	return found
}

// StopDevice stops all the tasks of a device and returns their number.
func (e *Engine) StopDevice(deviceID uint32) int {
	return e.stopMatching(func(ref Ref) bool {
		return ref.DeviceID == deviceID
	})
}

// StopAll stops all the tasks and returns their number.
func (e *Engine) StopAll() int {
	return e.stopMatching(func(Ref) bool {
		return true
	})
}

func (e *Engine) stopMatching(match func(ref Ref) bool) int {
	var victims []*Handle
	e.mu.Lock()
	for ref, h := range e.tasks {
		if match(ref) {
			victims = append(victims, h)
			delete(e.tasks, ref)
		}
	}
	e.mu.Unlock()
	for _, h := range victims {
		h.stop()
	}
	return len(victims)
}

// List returns the tasks sorted by device and object.
func (e *Engine) List() []*Handle {
	e.mu.Lock()
	out := make([]*Handle, 0, len(e.tasks))
	for _, h := range e.tasks {
		out = append(out, h)
	}
	e.mu.Unlock()
	slices.SortFunc(out, func(a, b *Handle) int {
		return compareRefs(a.Ref, b.Ref)
	})
	return out
}

func compareRefs(a, b Ref) int {
	return cmp.Or(cmp.Compare(a.DeviceID, b.DeviceID), a.Key.Compare(b.Key))
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return discard
}

// discard is the logger used when Logger is nil.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// SPDX-License-Identifier: GPL-3.0-or-later

package objtable

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// View is a consistent copy of the state of an object.
type View struct {
	Key
	Name         string    `json:"name"`
	Unit         string    `json:"unit,omitempty"`
	Value        any       `json:"value"`
	Commandable  bool      `json:"commandable"`
	LastWrite    Source    `json:"lastWrite"`
	Updated      time.Time `json:"updated"`
	InactiveText string    `json:"inactiveText,omitempty"`
	ActiveText   string    `json:"activeText,omitempty"`
	States       []string  `json:"states,omitempty"`
}

// WriteOptions contains options for [*Table.Write].
type WriteOptions struct {
	// Force allows writing non-commandable objects.
	Force bool

	// Source is the origin of the write.
	Source Source
}

// Observer is notified of committed external writes.
//
// Observers run while the object lock is held and therefore must
// not call back into the [*Table].
type Observer func(key Key, source Source)

// Failure describes an object that could not be updated.
type Failure struct {
	Key Key
	Err error
}

// object is the live state of an object.
type object struct {
	// cfg is the immutable configuration.
	cfg config.Object

	// initial is the coerced initial value.
	initial any

	// lastWrite is the origin of the last external write.
	lastWrite Source

	// mu provides mutual exclusion.
	mu sync.RWMutex

	// updated is the time of the last update.
	updated time.Time

	// value is the live value.
	value any
}

// Table is the object table of a single device.
//
// Construct using [NewTable].
type Table struct {
	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	// objects maps keys to objects. Immutable after construction.
	objects map[Key]*object

	// observers contains the registered observers.
	observers []Observer

	// obsmu protects observers.
	obsmu sync.RWMutex

	// order contains the keys in configuration order.
	order []Key
}

// NewTable builds the object table of a device. The objects must
// have unique keys and valid initial values; errors wrap
// [simerr.ErrConfiguration].
func NewTable(objects []config.Object) (*Table, error) {
	t := &Table{objects: make(map[Key]*object, len(objects))}
	now := time.Now()
	for _, cfg := range objects {
		key := KeyOf(&cfg)
		if _, found := t.objects[key]; found {
			return nil, fmt.Errorf("%w: duplicate object %s", simerr.ErrConfiguration, key)
		}
		initial, err := cfg.Initial()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", simerr.ErrConfiguration, err)
		}
		cfg.States = slices.Clone(cfg.States)
		t.objects[key] = &object{cfg: cfg, initial: initial, value: initial, updated: now}
		t.order = append(t.order, key)
	}
	return t, nil
}

// Observe registers an observer of external writes.
func (t *Table) Observe(fn Observer) {
	t.obsmu.Lock()
	t.observers = append(t.observers, fn)
	t.obsmu.Unlock()
}

// Keys returns the object keys in configuration order.
func (t *Table) Keys() []Key {
	return append([]Key(nil), t.order...)
}

// Len returns the number of objects.
func (t *Table) Len() int {
	return len(t.order)
}

// Config returns the configuration of an object.
func (t *Table) Config(key Key) (config.Object, error) {
	obj, err := t.lookup(key)
	if err != nil {
		return config.Object{}, err
	}
	return obj.cfg, nil
}

// Read returns the current state of an object.
func (t *Table) Read(key Key) (View, error) {
	obj, err := t.lookup(key)
	if err != nil {
		return View{}, err
	}
	obj.mu.RLock()
	defer obj.mu.RUnlock()
	return obj.view(key), nil
}

// List returns the state of all objects in configuration order.
func (t *Table) List() []View {
	out := make([]View, 0, len(t.order))
	for _, key := range t.order {
		obj := t.objects[key]
		obj.mu.RLock()
		out = append(out, obj.view(key))
		obj.mu.RUnlock()
	}
	return out
}

// Write performs an external write. It fails with [simerr.ErrNotFound]
// for unknown objects, with [simerr.ErrWriteDenied] for non-commandable
// objects unless forced, and with [simerr.ErrInvalidValue] for values
// not fitting the object type. On failure the value is unchanged.
func (t *Table) Write(key Key, value any, opts WriteOptions) (View, error) {
	obj, err := t.lookup(key)
	if err != nil {
		return View{}, err
	}
	if !obj.cfg.Commandable && !opts.Force {
		return View{}, fmt.Errorf("%w: %s is not commandable", simerr.ErrWriteDenied, key)
	}
	coerced, err := obj.cfg.Coerce(value)
	if err != nil {
		return View{}, err
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.value = coerced
	obj.lastWrite = opts.Source
	obj.updated = t.timeNow()
	t.notify(key, opts.Source)
	return obj.view(key), nil
}

// SetSimulated stores a value generated by a simulation task. The
// paused function is evaluated under the object lock and, when it
// returns true, the value is discarded and false is returned. The
// last-write source is not modified.
func (t *Table) SetSimulated(key Key, value any, paused func() bool) (bool, error) {
	obj, err := t.lookup(key)
	if err != nil {
		return false, err
	}
	coerced, err := obj.cfg.Coerce(value)
	if err != nil {
		return false, err
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()
	if paused != nil && paused() {
		return false, nil
	}
	obj.value = coerced
	obj.updated = t.timeNow()
	return true, nil
}

// Values returns a copy of all the current values.
func (t *Table) Values() map[Key]any {
	out := make(map[Key]any, len(t.order))
	for key, obj := range t.objects {
		obj.mu.RLock()
		out[key] = obj.value
		obj.mu.RUnlock()
	}
	return out
}

// Restore sets the given values without notifying observers and without
// modifying commandable flags or last-write sources. It returns the
// number of applied values and the failures, one per rejected value.
func (t *Table) Restore(values map[Key]any) (int, []Failure) {
	var (
		applied  int
		failures []Failure
	)
	for _, key := range sortedKeys(values) {
		obj, err := t.lookup(key)
		if err != nil {
			failures = append(failures, Failure{Key: key, Err: err})
			continue
		}
		coerced, err := obj.cfg.Coerce(values[key])
		if err != nil {
			failures = append(failures, Failure{Key: key, Err: err})
			continue
		}
		obj.mu.Lock()
		obj.value = coerced
		obj.updated = t.timeNow()
		obj.mu.Unlock()
		applied++
	}
	return applied, failures
}

// Reset sets every object to its initial value and clears the last
// write source. It returns the number of reset objects.
func (t *Table) Reset() int {
	for _, key := range t.order {
		obj := t.objects[key]
		obj.mu.Lock()
		obj.value = obj.initial
		obj.lastWrite = SourceNone
		obj.updated = t.timeNow()
		obj.mu.Unlock()
	}
	return len(t.order)
}

func (t *Table) lookup(key Key) (*object, error) {
	obj, found := t.objects[key]
	if !found {
		return nil, fmt.Errorf("%w: object %s", simerr.ErrNotFound, key)
	}
	return obj, nil
}

func (t *Table) notify(key Key, source Source) {
	t.obsmu.RLock()
	defer t.obsmu.RUnlock()
	for _, fn := range t.observers {
		fn(key, source)
	}
}

func (t *Table) timeNow() time.Time {
	if t.TimeNow != nil {
		return t.TimeNow()
	}
	return time.Now()
}

// view must be called with the object lock held.
func (o *object) view(key Key) View {
	return View{
		Key:          key,
		Name:         o.cfg.Name,
		Unit:         o.cfg.Unit,
		Value:        o.value,
		Commandable:  o.cfg.Commandable,
		LastWrite:    o.lastWrite,
		Updated:      o.updated,
		InactiveText: o.cfg.InactiveText,
		ActiveText:   o.cfg.ActiveText,
		States:       slices.Clone(o.cfg.States),
	}
}

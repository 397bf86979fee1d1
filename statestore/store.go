// SPDX-License-Identifier: GPL-3.0-or-later

package statestore

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/google/uuid"
)

// Table is the object table of a device.
type Table interface {
	Values() map[objtable.Key]any
	Restore(values map[objtable.Key]any) (int, []objtable.Failure)
	Reset() int
}

var _ Table = &objtable.Table{}

// Info describes a snapshot.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Devices   int       `json:"devices"`
	Objects   int       `json:"objects"`
}

// Failure describes an object that could not be restored or reset.
type Failure struct {
	DeviceID uint32       `json:"deviceId"`
	Object   objtable.Key `json:"object"`
	Error    string       `json:"error"`

	// Err is the original error.
	Err error `json:"-"`
}

// Result is the outcome of a restore or reset.
type Result struct {
	// Applied is the number of objects updated.
	Applied int `json:"applied"`

	// Failures contains the objects not updated.
	Failures []Failure `json:"failures"`
}

// snapshot is a captured copy of the object values.
type snapshot struct {
	info   Info
	values map[uint32]map[objtable.Key]any
}

// Store contains the snapshots.
//
// Construct using [New].
type Store struct {
	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// NewID is the optional function generating snapshot IDs. If
	// this field is nil, we use random UUIDs.
	NewID func() string

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	// devices maps device IDs to tables. Immutable after construction.
	devices map[uint32]Table

	// max is the maximum number of snapshots.
	max int

	// mu protects snapshots.
	mu sync.Mutex

	// snapshots contains the snapshots, oldest first.
	snapshots []*snapshot
}

// New returns a [*Store] for the given device tables holding at most
// max snapshots. A non-positive max means [config.DefaultMaxSnapshots].
func New(devices map[uint32]Table, max int) *Store {
	if max <= 0 {
		max = config.DefaultMaxSnapshots
	}
	return &Store{devices: maps.Clone(devices), max: max}
}

// Snapshot captures the values of all objects of all devices.
func (s *Store) Snapshot() Info {
	snap := &snapshot{values: make(map[uint32]map[objtable.Key]any, len(s.devices))}
	for _, id := range s.deviceIDs() {
		values := s.devices[id].Values()
		snap.values[id] = values
		snap.info.Objects += len(values)
	}
	snap.info.ID = s.newID()
	snap.info.CreatedAt = s.timeNow()
	snap.info.Devices = len(snap.values)

	s.mu.Lock()
	var evicted *snapshot
	if len(s.snapshots) >= s.max {
		evicted = s.snapshots[0]
		s.snapshots = slices.Delete(s.snapshots, 0, 1)
	}
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()

	if evicted != nil {
		s.logger().Info("snapshotEvicted", slog.String("snapshotId", evicted.info.ID))
	}
	s.logger().Info(
		"snapshotCreated",
		slog.String("snapshotId", snap.info.ID),
		slog.Int("devices", snap.info.Devices),
		slog.Int("objects", snap.info.Objects),
	)
	return snap.info
}

// List returns the snapshots, oldest first.
func (s *Store) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.info)
	}
	return out
}

// Delete removes a snapshot or returns an error wrapping [simerr.ErrNotFound].
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.index(id)
	if idx < 0 {
		return fmt.Errorf("%w: snapshot %s", simerr.ErrNotFound, id)
	}
	s.snapshots = slices.Delete(s.snapshots, idx, idx+1)
	return nil
}

// Restore writes back the values of a snapshot or returns an error
// wrapping [simerr.ErrNotFound]. Objects that cannot be restored are
// logged and reported in the [Result].
func (s *Store) Restore(id string) (Result, error) {
	s.mu.Lock()
	idx := s.index(id)
	var snap *snapshot
	if idx >= 0 {
		snap = s.snapshots[idx]
	}
	s.mu.Unlock()
	if snap == nil {
		return Result{}, fmt.Errorf("%w: snapshot %s", simerr.ErrNotFound, id)
	}

	result := Result{Failures: []Failure{}}
	for _, devID := range slices.Sorted(maps.Keys(snap.values)) {
		values := snap.values[devID]
		table, found := s.devices[devID]
		if !found {
			for _, key := range slices.SortedFunc(maps.Keys(values), objtable.Key.Compare) {
				err := fmt.Errorf("%w: device %d", simerr.ErrNotFound, devID)
				result.fail(devID, key, err)
			}
			continue
		}
		applied, failures := table.Restore(values)
		result.Applied += applied
		for _, failure := range failures {
			result.fail(devID, failure.Key, failure.Err)
		}
	}
	s.log("snapshotRestoreDone", id, &result)
	return result, nil
}

// Reset sets all objects of all devices to their configured initial values.
func (s *Store) Reset() Result {
	result := Result{Failures: []Failure{}}
	for _, id := range s.deviceIDs() {
		result.Applied += s.devices[id].Reset()
	}
	s.log("resetDone", "", &result)
	return result
}

func (r *Result) fail(devID uint32, key objtable.Key, err error) {
	r.Failures = append(r.Failures, Failure{
		DeviceID: devID,
		Object:   key,
		Error:    err.Error(),
		Err:      err,
	})
}

func (s *Store) log(event, id string, result *Result) {
	logger := s.logger()
	for _, failure := range result.Failures {
		logger.Warn(
			"objectRestoreFailed",
			slog.Uint64("deviceId", uint64(failure.DeviceID)),
			slog.String("object", failure.Object.String()),
			slog.Any("err", failure.Err),
			slog.String("errClass", errclass.New(failure.Err)),
		)
	}
	logger.Info(
		event,
		slog.String("snapshotId", id),
		slog.Int("applied", result.Applied),
		slog.Int("failures", len(result.Failures)),
	)
}

// index returns the index of a snapshot or -1. The caller must hold mu.
func (s *Store) index(id string) int {
	return slices.IndexFunc(s.snapshots, func(snap *snapshot) bool {
		return snap.info.ID == id
	})
}

func (s *Store) deviceIDs() []uint32 {
	return slices.Sorted(maps.Keys(s.devices))
}

func (s *Store) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Store) timeNow() time.Time {
	if s.TimeNow != nil {
		return s.TimeNow()
	}
	return time.Now()
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discard
}

// discard is the logger used when Logger is nil.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// SPDX-License-Identifier: GPL-3.0-or-later

package statestore_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/statestore"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	setpoint   = objtable.Key{Type: config.AnalogOutput, Instance: 1}
	fanCommand = objtable.Key{Type: config.BinaryOutput, Instance: 1}
	statusText = objtable.Key{Type: config.CharacterString, Instance: 1}
)

// mockTable is a mockable [statestore.Table].
type mockTable struct {
	MockValues  func() map[objtable.Key]any
	MockRestore func(values map[objtable.Key]any) (int, []objtable.Failure)
	MockReset   func() int
}

func (m *mockTable) Values() map[objtable.Key]any {
	return m.MockValues()
}

func (m *mockTable) Restore(values map[objtable.Key]any) (int, []objtable.Failure) {
	return m.MockRestore(values)
}

func (m *mockTable) Reset() int {
	return m.MockReset()
}

func newTables(t *testing.T) (*objtable.Table, *objtable.Table) {
	objects := config.Default().Devices[0].Objects
	a, err := objtable.NewTable(objects)
	require.NoError(t, err)
	b, err := objtable.NewTable(objects)
	require.NoError(t, err)
	return a, b
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("snap-%d", n)
	}
}

func write(t *testing.T, table *objtable.Table, key objtable.Key, value any) {
	_, err := table.Write(key, value, objtable.WriteOptions{Source: objtable.SourceAPI})
	require.NoError(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	a, b := newTables(t)
	store := statestore.New(map[uint32]statestore.Table{1001: a, 1002: b}, 0)
	fixedTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.TimeNow = func() time.Time { return fixedTime }

	write(t, a, setpoint, 68.5)
	write(t, b, fanCommand, true)
	expectA, expectB := a.Values(), b.Values()

	info := store.Snapshot()
	assert.Equal(t, 2, info.Devices)
	assert.Equal(t, 16, info.Objects)
	assert.Equal(t, fixedTime, info.CreatedAt)
	assert.Len(t, info.ID, 36)

	write(t, a, setpoint, 80.0)
	write(t, a, statusText, "Alarm")
	write(t, b, fanCommand, false)

	result, err := store.Restore(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, result.Applied)
	assert.Empty(t, result.Failures)
	if diff := cmp.Diff(expectA, a.Values()); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(expectB, b.Values()); diff != "" {
		t.Fatal(diff)
	}

	t.Run("restore does not change commandability", func(t *testing.T) {
		view, err := a.Read(setpoint)
		require.NoError(t, err)
		assert.True(t, view.Commandable)
	})

	t.Run("unknown snapshot", func(t *testing.T) {
		_, err := store.Restore("nonexistent")
		assert.ErrorIs(t, err, simerr.ErrNotFound)
	})
}

func TestReset(t *testing.T) {
	a, b := newTables(t)
	fresh, _ := newTables(t)
	store := statestore.New(map[uint32]statestore.Table{1001: a, 1002: b}, 0)

	write(t, a, setpoint, 60.0)
	write(t, b, statusText, "Fault")

	result := store.Reset()
	assert.Equal(t, 16, result.Applied)
	assert.Empty(t, result.Failures)
	if diff := cmp.Diff(fresh.Values(), a.Values()); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(fresh.Values(), b.Values()); diff != "" {
		t.Fatal(diff)
	}

	view, err := a.Read(setpoint)
	require.NoError(t, err)
	assert.Equal(t, objtable.SourceNone, view.LastWrite)
}

func TestEviction(t *testing.T) {
	a, _ := newTables(t)
	store := statestore.New(map[uint32]statestore.Table{1001: a}, 3)
	store.NewID = sequentialIDs()

	for range 4 {
		store.Snapshot()
	}

	var ids []string
	for _, info := range store.List() {
		ids = append(ids, info.ID)
	}
	if diff := cmp.Diff([]string{"snap-2", "snap-3", "snap-4"}, ids); diff != "" {
		t.Fatal(diff)
	}

	_, err := store.Restore("snap-1")
	assert.ErrorIs(t, err, simerr.ErrNotFound)

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete("snap-3"))
		assert.Len(t, store.List(), 2)
		assert.ErrorIs(t, store.Delete("snap-3"), simerr.ErrNotFound)
	})
}

func TestDefaultBound(t *testing.T) {
	a, _ := newTables(t)
	store := statestore.New(map[uint32]statestore.Table{1001: a}, 0)
	for range config.DefaultMaxSnapshots + 5 {
		store.Snapshot()
	}
	assert.Len(t, store.List(), config.DefaultMaxSnapshots)
}

func TestRestoreFailures(t *testing.T) {
	table := &mockTable{
		MockValues: func() map[objtable.Key]any {
			return map[objtable.Key]any{setpoint: 70.0, statusText: "Normal"}
		},
		MockRestore: func(values map[objtable.Key]any) (int, []objtable.Failure) {
			return 1, []objtable.Failure{{Key: statusText, Err: simerr.ErrInvalidValue}}
		},
		MockReset: func() int {
			return 2
		},
	}
	store := statestore.New(map[uint32]statestore.Table{7: table}, 0)
	info := store.Snapshot()

	result, err := store.Restore(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, uint32(7), result.Failures[0].DeviceID)
	assert.Equal(t, statusText, result.Failures[0].Object)
	assert.ErrorIs(t, result.Failures[0].Err, simerr.ErrInvalidValue)
	assert.Equal(t, simerr.ErrInvalidValue.Error(), result.Failures[0].Error)

	assert.Equal(t, 2, store.Reset().Applied)
}

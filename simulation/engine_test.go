// SPDX-License-Identifier: GPL-3.0-or-later

package simulation_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 20 * time.Millisecond

var setpoint = objtable.Key{Type: config.AnalogOutput, Instance: 1}

// recorder is a [simulation.Target] saving the written values.
type recorder struct {
	mu     sync.Mutex
	values []any
	err    error
}

func (r *recorder) SetSimulated(key objtable.Key, value any, paused func() bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if paused() {
		return false, nil
	}
	r.values = append(r.values, value)
	return true, nil
}

func (r *recorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.values...)
}

func (r *recorder) count() int {
	return len(r.snapshot())
}

func params(mode simulation.Mode) simulation.Params {
	p := simulation.DefaultParams(mode)
	p.IntervalSeconds = tick.Seconds()
	return p
}

func ptr(v float64) *float64 {
	return &v
}

func TestParamsValidate(t *testing.T) {
	type testcase struct {
		// name is the name of the test case.
		name string

		// mutate modifies the default params.
		mutate func(p *simulation.Params)

		// mode is the simulation mode.
		mode simulation.Mode

		// valid indicates whether the params should be valid.
		valid bool
	}

	cases := []testcase{{
		name:   "sine defaults",
		mutate: func(p *simulation.Params) {},
		mode:   simulation.ModeSine,
		valid:  true,
	}, {
		name:   "random walk defaults",
		mutate: func(p *simulation.Params) {},
		mode:   simulation.ModeRandomWalk,
		valid:  true,
	}, {
		name:   "step without values",
		mutate: func(p *simulation.Params) {},
		mode:   simulation.ModeStep,
		valid:  false,
	}, {
		name:   "step with values",
		mutate: func(p *simulation.Params) { p.Values = []any{1.0, 2.0} },
		mode:   simulation.ModeStep,
		valid:  true,
	}, {
		name:   "zero interval",
		mutate: func(p *simulation.Params) { p.IntervalSeconds = 0 },
		mode:   simulation.ModeSine,
		valid:  false,
	}, {
		name:   "infinite interval",
		mutate: func(p *simulation.Params) { p.IntervalSeconds = math.Inf(1) },
		mode:   simulation.ModeSine,
		valid:  false,
	}, {
		name:   "zero period",
		mutate: func(p *simulation.Params) { p.PeriodSeconds = 0 },
		mode:   simulation.ModeSine,
		valid:  false,
	}, {
		name:   "NaN amplitude",
		mutate: func(p *simulation.Params) { p.Amplitude = math.NaN() },
		mode:   simulation.ModeSine,
		valid:  false,
	}, {
		name:   "negative step size",
		mutate: func(p *simulation.Params) { p.StepSize = -1 },
		mode:   simulation.ModeRandomWalk,
		valid:  false,
	}, {
		name: "inverted bounds",
		mutate: func(p *simulation.Params) {
			p.MinValue, p.MaxValue = ptr(10), ptr(0)
		},
		mode:  simulation.ModeRandomWalk,
		valid: false,
	}, {
		name:   "unknown mode",
		mutate: func(p *simulation.Params) {},
		mode:   simulation.Mode("sawtooth"),
		valid:  false,
	}}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := simulation.DefaultParams(tc.mode)
			tc.mutate(&p)
			err := p.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, simerr.ErrInvalidValue)
		})
	}
}

func TestDefaultParams(t *testing.T) {
	p := simulation.DefaultParams(simulation.ModeRandomWalk)
	assert.Equal(t, 5*time.Second, p.Interval())
	assert.Equal(t, 1.0, p.Amplitude)
	assert.Equal(t, 60.0, p.PeriodSeconds)
	assert.Equal(t, 1.0, p.StepSize)
	assert.Nil(t, p.MinValue)
	assert.Nil(t, p.MaxValue)
}

func TestModes(t *testing.T) {
	t.Run("sine", func(t *testing.T) {
		eng := &simulation.Engine{}
		defer eng.StopAll()
		target := &recorder{}
		p := params(simulation.ModeSine)
		p.Center, p.Amplitude, p.PeriodSeconds = 20, 5, 1
		_, err := eng.Start(simulation.Ref{DeviceID: 1, Key: setpoint}, target, p)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return target.count() >= 5 }, 2*time.Second, tick)
		for _, value := range target.snapshot() {
			assert.InDelta(t, 20.0, value.(float64), 5.0)
		}
	})

	t.Run("random walk stays within bounds", func(t *testing.T) {
		eng := &simulation.Engine{}
		defer eng.StopAll()
		target := &recorder{}
		p := params(simulation.ModeRandomWalk)
		p.Initial, p.StepSize, p.MinValue, p.MaxValue = 0.5, 2, ptr(0), ptr(1)
		_, err := eng.Start(simulation.Ref{DeviceID: 1, Key: setpoint}, target, p)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return target.count() >= 10 }, 2*time.Second, tick)
		for _, value := range target.snapshot() {
			v := value.(float64)
			assert.True(t, v >= 0 && v <= 1, "value %f out of bounds", v)
		}
	})

	t.Run("step cycles through values", func(t *testing.T) {
		eng := &simulation.Engine{}
		defer eng.StopAll()
		target := &recorder{}
		p := params(simulation.ModeStep)
		p.Values = []any{1.0, 2.0, 3.0}
		_, err := eng.Start(simulation.Ref{DeviceID: 1, Key: setpoint}, target, p)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return target.count() >= 4 }, 2*time.Second, tick)
		assert.Equal(t, []any{1.0, 2.0, 3.0, 1.0}, target.snapshot()[:4])
	})
}

func TestPauseResume(t *testing.T) {
	eng := &simulation.Engine{}
	defer eng.StopAll()
	target := &recorder{}
	ref := simulation.Ref{DeviceID: 1, Key: setpoint}
	p := params(simulation.ModeStep)
	p.Values = []any{1.0}
	h, err := eng.Start(ref, target, p)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return target.count() >= 1 }, 2*time.Second, tick)

	require.True(t, eng.Pause(ref))
	assert.Equal(t, simulation.StatusPaused, eng.Status(ref))
	assert.True(t, h.Paused())
	paused := target.count()
	time.Sleep(5 * tick)
	assert.Equal(t, paused, target.count())

	require.True(t, eng.Resume(ref))
	assert.Equal(t, simulation.StatusRunning, eng.Status(ref))
	require.Eventually(t, func() bool { return target.count() > paused }, 2*time.Second, tick)

	t.Run("unknown ref", func(t *testing.T) {
		other := simulation.Ref{DeviceID: 2, Key: setpoint}
		assert.False(t, eng.Pause(other))
		assert.False(t, eng.Resume(other))
		assert.Equal(t, simulation.StatusAbsent, eng.Status(other))
	})
}

func TestPauseOnExternalWrite(t *testing.T) {
	table, err := objtable.NewTable(config.Default().Devices[0].Objects)
	require.NoError(t, err)
	eng := &simulation.Engine{}
	defer eng.StopAll()
	ref := simulation.Ref{DeviceID: 1001, Key: setpoint}
	table.Observe(func(key objtable.Key, source objtable.Source) {
		eng.Pause(simulation.Ref{DeviceID: 1001, Key: key})
	})

	p := params(simulation.ModeStep)
	p.Values = []any{10.0, 11.0}
	h, err := eng.Start(ref, table, p)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Ticks() >= 2 }, 2*time.Second, tick)

	_, err = table.Write(setpoint, 55.5, objtable.WriteOptions{Source: objtable.SourceAPI})
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusPaused, eng.Status(ref))

	time.Sleep(5 * tick)
	view, err := table.Read(setpoint)
	require.NoError(t, err)
	assert.Equal(t, 55.5, view.Value)
	assert.Equal(t, objtable.SourceAPI, view.LastWrite)
}

func TestReplaceAndStop(t *testing.T) {
	eng := &simulation.Engine{}
	target := &recorder{}
	ref := simulation.Ref{DeviceID: 1, Key: setpoint}
	p := params(simulation.ModeSine)

	first, err := eng.Start(ref, target, p)
	require.NoError(t, err)
	second, err := eng.Start(ref, target, p)
	require.NoError(t, err)

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("the replaced task did not terminate")
	}
	current, found := eng.Get(ref)
	require.True(t, found)
	assert.Same(t, second, current)
	assert.Len(t, eng.List(), 1)

	_, err = eng.Start(simulation.Ref{DeviceID: 1, Key: objtable.Key{Type: config.AnalogOutput, Instance: 2}}, target, p)
	require.NoError(t, err)
	_, err = eng.Start(simulation.Ref{DeviceID: 2, Key: setpoint}, target, p)
	require.NoError(t, err)

	list := eng.List()
	require.Len(t, list, 3)
	assert.Equal(t, uint32(1), list[0].Ref.DeviceID)
	assert.Equal(t, uint32(2), list[2].Ref.DeviceID)

	assert.Equal(t, 2, eng.StopDevice(1))
	assert.Equal(t, simulation.StatusAbsent, eng.Status(ref))
	assert.Equal(t, simulation.StatusAbsent, second.Status())
	assert.Equal(t, 1, eng.StopAll())
	assert.False(t, eng.Stop(ref))
	assert.Empty(t, eng.List())

	t.Run("no writes after stop", func(t *testing.T) {
		stopped := target.count()
		time.Sleep(5 * tick)
		assert.Equal(t, stopped, target.count())
	})
}

func TestWriteFailures(t *testing.T) {
	eng := &simulation.Engine{}
	defer eng.StopAll()
	target := &recorder{err: simerr.ErrInvalidValue}
	p := params(simulation.ModeStep)
	p.Values = []any{"not a number"}
	h, err := eng.Start(simulation.Ref{DeviceID: 1, Key: setpoint}, target, p)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.Failures() >= 2 }, 2*time.Second, tick)
	assert.Equal(t, uint64(0), h.Ticks())
	assert.Equal(t, simulation.StatusRunning, h.Status())
}

func TestStartInvalid(t *testing.T) {
	eng := &simulation.Engine{}
	_, err := eng.Start(simulation.Ref{}, &recorder{}, simulation.DefaultParams(simulation.ModeStep))
	assert.ErrorIs(t, err, simerr.ErrInvalidValue)
	assert.Empty(t, eng.List())
}

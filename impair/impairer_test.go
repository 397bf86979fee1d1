// SPDX-License-Identifier: GPL-3.0-or-later

package impair_test

import (
	"testing"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/impair"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpairerDecide(t *testing.T) {
	t.Run("drop probability one always drops", func(t *testing.T) {
		im, err := impair.New(t.Name(), impair.Profile{DropProbability: 1})
		require.NoError(t, err)
		for i := 0; i < 1000; i++ {
			require.True(t, im.Decide().Drop)
		}
		stats := im.Stats()
		assert.Equal(t, uint64(1000), stats.Dropped)
		assert.Equal(t, uint64(0), stats.Delivered)
	})

	t.Run("none never drops nor delays", func(t *testing.T) {
		im, err := impair.New(t.Name(), impair.None)
		require.NoError(t, err)
		for i := 0; i < 1000; i++ {
			d := im.Decide()
			require.False(t, d.Drop)
			require.Zero(t, d.Delay)
		}
		assert.Equal(t, uint64(1000), im.Stats().Delivered)
	})

	t.Run("delay within range", func(t *testing.T) {
		p := impair.Profile{MinDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond}
		im, err := impair.New(t.Name(), p)
		require.NoError(t, err)
		for i := 0; i < 1000; i++ {
			d := im.Decide()
			require.False(t, d.Drop)
			require.GreaterOrEqual(t, d.Delay, p.MinDelay)
			require.LessOrEqual(t, d.Delay, p.MaxDelay)
		}
		stats := im.Stats()
		assert.GreaterOrEqual(t, stats.DelayMeanMS, 50.0)
		assert.LessOrEqual(t, stats.DelayMaxMS, 200.0)
		assert.GreaterOrEqual(t, stats.DelayP95MS, stats.DelayMeanMS)
	})

	t.Run("drop rate follows the probability", func(t *testing.T) {
		im, err := impair.New(t.Name(), impair.Profile{DropProbability: 0.5})
		require.NoError(t, err)
		for i := 0; i < 10000; i++ {
			im.Decide()
		}
		stats := im.Stats()
		assert.InDelta(t, 5000, stats.Dropped, 500)
		assert.Equal(t, uint64(10000), stats.Dropped+stats.Delivered)
	})

	t.Run("profile change applies to the next decision", func(t *testing.T) {
		im, err := impair.New(t.Name(), impair.None)
		require.NoError(t, err)
		assert.False(t, im.Decide().Drop)
		require.NoError(t, im.SetProfile(impair.Profile{Name: config.ProfileCustom, DropProbability: 1}))
		assert.True(t, im.Decide().Drop)
		assert.Equal(t, config.ProfileCustom, im.Profile().Name)
	})

	t.Run("invalid profile rejected", func(t *testing.T) {
		_, err := impair.New(t.Name(), impair.Profile{DropProbability: 3})
		assert.ErrorIs(t, err, simerr.ErrConfiguration)

		im, err := impair.New("x", impair.None)
		require.NoError(t, err)
		assert.ErrorIs(t, im.SetProfile(impair.Profile{MinDelay: -1}), simerr.ErrConfiguration)
		assert.Equal(t, impair.None, im.Profile())
	})

	t.Run("empty stats", func(t *testing.T) {
		im, err := impair.New(t.Name(), impair.None)
		require.NoError(t, err)
		assert.Equal(t, impair.Stats{}, im.Stats())
	})
}

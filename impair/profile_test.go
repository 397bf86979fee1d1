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

func TestPreset(t *testing.T) {
	tests := []struct {
		name   config.ProfileName
		expect impair.Profile
	}{
		{config.ProfileNone, impair.Profile{Name: config.ProfileNone}},
		{config.ProfileLocalNetwork, impair.Profile{
			Name: config.ProfileLocalNetwork, MaxDelay: 10 * time.Millisecond}},
		{config.ProfileRemoteSite, impair.Profile{
			Name: config.ProfileRemoteSite, MinDelay: 50 * time.Millisecond,
			MaxDelay: 200 * time.Millisecond, DropProbability: 0.01}},
		{config.ProfileUnreliableLink, impair.Profile{
			Name: config.ProfileUnreliableLink, MinDelay: 200 * time.Millisecond,
			MaxDelay: time.Second, DropProbability: 0.10}},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			got, err := impair.Preset(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
			assert.NoError(t, got.Validate())
		})
	}

	_, err := impair.Preset(config.ProfileCustom)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestFromConfig(t *testing.T) {
	t.Run("empty name means none", func(t *testing.T) {
		got, err := impair.FromConfig("", nil)
		require.NoError(t, err)
		assert.Equal(t, impair.None, got)
	})

	t.Run("custom", func(t *testing.T) {
		custom := &config.NetworkCustom{MinDelayMS: 5, MaxDelayMS: 7.5, DropProbability: 0.25}
		got, err := impair.FromConfig(config.ProfileCustom, custom)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Millisecond, got.MinDelay)
		assert.Equal(t, 7500*time.Microsecond, got.MaxDelay)
		assert.Equal(t, 0.25, got.DropProbability)
		assert.Equal(t, *custom, got.Custom())
	})

	t.Run("custom without parameters", func(t *testing.T) {
		_, err := impair.FromConfig(config.ProfileCustom, nil)
		assert.ErrorIs(t, err, simerr.ErrConfiguration)
	})

	t.Run("custom with invalid parameters", func(t *testing.T) {
		_, err := impair.FromConfig(config.ProfileCustom, &config.NetworkCustom{DropProbability: 2})
		assert.ErrorIs(t, err, simerr.ErrConfiguration)
	})
}

func TestProfileValidate(t *testing.T) {
	invalid := []impair.Profile{
		{MinDelay: -time.Millisecond},
		{MinDelay: 2 * time.Millisecond, MaxDelay: time.Millisecond},
		{DropProbability: -0.1},
		{DropProbability: 1.01},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, p.Validate(), simerr.ErrConfiguration, "%+v", p)
	}
	assert.NoError(t, impair.Profile{DropProbability: 1}.Validate())
}

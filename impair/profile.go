// SPDX-License-Identifier: GPL-3.0-or-later

package impair

import (
	"fmt"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Profile is a network impairment profile.
type Profile struct {
	// Name is the profile name.
	Name config.ProfileName

	// MinDelay is the minimum response delay.
	MinDelay time.Duration

	// MaxDelay is the maximum response delay.
	MaxDelay time.Duration

	// DropProbability is the probability in [0, 1] of dropping a response.
	DropProbability float64
}

// None is the profile without impairment.
var None = Profile{Name: config.ProfileNone}

// presets contains the named profiles.
var presets = map[config.ProfileName]Profile{
	config.ProfileNone: None,
	config.ProfileLocalNetwork: {
		Name:     config.ProfileLocalNetwork,
		MaxDelay: 10 * time.Millisecond,
	},
	config.ProfileRemoteSite: {
		Name:            config.ProfileRemoteSite,
		MinDelay:        50 * time.Millisecond,
		MaxDelay:        200 * time.Millisecond,
		DropProbability: 0.01,
	},
	config.ProfileUnreliableLink: {
		Name:            config.ProfileUnreliableLink,
		MinDelay:        200 * time.Millisecond,
		MaxDelay:        1000 * time.Millisecond,
		DropProbability: 0.10,
	},
}

// Preset returns the named preset. The custom profile is not a
// preset and needs [FromConfig].
func Preset(name config.ProfileName) (Profile, error) {
	profile, found := presets[name]
	if !found {
		return Profile{}, fmt.Errorf("%w: no preset network profile named %q", simerr.ErrConfiguration, name)
	}
	return profile, nil
}

// FromConfig builds a profile from a name and the optional custom parameters.
func FromConfig(name config.ProfileName, custom *config.NetworkCustom) (Profile, error) {
	if name == "" {
		return None, nil
	}
	if name != config.ProfileCustom {
		return Preset(name)
	}
	if custom == nil {
		return Profile{}, fmt.Errorf("%w: custom network profile requires network_custom", simerr.ErrConfiguration)
	}
	if err := custom.Validate(); err != nil {
		return Profile{}, err
	}
	return Profile{
		Name:            config.ProfileCustom,
		MinDelay:        millis(custom.MinDelayMS),
		MaxDelay:        millis(custom.MaxDelayMS),
		DropProbability: custom.DropProbability,
	}, nil
}

// Validate checks the profile values.
func (p Profile) Validate() error {
	switch {
	case p.MinDelay < 0 || p.MaxDelay < 0:
		return fmt.Errorf("%w: delay values must be non-negative", simerr.ErrConfiguration)
	case p.MinDelay > p.MaxDelay:
		return fmt.Errorf("%w: minimum delay must not exceed maximum delay", simerr.ErrConfiguration)
	case !(p.DropProbability >= 0 && p.DropProbability <= 1):
		return fmt.Errorf("%w: drop probability must be between 0.0 and 1.0", simerr.ErrConfiguration)
	}
	return nil
}

// Custom returns the profile values as custom parameters.
func (p Profile) Custom() config.NetworkCustom {
	return config.NetworkCustom{
		MinDelayMS:      float64(p.MinDelay) / float64(time.Millisecond),
		MaxDelayMS:      float64(p.MaxDelay) / float64(time.Millisecond),
		DropProbability: p.DropProbability,
	}
}

// millis converts milliseconds to a [time.Duration].
func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

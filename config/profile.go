// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"math"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// ProfileName is the name of a network impairment profile.
type ProfileName string

const (
	ProfileNone           ProfileName = "none"
	ProfileLocalNetwork   ProfileName = "local-network"
	ProfileRemoteSite     ProfileName = "remote-site"
	ProfileUnreliableLink ProfileName = "unreliable-link"
	ProfileCustom         ProfileName = "custom"
)

// ProfileNames lists the known profile names.
var ProfileNames = []ProfileName{
	ProfileNone,
	ProfileLocalNetwork,
	ProfileRemoteSite,
	ProfileUnreliableLink,
	ProfileCustom,
}

// ParseProfileName parses and validates a profile name.
func ParseProfileName(s string) (ProfileName, error) {
	for _, name := range ProfileNames {
		if string(name) == s {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown network profile %q", simerr.ErrConfiguration, s)
}

// NetworkCustom contains the custom impairment parameters.
type NetworkCustom struct {
	// MinDelayMS is the minimum response delay in milliseconds.
	MinDelayMS float64 `yaml:"min_delay_ms" json:"min_delay_ms"`

	// MaxDelayMS is the maximum response delay in milliseconds.
	MaxDelayMS float64 `yaml:"max_delay_ms" json:"max_delay_ms"`

	// DropProbability is the probability in [0, 1] of dropping a response.
	DropProbability float64 `yaml:"drop_probability" json:"drop_probability"`
}

// Validate checks the custom parameters.
func (nc *NetworkCustom) Validate() error {
	switch {
	case math.IsNaN(nc.MinDelayMS) || math.IsNaN(nc.MaxDelayMS) || math.IsNaN(nc.DropProbability):
		return fmt.Errorf("%w: network_custom values must be numbers", simerr.ErrConfiguration)
	case nc.MinDelayMS < 0 || nc.MaxDelayMS < 0:
		return fmt.Errorf("%w: delay values must be non-negative", simerr.ErrConfiguration)
	case nc.DropProbability < 0 || nc.DropProbability > 1:
		return fmt.Errorf("%w: drop_probability must be between 0.0 and 1.0", simerr.ErrConfiguration)
	case nc.MinDelayMS > nc.MaxDelayMS:
		return fmt.Errorf("%w: min_delay_ms must be <= max_delay_ms", simerr.ErrConfiguration)
	}
	return nil
}

// validateProfile checks a profile name together with its custom parameters.
func validateProfile(name ProfileName, custom *NetworkCustom) error {
	if _, err := ParseProfileName(string(name)); err != nil {
		return err
	}
	if name == ProfileCustom {
		if custom == nil {
			return fmt.Errorf("%w: custom network profile requires network_custom", simerr.ErrConfiguration)
		}
		return custom.Validate()
	}
	if custom != nil {
		return custom.Validate()
	}
	return nil
}

// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration from the given YAML file and expands
// the device templates. An empty path returns [Default].
//
// The returned configuration is not validated: callers should apply
// environment overrides first and then call [*Simulator.Validate].
func Load(path string) (*Simulator, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config: %w", simerr.ErrConfiguration, err)
	}
	return Parse(data)
}

// Parse parses a YAML configuration and expands the device templates.
//
// Fields missing from the document keep their [DefaultGlobal] values.
func Parse(data []byte) (*Simulator, error) {
	cfg := &Simulator{Global: DefaultGlobal()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parsing config: %w", simerr.ErrConfiguration, err)
	}
	for idx := range cfg.Devices {
		if err := cfg.Devices[idx].ExpandTemplate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyEnv applies the environment variable overrides using the given
// getenv function (typically [os.Getenv]). The device overrides only
// apply to the first device.
func (c *Simulator) ApplyEnv(getenv func(string) string) error {
	var errv []error

	intOverride := func(name string, lo, hi int, target *int) {
		raw := getenv(name)
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < lo || value > hi {
			errv = append(errv, configErrorf("environment variable %s must be an integer in %d-%d, got %q",
				name, lo, hi, raw))
			return
		}
		*target = value
	}

	intOverride("BACNET_PORT", 1, 65535, &c.Global.BACnetPort)
	intOverride("API_PORT", 1, 65535, &c.Global.APIPort)
	intOverride("BACNET_SUBNET_MASK", 1, 30, &c.Global.SubnetMask)

	if raw := getenv("NETWORK_PROFILE"); raw != "" {
		name, err := ParseProfileName(raw)
		if err != nil {
			errv = append(errv, fmt.Errorf("environment variable NETWORK_PROFILE: %w", err))
		} else {
			c.Global.NetworkProfile = name
		}
	}
	if raw := getenv("BACNET_INTERFACE"); raw != "" {
		c.Global.Interface = raw
	}

	if len(c.Devices) > 0 {
		deviceID := int(c.Devices[0].DeviceID)
		intOverride("BACNET_DEVICE_ID", 1, MaxDeviceID, &deviceID)
		c.Devices[0].DeviceID = uint32(deviceID)
		if raw := getenv("BACNET_DEVICE_NAME"); raw != "" {
			c.Devices[0].Name = raw
		}
	}

	return errors.Join(errv...)
}

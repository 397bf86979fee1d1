// SPDX-License-Identifier: GPL-3.0-or-later

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multiDeviceYAML = `
global:
  bacnet_port: 47809
  subnet_mask: 16
  network_profile: remote-site
devices:
  - device_id: 2001
    name: AHU-1
    template: ahu
    objects:
      - type: analog-input
        instance: 1
        name: Custom Supply Temp
        unit: degreesFahrenheit
        value: 60
  - device_id: 2002
    name: VAV-1
    ip: 10.0.0.50
    network_profile: custom
    network_custom:
      min_delay_ms: 5
      max_delay_ms: 10
      drop_probability: 0.5
    objects:
      - type: multistate-value
        instance: 1
        name: Mode
        states: [Off, On]
        value: 2
        commandable: true
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(multiDeviceYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	t.Run("global overrides and defaults", func(t *testing.T) {
		assert.Equal(t, 47809, cfg.Global.BACnetPort)
		assert.Equal(t, config.DefaultAPIPort, cfg.Global.APIPort)
		assert.Equal(t, 16, cfg.Global.SubnetMask)
		assert.Equal(t, config.ProfileRemoteSite, cfg.Global.NetworkProfile)
		assert.Equal(t, config.DefaultShutdownTimeout, cfg.Global.ShutdownTimeout)
	})

	t.Run("template merged with explicit objects", func(t *testing.T) {
		ahu := cfg.Devices[0]
		templ, err := config.Template("ahu")
		require.NoError(t, err)
		assert.Len(t, ahu.Objects, len(templ))
		obj, found := ahu.FindObject(config.AnalogInput, 1)
		require.True(t, found)
		assert.Equal(t, "Custom Supply Temp", obj.Name)
		value, err := obj.Initial()
		require.NoError(t, err)
		assert.Equal(t, 60.0, value)
	})

	t.Run("effective profile", func(t *testing.T) {
		name, custom := cfg.Devices[0].Profile(&cfg.Global)
		assert.Equal(t, config.ProfileRemoteSite, name)
		assert.Nil(t, custom)

		name, custom = cfg.Devices[1].Profile(&cfg.Global)
		assert.Equal(t, config.ProfileCustom, name)
		require.NotNil(t, custom)
		assert.Equal(t, 0.5, custom.DropProbability)
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Parse([]byte("devices: [\n"))
		assert.ErrorIs(t, err, simerr.ErrConfiguration)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := config.Parse([]byte("global:\n  bogus: 1\n"))
		assert.ErrorIs(t, err, simerr.ErrConfiguration)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := config.Parse([]byte("devices:\n  - device_id: 1\n    name: x\n    template: nonexistent\n"))
		require.ErrorIs(t, err, simerr.ErrConfiguration)
		for _, name := range config.TemplateNames() {
			assert.Contains(t, err.Error(), name)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		cfg, err := config.Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, cfg.Devices)
		assert.Equal(t, config.DefaultGlobal(), cfg.Global)
	})
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := config.Load("")
		require.NoError(t, err)
		require.Len(t, cfg.Devices, 1)
		assert.Equal(t, uint32(1001), cfg.Devices[0].DeviceID)
		assert.Equal(t, "HVAC Controller", cfg.Devices[0].Name)
		assert.Len(t, cfg.Devices[0].Objects, 8)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, simerr.ErrConfiguration)
	})

	t.Run("file on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "devices.yaml")
		require.NoError(t, os.WriteFile(path, []byte("global:\n  shutdown_timeout: 2s\n"), 0600))
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.Global.ShutdownTimeout)
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BACNET_PORT":        "47900",
		"API_PORT":           "9000",
		"BACNET_SUBNET_MASK": "20",
		"NETWORK_PROFILE":    "unreliable-link",
		"BACNET_INTERFACE":   "ens3",
		"BACNET_DEVICE_ID":   "4242",
		"BACNET_DEVICE_NAME": "Renamed",
	}
	cfg := config.Default()
	require.NoError(t, cfg.ApplyEnv(func(key string) string { return env[key] }))
	assert.Equal(t, 47900, cfg.Global.BACnetPort)
	assert.Equal(t, 9000, cfg.Global.APIPort)
	assert.Equal(t, 20, cfg.Global.SubnetMask)
	assert.Equal(t, config.ProfileUnreliableLink, cfg.Global.NetworkProfile)
	assert.Equal(t, "ens3", cfg.Global.Interface)
	assert.Equal(t, uint32(4242), cfg.Devices[0].DeviceID)
	assert.Equal(t, "Renamed", cfg.Devices[0].Name)

	t.Run("invalid values", func(t *testing.T) {
		bad := map[string]string{
			"BACNET_PORT":        "abc",
			"BACNET_SUBNET_MASK": "31",
			"NETWORK_PROFILE":    "satellite",
		}
		cfg := config.Default()
		err := cfg.ApplyEnv(func(key string) string { return bad[key] })
		require.ErrorIs(t, err, simerr.ErrConfiguration)
		assert.Contains(t, err.Error(), "BACNET_PORT")
		assert.Contains(t, err.Error(), "BACNET_SUBNET_MASK")
		assert.Contains(t, err.Error(), "NETWORK_PROFILE")
		assert.Equal(t, config.DefaultBACnetPort, cfg.Global.BACnetPort)
	})
}

func TestValidate(t *testing.T) {
	// testcase is a test case implemented by this function.
	type testcase struct {
		// name is the test case name.
		name string

		// mutate modifies a valid default configuration.
		mutate func(cfg *config.Simulator)

		// expect is a substring of the expected error.
		expect string
	}

	tests := []testcase{{
		name: "duplicate device IDs",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices = append(cfg.Devices, cfg.Devices[0])
			cfg.Devices[1].Objects = nil
		},
		expect: "duplicate device ID 1001",
	}, {
		name: "duplicate explicit IPs",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices = append(cfg.Devices, config.Device{DeviceID: 1002, Name: "b", IP: "10.0.0.9"})
			cfg.Devices[0].IP = "10.0.0.9"
		},
		expect: "share explicit IP 10.0.0.9",
	}, {
		name: "invalid IPv4",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].IP = "10.0.0.256"
		},
		expect: "invalid IPv4 address",
	}, {
		name: "device ID out of range",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].DeviceID = config.MaxDeviceID + 1
		},
		expect: "device_id must be",
	}, {
		name: "unsupported object type",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].Objects[0].Type = config.Schedule
		},
		expect: `unsupported object type "schedule"`,
	}, {
		name: "duplicate object identity",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].Objects[1].Instance = 1
		},
		expect: "duplicate object analog-input:1",
	}, {
		name: "duplicate object name",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].Objects[1].Name = "Zone Temp"
		},
		expect: `duplicate object name "Zone Temp"`,
	}, {
		name: "wrong initial value type",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].Objects[0].Value = "hot"
		},
		expect: "initial value",
	}, {
		name: "multistate value beyond states",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].Objects[6].Value = 5
		},
		expect: "state must be 1-4",
	}, {
		name: "custom profile without parameters",
		mutate: func(cfg *config.Simulator) {
			cfg.Devices[0].NetworkProfile = config.ProfileCustom
		},
		expect: "requires network_custom",
	}, {
		name: "negative delay",
		mutate: func(cfg *config.Simulator) {
			cfg.Global.NetworkProfile = config.ProfileCustom
			cfg.Global.NetworkCustom = &config.NetworkCustom{MinDelayMS: -1, MaxDelayMS: 10}
		},
		expect: "non-negative",
	}, {
		name: "drop probability above one",
		mutate: func(cfg *config.Simulator) {
			cfg.Global.NetworkProfile = config.ProfileCustom
			cfg.Global.NetworkCustom = &config.NetworkCustom{DropProbability: 1.5}
		},
		expect: "drop_probability",
	}, {
		name: "inverted delay range",
		mutate: func(cfg *config.Simulator) {
			cfg.Global.NetworkProfile = config.ProfileCustom
			cfg.Global.NetworkCustom = &config.NetworkCustom{MinDelayMS: 20, MaxDelayMS: 10}
		},
		expect: "min_delay_ms must be <= max_delay_ms",
	}, {
		name: "subnet mask out of range",
		mutate: func(cfg *config.Simulator) {
			cfg.Global.SubnetMask = 31
		},
		expect: "subnet_mask must be 1-30",
	}, {
		name: "invalid interface",
		mutate: func(cfg *config.Simulator) {
			cfg.Global.Interface = "eth0; rm -rf /"
		},
		expect: "invalid interface name",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, simerr.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.expect)
		})
	}
}

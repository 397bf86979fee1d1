// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"net/netip"
	"time"
)

// Default values for the [Global] configuration.
const (
	DefaultAPIPort         = 8099
	DefaultBACnetPort      = 47808
	DefaultSubnetMask      = 24
	DefaultInterface       = "eth0"
	DefaultMaxSnapshots    = 16
	DefaultShutdownTimeout = 5 * time.Second
)

// MaxDeviceID is the largest valid device identifier.
const MaxDeviceID = 4194303

// Global contains the deployment-wide settings.
type Global struct {
	// APIPort is the management API TCP port.
	APIPort int `yaml:"api_port"`

	// BACnetPort is the UDP port shared by all devices.
	BACnetPort int `yaml:"bacnet_port"`

	// SubnetMask is the prefix length used for secondary addresses.
	SubnetMask int `yaml:"subnet_mask"`

	// NetworkProfile is the default impairment profile for devices
	// that do not configure their own.
	NetworkProfile ProfileName `yaml:"network_profile"`

	// NetworkCustom contains the parameters for the custom profile.
	NetworkCustom *NetworkCustom `yaml:"network_custom,omitempty"`

	// Interface is the host interface carrying device addresses.
	Interface string `yaml:"interface"`

	// MaxSnapshots bounds the number of stored snapshots.
	MaxSnapshots int `yaml:"max_snapshots"`

	// ShutdownTimeout bounds each protocol engine shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Device is the configuration of a simulated device.
type Device struct {
	// DeviceID is the unique device identifier.
	DeviceID uint32 `yaml:"device_id"`

	// Name is the device display name.
	Name string `yaml:"name"`

	// IP is the optional explicit IPv4 address.
	IP string `yaml:"ip,omitempty"`

	// NetworkProfile optionally overrides the global profile.
	NetworkProfile ProfileName `yaml:"network_profile,omitempty"`

	// NetworkCustom contains the parameters for the custom profile.
	NetworkCustom *NetworkCustom `yaml:"network_custom,omitempty"`

	// Template is the optional name of a [Template].
	Template string `yaml:"template,omitempty"`

	// Objects contains the device objects.
	Objects []Object `yaml:"objects"`
}

// Addr returns the explicit address, or the zero [netip.Addr] when
// the device does not configure one or the address is malformed.
func (d *Device) Addr() netip.Addr {
	addr, err := netip.ParseAddr(d.IP)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

// FindObject returns the object with the given type and instance.
func (d *Device) FindObject(t ObjectType, instance uint32) (*Object, bool) {
	for idx := range d.Objects {
		if d.Objects[idx].Type == t && d.Objects[idx].Instance == instance {
			return &d.Objects[idx], true
		}
	}
	return nil, false
}

// Profile returns the effective impairment profile name and custom
// parameters for the device given the global defaults.
func (d *Device) Profile(global *Global) (ProfileName, *NetworkCustom) {
	if d.NetworkProfile != "" {
		return d.NetworkProfile, d.NetworkCustom
	}
	return global.NetworkProfile, global.NetworkCustom
}

// Simulator is the whole simulator configuration.
type Simulator struct {
	// Global contains the deployment-wide settings.
	Global Global `yaml:"global"`

	// Devices contains the simulated devices.
	Devices []Device `yaml:"devices"`
}

// DefaultGlobal returns the default [Global] configuration.
func DefaultGlobal() Global {
	return Global{
		APIPort:         DefaultAPIPort,
		BACnetPort:      DefaultBACnetPort,
		SubnetMask:      DefaultSubnetMask,
		NetworkProfile:  ProfileNone,
		Interface:       DefaultInterface,
		MaxSnapshots:    DefaultMaxSnapshots,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

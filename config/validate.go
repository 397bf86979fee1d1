// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// interfaceNameRe matches valid Linux interface names.
var interfaceNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,14}$`)

// ValidInterfaceName returns whether name is a valid interface name.
func ValidInterfaceName(name string) bool {
	return interfaceNameRe.MatchString(name)
}

// Validate checks the whole configuration and returns the join of all
// the problems found. Each returned error wraps [simerr.ErrConfiguration].
func (c *Simulator) Validate() error {
	var errv []error
	errv = append(errv, c.Global.validate()...)

	ids := make(map[uint32]struct{})
	ips := make(map[netip.Addr]uint32)
	for idx := range c.Devices {
		dev := &c.Devices[idx]
		errv = append(errv, dev.validate()...)

		if _, found := ids[dev.DeviceID]; found {
			errv = append(errv, configErrorf("duplicate device ID %d", dev.DeviceID))
		}
		ids[dev.DeviceID] = struct{}{}

		if addr := dev.Addr(); addr.IsValid() {
			if other, found := ips[addr]; found {
				errv = append(errv, configErrorf("devices %d and %d share explicit IP %s",
					other, dev.DeviceID, addr))
			}
			ips[addr] = dev.DeviceID
		}
	}
	return errors.Join(errv...)
}

func (g *Global) validate() (errv []error) {
	if g.APIPort < 1 || g.APIPort > 65535 {
		errv = append(errv, configErrorf("api_port must be 1-65535, got %d", g.APIPort))
	}
	if g.BACnetPort < 1 || g.BACnetPort > 65535 {
		errv = append(errv, configErrorf("bacnet_port must be 1-65535, got %d", g.BACnetPort))
	}
	if g.SubnetMask < 1 || g.SubnetMask > 30 {
		errv = append(errv, configErrorf("subnet_mask must be 1-30, got %d", g.SubnetMask))
	}
	if !ValidInterfaceName(g.Interface) {
		errv = append(errv, configErrorf("invalid interface name %q", g.Interface))
	}
	if g.MaxSnapshots < 1 {
		errv = append(errv, configErrorf("max_snapshots must be positive, got %d", g.MaxSnapshots))
	}
	if g.ShutdownTimeout <= 0 {
		errv = append(errv, configErrorf("shutdown_timeout must be positive, got %s", g.ShutdownTimeout))
	}
	if err := validateProfile(g.NetworkProfile, g.NetworkCustom); err != nil {
		errv = append(errv, fmt.Errorf("global: %w", err))
	}
	return
}

func (d *Device) validate() (errv []error) {
	if d.DeviceID < 1 || d.DeviceID > MaxDeviceID {
		errv = append(errv, configErrorf("device_id must be 1-%d, got %d", MaxDeviceID, d.DeviceID))
	}
	if d.Name == "" {
		errv = append(errv, configErrorf("device %d: empty name", d.DeviceID))
	}
	if d.IP != "" {
		if addr, err := netip.ParseAddr(d.IP); err != nil || !addr.Is4() {
			errv = append(errv, configErrorf("device %d: invalid IPv4 address %q", d.DeviceID, d.IP))
		}
	}
	if d.NetworkProfile != "" {
		if err := validateProfile(d.NetworkProfile, d.NetworkCustom); err != nil {
			errv = append(errv, fmt.Errorf("device %d: %w", d.DeviceID, err))
		}
	}
	if d.Template != "" {
		if _, err := Template(d.Template); err != nil {
			errv = append(errv, fmt.Errorf("device %d: %w", d.DeviceID, err))
		}
	}

	type key struct {
		t        ObjectType
		instance uint32
	}
	keys := make(map[key]struct{})
	names := make(map[string]struct{})
	for idx := range d.Objects {
		obj := &d.Objects[idx]
		if err := obj.validate(); err != nil {
			errv = append(errv, fmt.Errorf("device %d: %w", d.DeviceID, err))
		}
		k := key{obj.Type, obj.Instance}
		if _, found := keys[k]; found {
			errv = append(errv, configErrorf("device %d: duplicate object %s:%d",
				d.DeviceID, obj.Type, obj.Instance))
		}
		keys[k] = struct{}{}
		if _, found := names[obj.Name]; found {
			errv = append(errv, configErrorf("device %d: duplicate object name %q", d.DeviceID, obj.Name))
		}
		names[obj.Name] = struct{}{}
	}
	return
}

func (o *Object) validate() error {
	if _, err := ParseObjectType(string(o.Type)); err != nil {
		return err
	}
	if o.Instance > MaxInstance {
		return configErrorf("%s:%d: instance must be 0-%d", o.Type, o.Instance, MaxInstance)
	}
	if o.Name == "" {
		return configErrorf("%s:%d: empty name", o.Type, o.Instance)
	}
	if _, err := o.Initial(); err != nil {
		return fmt.Errorf("%w: initial value: %w", simerr.ErrConfiguration, err)
	}
	return nil
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", simerr.ErrConfiguration, fmt.Sprintf(format, args...))
}

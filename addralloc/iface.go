// SPDX-License-Identifier: GPL-3.0-or-later

package addralloc

import (
	"context"
	"net/netip"
)

// Interface is the host network interface carrying device addresses.
type Interface interface {
	// PrimaryPrefix returns the primary IPv4 address of the
	// interface together with its prefix length.
	PrimaryPrefix(ctx context.Context) (netip.Prefix, error)

	// AddAddress adds a secondary address. It returns an error
	// wrapping [ErrAddressExists] if the address is already present.
	AddAddress(ctx context.Context, prefix netip.Prefix) error

	// RemoveAddress removes a secondary address. It returns an error
	// wrapping [ErrAddressNotAvailable] if the address is not present.
	RemoveAddress(ctx context.Context, prefix netip.Prefix) error
}

// Loopback is the [Interface] used on hosts where secondary addresses
// cannot be managed (e.g., development on macOS). Its primary prefix is
// 127.0.0.1/24 and adding or removing addresses does nothing.
type Loopback struct{}

var _ Interface = Loopback{}

// LoopbackPrefix is the primary prefix reported by [Loopback].
var LoopbackPrefix = netip.MustParsePrefix("127.0.0.1/24")

// PrimaryPrefix implements [Interface].
func (Loopback) PrimaryPrefix(ctx context.Context) (netip.Prefix, error) {
	return LoopbackPrefix, nil
}

// AddAddress implements [Interface].
func (Loopback) AddAddress(ctx context.Context, prefix netip.Prefix) error {
	return nil
}

// RemoveAddress implements [Interface].
func (Loopback) RemoveAddress(ctx context.Context, prefix netip.Prefix) error {
	return nil
}

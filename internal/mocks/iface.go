// SPDX-License-Identifier: GPL-3.0-or-later

package mocks

import (
	"context"
	"net/netip"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/addralloc"
)

// Interface allows mocking an [addralloc.Interface].
type Interface struct {
	MockPrimaryPrefix func(ctx context.Context) (netip.Prefix, error)
	MockAddAddress    func(ctx context.Context, prefix netip.Prefix) error
	MockRemoveAddress func(ctx context.Context, prefix netip.Prefix) error
}

var _ addralloc.Interface = &Interface{}

// PrimaryPrefix calls MockPrimaryPrefix.
func (i *Interface) PrimaryPrefix(ctx context.Context) (netip.Prefix, error) {
	return i.MockPrimaryPrefix(ctx)
}

// AddAddress calls MockAddAddress.
func (i *Interface) AddAddress(ctx context.Context, prefix netip.Prefix) error {
	return i.MockAddAddress(ctx, prefix)
}

// RemoveAddress calls MockRemoveAddress.
func (i *Interface) RemoveAddress(ctx context.Context, prefix netip.Prefix) error {
	return i.MockRemoveAddress(ctx, prefix)
}

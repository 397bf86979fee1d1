// SPDX-License-Identifier: GPL-3.0-or-later

package mocks

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/addralloc"
)

// Host is a stateful [addralloc.Interface] emulating a host interface.
//
// Construct using [NewHost].
type Host struct {
	adds    int
	mu      sync.Mutex
	present map[netip.Addr]bool
	primary netip.Prefix
	removes int
}

var _ addralloc.Interface = &Host{}

// NewHost returns a [*Host] with the given primary prefix
// and the given addresses already present.
func NewHost(primary string, existing ...string) *Host {
	host := &Host{
		present: make(map[netip.Addr]bool),
		primary: netip.MustParsePrefix(primary),
	}
	for _, addr := range existing {
		host.present[netip.MustParseAddr(addr)] = true
	}
	return host
}

// PrimaryPrefix implements [addralloc.Interface].
func (h *Host) PrimaryPrefix(ctx context.Context) (netip.Prefix, error) {
	return h.primary, nil
}

// AddAddress implements [addralloc.Interface].
func (h *Host) AddAddress(ctx context.Context, prefix netip.Prefix) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adds++
	if h.present[prefix.Addr()] {
		return fmt.Errorf("add: %w", addralloc.ErrAddressExists)
	}
	h.present[prefix.Addr()] = true
	return nil
}

// RemoveAddress implements [addralloc.Interface].
func (h *Host) RemoveAddress(ctx context.Context, prefix netip.Prefix) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removes++
	if !h.present[prefix.Addr()] {
		return fmt.Errorf("del: %w", addralloc.ErrAddressNotAvailable)
	}
	delete(h.present, prefix.Addr())
	return nil
}

// Has returns whether the address is present.
func (h *Host) Has(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.present[netip.MustParseAddr(addr)]
}

// Present returns the number of present addresses.
func (h *Host) Present() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.present)
}

// Adds returns the number of AddAddress calls.
func (h *Host) Adds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adds
}

// Removes returns the number of RemoveAddress calls.
func (h *Host) Removes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removes
}

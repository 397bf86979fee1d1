// SPDX-License-Identifier: GPL-3.0-or-later

package addralloc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Allocator applies and releases device addresses on an [Interface].
//
// Construct using [NewAllocator].
//
// A single mutex serializes all the operations, so concurrent device
// starts can never claim the same address.
type Allocator struct {
	// AdoptExisting controls what happens when applying an address
	// that is already present on the interface. If false, the apply
	// fails with [simerr.ErrAllocationConflict]. If true, the address
	// is adopted: it is claimed but never removed by [*Allocator.Release].
	AdoptExisting bool

	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	// bits is the prefix length of the added addresses.
	bits int

	// iface is the managed interface.
	iface Interface

	// claimed maps claimed addresses to whether we own them (i.e.,
	// we added them ourselves and must remove them on release).
	claimed map[netip.Addr]bool

	// primary is the primary address, which we never add or remove.
	primary netip.Addr

	// mu provides mutual exclusion.
	mu sync.Mutex
}

// NewAllocator discovers the primary address of iface and returns an
// [*Allocator] adding addresses using the given prefix length.
func NewAllocator(ctx context.Context, iface Interface, bits int) (*Allocator, error) {
	if bits < 1 || bits > 30 {
		return nil, fmt.Errorf("%w: prefix length must be 1-30, got %d", simerr.ErrConfiguration, bits)
	}
	primary, err := iface.PrimaryPrefix(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading primary address: %w", simerr.ErrAllocationConflict, err)
	}
	return &Allocator{
		bits:    bits,
		iface:   iface,
		claimed: make(map[netip.Addr]bool),
		primary: primary.Addr(),
	}, nil
}

// Primary returns the primary address of the interface.
func (a *Allocator) Primary() netip.Addr {
	return a.primary
}

// Subnet returns the primary address with the configured prefix length.
func (a *Allocator) Subnet() netip.Prefix {
	return netip.PrefixFrom(a.primary, a.bits)
}

// Plan invokes [Plan] using the allocator subnet.
func (a *Allocator) Plan(explicit []netip.Addr) ([]netip.Addr, error) {
	return Plan(a.Subnet(), explicit)
}

// Apply claims the given address, adding it to the interface unless
// it is the primary address. Applying an already claimed address is a
// no-op. Failures wrap [simerr.ErrAllocationConflict].
func (a *Allocator) Apply(ctx context.Context, addr netip.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !addr.Is4() {
		return fmt.Errorf("%w: invalid address %s", simerr.ErrAllocationConflict, addr)
	}
	if _, found := a.claimed[addr]; found {
		return nil
	}
	if addr == a.primary {
		a.claimed[addr] = false
		return nil
	}

	t0 := a.timeNow()
	prefix := netip.PrefixFrom(addr, a.bits)
	err := a.iface.AddAddress(ctx, prefix)
	owned := true
	switch {
	case errors.Is(err, ErrAddressExists) && a.AdoptExisting:
		err, owned = nil, false
	case errors.Is(err, ErrAddressExists):
		err = fmt.Errorf("%w: %s is already present on the interface", simerr.ErrAllocationConflict, addr)
	case err != nil:
		err = fmt.Errorf("%w: adding %s: %w", simerr.ErrAllocationConflict, addr, err)
	}
	if err == nil {
		a.claimed[addr] = owned
	}

	if a.Logger != nil {
		a.Logger.InfoContext(
			ctx,
			"addressApplyDone",
			slog.String("addr", prefix.String()),
			slog.Bool("adopted", err == nil && !owned),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t0", t0),
			slog.Time("t", a.timeNow()),
		)
	}
	return err
}

// Release releases a claimed address, removing it from the interface
// when we added it. Releasing an address that is not claimed is a no-op.
//
// The claim is dropped even when removal fails, since a later release
// would fail in the same way. A missing address is not an error.
func (a *Allocator) Release(ctx context.Context, addr netip.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owned, found := a.claimed[addr]
	if !found {
		return nil
	}
	delete(a.claimed, addr)
	if !owned {
		return nil
	}

	t0 := a.timeNow()
	prefix := netip.PrefixFrom(addr, a.bits)
	err := a.iface.RemoveAddress(ctx, prefix)
	if errors.Is(err, ErrAddressNotAvailable) {
		err = nil
	}

	if a.Logger != nil {
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		a.Logger.Log(
			ctx,
			level,
			"addressReleaseDone",
			slog.String("addr", prefix.String()),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t0", t0),
			slog.Time("t", a.timeNow()),
		)
	}
	return err
}

// ReleaseAll releases all the claimed addresses and returns the
// join of the errors that occurred.
func (a *Allocator) ReleaseAll(ctx context.Context) error {
	var errv []error
	for _, addr := range a.Claimed() {
		errv = append(errv, a.Release(ctx, addr))
	}
	return errors.Join(errv...)
}

// Claimed returns the sorted list of claimed addresses.
func (a *Allocator) Claimed() []netip.Addr {
	a.mu.Lock()
	out := make([]netip.Addr, 0, len(a.claimed))
	for addr := range a.claimed {
		out = append(out, addr)
	}
	a.mu.Unlock()
	slices.SortFunc(out, netip.Addr.Compare)
	return out
}

// timeNow is a function that returns the current time.
func (a *Allocator) timeNow() time.Time {
	if a.TimeNow != nil {
		return a.TimeNow()
	}
	return time.Now()
}

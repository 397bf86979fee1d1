// SPDX-License-Identifier: GPL-3.0-or-later

package addralloc

import (
	"fmt"
	"net/netip"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/netipx"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Plan returns one address per entry of explicit.
//
// The subnet argument carries the primary address and the prefix length
// used for the auto-assigned addresses. A valid entry of explicit is used
// as-is; an invalid (zero) entry receives the next free candidate, starting
// from the primary address and incrementing the host portion.
//
// Duplicate explicit addresses cause an error wrapping
// [simerr.ErrConfiguration] and a nil slice. Running out of usable
// addresses causes an error wrapping [simerr.ErrSubnetExhausted]; in such
// a case the returned slice contains the addresses planned so far and the
// zero [netip.Addr] for the devices left without an address.
func Plan(subnet netip.Prefix, explicit []netip.Addr) ([]netip.Addr, error) {
	primary := subnet.Addr()
	if !primary.Is4() {
		return nil, fmt.Errorf("%w: primary address %s is not IPv4", simerr.ErrConfiguration, primary)
	}

	// Reserve the explicit addresses first.
	out := make([]netip.Addr, len(explicit))
	taken := make(map[netip.Addr]int)
	for idx, addr := range explicit {
		if !addr.IsValid() {
			continue
		}
		if other, found := taken[addr]; found {
			return nil, fmt.Errorf("%w: devices #%d and #%d request the same address %s",
				simerr.ErrConfiguration, other, idx, addr)
		}
		taken[addr] = idx
		out[idx] = addr
	}

	// Assign the remaining devices in order.
	candidate := primary
	for idx := range out {
		if out[idx].IsValid() {
			continue
		}
		for netipx.InUsableRange(subnet, candidate) {
			if _, found := taken[candidate]; !found {
				break
			}
			candidate = candidate.Next()
		}
		if !netipx.InUsableRange(subnet, candidate) {
			return out, fmt.Errorf("%w: %s/%d has %d usable host addresses, cannot place device #%d",
				simerr.ErrSubnetExhausted, subnet.Masked().Addr(), subnet.Bits(),
				netipx.UsableCount(subnet), idx)
		}
		taken[candidate] = idx
		out[idx] = candidate
		candidate = candidate.Next()
	}

	// Make sure the plan is collision free before anything is applied.
	seen := make(map[netip.Addr]struct{}, len(out))
	for _, addr := range out {
		if _, found := seen[addr]; found {
			return nil, fmt.Errorf("%w: address %s assigned twice", simerr.ErrConfiguration, addr)
		}
		seen[addr] = struct{}{}
	}
	return out, nil
}

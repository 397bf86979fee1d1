// SPDX-License-Identifier: GPL-3.0-or-later

// Package netipx contains [net/netip] extensions.
package netipx

import (
	"encoding/binary"
	"net"
	"net/netip"
)

// AddrToAddrPort converts a [net.Addr] to a [netip.AddrPort].
//
// If the input is nil or neither a [*net.TCPAddr] nor [*net.UDPAddr],
// returns an unspecified IPv6 address with port 0.
//
// For [*net.UDPAddr] addresses, the returned address is unmapped so
// that IPv4 peers of a dual-stack socket compare equal to IPv4 addresses.
func AddrToAddrPort(addr net.Addr) netip.AddrPort {
	if addr == nil {
		return netip.AddrPortFrom(netip.IPv6Unspecified(), 0)
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.AddrPort()
	}
	if udp, ok := addr.(*net.UDPAddr); ok {
		ap := udp.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPortFrom(netip.IPv6Unspecified(), 0)
}

// Broadcast returns the IPv4 broadcast address of the given prefix.
//
// The second return value is false if the prefix is invalid or not IPv4.
func Broadcast(prefix netip.Prefix) (netip.Addr, bool) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return netip.Addr{}, false
	}
	network := prefix.Masked().Addr().As4()
	value := binary.BigEndian.Uint32(network[:])
	value |= ^uint32(0) >> prefix.Bits()
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], value)
	return netip.AddrFrom4(out), true
}

// UsableRange returns the first and the last host address of an IPv4
// prefix, excluding the network and the broadcast addresses.
//
// The third return value is false when the prefix is invalid, not IPv4,
// or too small (/31 and /32) to contain usable host addresses.
func UsableRange(prefix netip.Prefix) (first, last netip.Addr, ok bool) {
	broadcast, ok := Broadcast(prefix)
	if !ok || prefix.Bits() > 30 {
		return netip.Addr{}, netip.Addr{}, false
	}
	return prefix.Masked().Addr().Next(), broadcast.Prev(), true
}

// InUsableRange returns whether addr is a usable host address of prefix.
//
// The check is inclusive on both ends of the usable range, so both the
// network address and the broadcast address, as well as any address
// beyond them, are reported as unusable.
func InUsableRange(prefix netip.Prefix, addr netip.Addr) bool {
	first, last, ok := UsableRange(prefix)
	if !ok || !addr.IsValid() || !addr.Is4() {
		return false
	}
	return first.Compare(addr) <= 0 && addr.Compare(last) <= 0
}

// UsableCount returns the number of usable host addresses of prefix.
func UsableCount(prefix netip.Prefix) int {
	if _, _, ok := UsableRange(prefix); !ok {
		return 0
	}
	return (1 << (32 - prefix.Bits())) - 2
}

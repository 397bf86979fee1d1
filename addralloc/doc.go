// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package addralloc allocates host addresses for simulated devices.

All devices share one host interface and one UDP port, so each device
after the first needs a secondary address on that interface.

[Plan] computes the addresses: explicit addresses are reserved first,
then the remaining devices receive the primary address and the following
host addresses, skipping reserved ones. Planning stops with an error
wrapping [simerr.ErrSubnetExhausted] as soon as a candidate falls outside
the usable host range of the subnet.

An [*Allocator] applies and releases the planned addresses through an
[Interface], such as [*IPRoute] on Linux or [Loopback] elsewhere.
*/
package addralloc

// SPDX-License-Identifier: GPL-3.0-or-later

// Package mgmtapi implements the HTTP management API of the simulator.
//
// The API exposes the health probes, the devices and their objects,
// the network impairment profiles, the value simulations, and the
// snapshots. Errors are JSON objects containing the error message
// and its class (see [errclass.New]).
package mgmtapi

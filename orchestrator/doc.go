// SPDX-License-Identifier: GPL-3.0-or-later

// Package orchestrator starts, supervises and stops the simulated devices.
//
// An [*Orchestrator] plans and applies the device addresses, starts each
// device concurrently with its own protocol engine and keeps running when
// some devices fail. It also owns the simulation engine and the snapshot
// store, and it exposes the operations used by the management API.
package orchestrator

// SPDX-License-Identifier: GPL-3.0-or-later

// Package statestore captures and restores the object values of
// all devices. Snapshots live in memory and are bounded in number:
// creating a snapshot past the bound evicts the oldest one.
package statestore

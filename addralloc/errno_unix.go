//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// UNIX errno definitions.
//

package addralloc

import "golang.org/x/sys/unix"

const (
	// ErrAddressExists is the error returned when adding an address
	// that is already present on the interface.
	ErrAddressExists = unix.EEXIST

	// ErrAddressNotAvailable is the error returned when removing
	// an address that is not present on the interface.
	ErrAddressNotAvailable = unix.EADDRNOTAVAIL
)

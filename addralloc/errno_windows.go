//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Windows errno definitions.
//

package addralloc

import "golang.org/x/sys/windows"

const (
	// ErrAddressExists is the error returned when adding an address
	// that is already present on the interface.
	ErrAddressExists = windows.ERROR_ALREADY_EXISTS

	// ErrAddressNotAvailable is the error returned when removing
	// an address that is not present on the interface.
	ErrAddressNotAvailable = windows.WSAEADDRNOTAVAIL
)

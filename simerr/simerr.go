// SPDX-License-Identifier: GPL-3.0-or-later

// Package simerr contains the error taxonomy shared by the
// simulator packages.
//
// Callers match errors using [errors.Is]. Packages wrap these
// sentinels with additional context using [fmt.Errorf] and the
// %w verb so that the classification survives wrapping.
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates an invalid configuration. It is
	// fatal at startup: no device is started.
	ErrConfiguration = errors.New("configuration error")

	// ErrAllocationConflict indicates that an address could not be
	// claimed for a device. It only fails the affected device.
	ErrAllocationConflict = errors.New("address allocation conflict")

	// ErrSubnetExhausted indicates that the subnet does not contain
	// enough usable host addresses. It wraps [ErrAllocationConflict].
	ErrSubnetExhausted = fmt.Errorf("%w: subnet exhausted", ErrAllocationConflict)

	// ErrEngine indicates a protocol engine construction, registration
	// or shutdown failure.
	ErrEngine = errors.New("protocol engine error")

	// ErrWriteDenied indicates a write to a non-commandable object
	// without the force flag.
	ErrWriteDenied = errors.New("write access denied")

	// ErrNotFound indicates an unknown device, object or snapshot.
	ErrNotFound = errors.New("not found")

	// ErrInvalidValue indicates a value that does not fit the
	// type of the target object.
	ErrInvalidValue = errors.New("invalid value")

	// ErrAllDevicesFailed indicates that no device reached the
	// ready state. The process should treat this as fatal.
	ErrAllDevicesFailed = errors.New("all devices failed to start")
)

// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package errclass implements error classification.

The general idea is to classify golang errors to an enum of strings
with names resembling standard Unix error names.

# Design Principles

1. Preserve original error in `err` in the structured logs.

2. Add the classified error as the `errClass` field.

3. Use [errors.Is] for classification.

4. Prefix simulator-specific errors and keep full names for clarity.

5. Map the nil error to an empty string.

# Simulator Errors

- [ECONFIG] for [simerr.ErrConfiguration]

- [ESUBNET_EXHAUSTED] for [simerr.ErrSubnetExhausted]

- [EALLOC_CONFLICT] for other [simerr.ErrAllocationConflict] errors

- [EENGINE] for [simerr.ErrEngine]

- [EWRITE_DENIED] for [simerr.ErrWriteDenied]

- [ENOTFOUND] for [simerr.ErrNotFound]

- [EINVALID_VALUE] for [simerr.ErrInvalidValue]

- [EALL_DEVICES_FAILED] for [simerr.ErrAllDevicesFailed]

# System and Network Errors

Everything else is classified by [errclass.New] from the
github.com/rbmk-project/common module, which yields, e.g.,
[ETIMEDOUT] for [context.DeadlineExceeded] and [EINTR] for
[context.Canceled] and [net.ErrClosed].
*/
package errclass

import (
	"errors"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/rbmk-project/common/errclass"
)

const (
	//
	// Simulator errors:
	//

	// ECONFIG is the configuration error.
	ECONFIG = "ECONFIG"

	// EALLOC_CONFLICT is the address allocation conflict error.
	EALLOC_CONFLICT = "EALLOC_CONFLICT"

	// ESUBNET_EXHAUSTED is the subnet exhausted error.
	ESUBNET_EXHAUSTED = "ESUBNET_EXHAUSTED"

	// EENGINE is the protocol engine error.
	EENGINE = "EENGINE"

	// EWRITE_DENIED is the write access denied error.
	EWRITE_DENIED = "EWRITE_DENIED"

	// ENOTFOUND is the unknown device, object or snapshot error.
	ENOTFOUND = "ENOTFOUND"

	// EINVALID_VALUE is the value not fitting the object type error.
	EINVALID_VALUE = "EINVALID_VALUE"

	// EALL_DEVICES_FAILED is the total device start failure error.
	EALL_DEVICES_FAILED = "EALL_DEVICES_FAILED"

	//
	// System errors (from the common module):
	//

	// EADDRNOTAVAIL is the address not available error.
	EADDRNOTAVAIL = errclass.EADDRNOTAVAIL

	// EADDRINUSE is the address in use error.
	EADDRINUSE = errclass.EADDRINUSE

	// EINTR is the interrupted system call error.
	EINTR = errclass.EINTR

	// ETIMEDOUT is the operation timed out error.
	ETIMEDOUT = errclass.ETIMEDOUT

	// EGENERIC is the generic, unclassified error.
	EGENERIC = errclass.EGENERIC
)

// simulatorErrors is the ordered list of simulator sentinels. The
// order matters because [simerr.ErrSubnetExhausted] wraps
// [simerr.ErrAllocationConflict] and must be checked first.
var simulatorErrors = []struct {
	err   error
	class string
}{
	{simerr.ErrConfiguration, ECONFIG},
	{simerr.ErrSubnetExhausted, ESUBNET_EXHAUSTED},
	{simerr.ErrAllocationConflict, EALLOC_CONFLICT},
	{simerr.ErrEngine, EENGINE},
	{simerr.ErrWriteDenied, EWRITE_DENIED},
	{simerr.ErrNotFound, ENOTFOUND},
	{simerr.ErrInvalidValue, EINVALID_VALUE},
	{simerr.ErrAllDevicesFailed, EALL_DEVICES_FAILED},
}

// New classifies the given error and returns its class.
func New(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range simulatorErrors {
		if errors.Is(err, entry.err) {
			return entry.class
		}
	}
	return errclass.New(err)
}

// SPDX-License-Identifier: GPL-3.0-or-later

// Package device implements the runtime of a single simulated device.
//
// A [*Device] owns a private object table, a network impairer and,
// once started, a protocol engine. The management API writes through
// [*Device.Write] while the engine writes through the [engine.Handler]
// methods, and both mutate the same objects.
package device

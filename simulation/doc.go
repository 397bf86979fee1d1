// SPDX-License-Identifier: GPL-3.0-or-later

// Package simulation drives object values over time.
//
// An [*Engine] runs at most one task per object. Each task is a goroutine
// computing a value every interval according to its [Mode] and writing it
// through a [Target]. A paused task skips its ticks, and its writes are
// checked against the pause flag while the object lock is held, so that
// a task paused by an external write never overwrites that write.
package simulation

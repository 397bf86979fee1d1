// SPDX-License-Identifier: GPL-3.0-or-later

// Package rngx creates independent random number streams.
package rngx

import (
	"sync"

	"github.com/iti/rngstream"
)

// mu serializes the construction of streams, which advances
// the package-level seed of [rngstream].
var mu sync.Mutex

// New returns a new named stream. It is safe to call concurrently,
// while each returned stream must be used by one goroutine at a time.
func New(name string) *rngstream.RngStream {
	mu.Lock()
	defer mu.Unlock()
	return rngstream.New(name)
}

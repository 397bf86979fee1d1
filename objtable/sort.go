// SPDX-License-Identifier: GPL-3.0-or-later

package objtable

import (
	"maps"
	"slices"
)

// sortedKeys returns the keys of m sorted by type and instance.
func sortedKeys[V any](m map[Key]V) []Key {
	return slices.SortedFunc(maps.Keys(m), Key.Compare)
}

// SPDX-License-Identifier: GPL-3.0-or-later

package objtable

import (
	"cmp"
	"fmt"
	"strconv"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Key identifies an object within a device.
type Key struct {
	// Type is the object type.
	Type config.ObjectType `json:"type"`

	// Instance is the object instance number.
	Instance uint32 `json:"instance"`
}

// KeyOf returns the key of an object configuration.
func KeyOf(obj *config.Object) Key {
	return Key{Type: obj.Type, Instance: obj.Instance}
}

// ParseKey parses an object type and an instance number.
func ParseKey(typ, instance string) (Key, error) {
	t, err := config.ParseObjectType(typ)
	if err != nil {
		return Key{}, err
	}
	n, err := strconv.ParseUint(instance, 10, 32)
	if err != nil || n > config.MaxInstance {
		return Key{}, fmt.Errorf("%w: invalid instance number %q", simerr.ErrInvalidValue, instance)
	}
	return Key{Type: t, Instance: uint32(n)}, nil
}

// String returns the "type:instance" representation of the key.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Type, k.Instance)
}

// Compare orders keys by type and then by instance.
func (k Key) Compare(other Key) int {
	return cmp.Or(cmp.Compare(k.Type, other.Type), cmp.Compare(k.Instance, other.Instance))
}

// Source is the origin of the last external write of an object.
type Source int

const (
	// SourceNone means the object was never written externally.
	SourceNone Source = iota

	// SourceAPI is the management API.
	SourceAPI

	// SourceProtocol is the protocol engine.
	SourceProtocol
)

// String implements [fmt.Stringer].
func (s Source) String() string {
	switch s {
	case SourceAPI:
		return "api"
	case SourceProtocol:
		return "protocol"
	default:
		return "none"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

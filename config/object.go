// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// ObjectType is the type of a device object.
type ObjectType string

const (
	AnalogInput     ObjectType = "analog-input"
	AnalogOutput    ObjectType = "analog-output"
	BinaryInput     ObjectType = "binary-input"
	BinaryOutput    ObjectType = "binary-output"
	MultistateValue ObjectType = "multistate-value"
	CharacterString ObjectType = "character-string"

	// Schedule is declared for configuration compatibility but unsupported.
	Schedule ObjectType = "schedule"

	// TrendLog is declared for configuration compatibility but unsupported.
	TrendLog ObjectType = "trend-log"
)

// SupportedObjectTypes lists the object types devices may host.
var SupportedObjectTypes = []ObjectType{
	AnalogInput,
	AnalogOutput,
	BinaryInput,
	BinaryOutput,
	MultistateValue,
	CharacterString,
}

// ParseObjectType parses and validates an object type name.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(s)
	switch t {
	case Schedule, TrendLog:
		return "", fmt.Errorf("%w: unsupported object type %q", simerr.ErrConfiguration, s)
	}
	if !t.Supported() {
		return "", fmt.Errorf("%w: unknown object type %q", simerr.ErrConfiguration, s)
	}
	return t, nil
}

// Supported returns whether devices can host objects of this type.
func (t ObjectType) Supported() bool {
	for _, candidate := range SupportedObjectTypes {
		if t == candidate {
			return true
		}
	}
	return false
}

// IsAnalog returns whether the type holds a floating point value.
func (t ObjectType) IsAnalog() bool {
	return t == AnalogInput || t == AnalogOutput
}

// IsBinary returns whether the type holds a boolean value.
func (t ObjectType) IsBinary() bool {
	return t == BinaryInput || t == BinaryOutput
}

// MaxInstance is the largest valid object instance number.
const MaxInstance = 4194302

// Object is the configuration of a single device object.
type Object struct {
	// Type is the object type.
	Type ObjectType `yaml:"type" json:"type"`

	// Instance is the object instance number.
	Instance uint32 `yaml:"instance" json:"instance"`

	// Name is the human readable object name.
	Name string `yaml:"name" json:"name"`

	// Unit is the optional engineering unit (e.g., degreesFahrenheit).
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`

	// Value is the initial value. When nil, a zero value suitable
	// for the object type is used.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Commandable indicates whether the object accepts writes
	// that do not use the force flag.
	Commandable bool `yaml:"commandable,omitempty" json:"commandable"`

	// InactiveText is the optional text for binary false.
	InactiveText string `yaml:"inactive_text,omitempty" json:"inactiveText,omitempty"`

	// ActiveText is the optional text for binary true.
	ActiveText string `yaml:"active_text,omitempty" json:"activeText,omitempty"`

	// States contains the optional multistate state texts.
	States []string `yaml:"states,omitempty" json:"states,omitempty"`
}

// Initial returns the coerced initial value of the object.
func (o *Object) Initial() (any, error) {
	if o.Value == nil {
		return o.zero(), nil
	}
	return o.Coerce(o.Value)
}

// zero returns the default value for the object type.
func (o *Object) zero() any {
	switch {
	case o.Type.IsAnalog():
		return float64(0)
	case o.Type.IsBinary():
		return false
	case o.Type == MultistateValue:
		return uint32(1)
	default:
		return ""
	}
}

// Coerce converts v to the canonical Go type for the object:
// float64 for analog objects, bool for binary objects, uint32 for
// multistate objects, and string for character string objects.
//
// The returned error wraps [simerr.ErrInvalidValue].
func (o *Object) Coerce(v any) (any, error) {
	switch {
	case o.Type.IsAnalog():
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, o.invalid(v, "expected a finite number")
		}
		return f, nil

	case o.Type.IsBinary():
		return o.coerceBinary(v)

	case o.Type == MultistateValue:
		return o.coerceMultistate(v)

	case o.Type == CharacterString:
		s, ok := v.(string)
		if !ok {
			return nil, o.invalid(v, "expected a string")
		}
		return s, nil

	default:
		return nil, o.invalid(v, "unsupported object type")
	}
}

func (o *Object) coerceBinary(v any) (any, error) {
	switch value := v.(type) {
	case bool:
		return value, nil
	case string:
		switch s := strings.ToLower(value); {
		case s == "active" || s == "true" || s == "on":
			return true, nil
		case s == "inactive" || s == "false" || s == "off":
			return false, nil
		case o.ActiveText != "" && s == strings.ToLower(o.ActiveText):
			return true, nil
		case o.InactiveText != "" && s == strings.ToLower(o.InactiveText):
			return false, nil
		}
	default:
		if f, ok := toFloat(v); ok && (f == 0 || f == 1) {
			return f == 1, nil
		}
	}
	return nil, o.invalid(v, "expected a boolean, 0/1, or active/inactive")
}

func (o *Object) coerceMultistate(v any) (any, error) {
	if s, ok := v.(string); ok {
		for idx, state := range o.States {
			if strings.EqualFold(state, s) {
				return uint32(idx + 1), nil
			}
		}
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxUint32 {
		return nil, o.invalid(v, "expected a positive integer state")
	}
	if len(o.States) > 0 && int(f) > len(o.States) {
		return nil, o.invalid(v, fmt.Sprintf("state must be 1-%d", len(o.States)))
	}
	return uint32(f), nil
}

func (o *Object) invalid(v any, reason string) error {
	return fmt.Errorf("%w: %s:%d: %v: %s", simerr.ErrInvalidValue, o.Type, o.Instance, v, reason)
}

// toFloat converts numeric values produced by YAML and JSON decoders.
func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case uint:
		return float64(value), true
	case uint32:
		return float64(value), true
	case uint64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(value, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// SPDX-License-Identifier: GPL-3.0-or-later

package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Mode is a simulation mode.
type Mode string

const (
	// ModeSine oscillates around a center value.
	ModeSine Mode = "sine"

	// ModeRandomWalk adds a bounded random step at each tick.
	ModeRandomWalk Mode = "random-walk"

	// ModeStep cycles through a list of values.
	ModeStep Mode = "step"
)

// Default parameter values.
const (
	DefaultIntervalSeconds = 5.0
	DefaultAmplitude       = 1.0
	DefaultPeriodSeconds   = 60.0
	DefaultStepSize        = 1.0
)

// Params contains the parameters of a simulation task.
//
// A nil MinValue or MaxValue means the random walk is unbounded
// in that direction.
type Params struct {
	Mode            Mode     `json:"mode"`
	IntervalSeconds float64  `json:"interval_seconds"`
	Center          float64  `json:"center"`
	Amplitude       float64  `json:"amplitude"`
	PeriodSeconds   float64  `json:"period_seconds"`
	Initial         float64  `json:"initial"`
	StepSize        float64  `json:"step_size"`
	MinValue        *float64 `json:"min_value,omitempty"`
	MaxValue        *float64 `json:"max_value,omitempty"`
	Values          []any    `json:"values,omitempty"`
}

// DefaultParams returns the default parameters for the given mode.
func DefaultParams(mode Mode) Params {
	return Params{
		Mode:            mode,
		IntervalSeconds: DefaultIntervalSeconds,
		Amplitude:       DefaultAmplitude,
		PeriodSeconds:   DefaultPeriodSeconds,
		StepSize:        DefaultStepSize,
	}
}

// Validate returns an error wrapping [simerr.ErrInvalidValue]
// if the parameters cannot drive a task.
func (p *Params) Validate() error {
	finite := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return p.invalid("%s must be finite", name)
		}
		return nil
	}
	if err := finite("interval_seconds", p.IntervalSeconds); err != nil {
		return err
	}
	if p.IntervalSeconds <= 0 {
		return p.invalid("interval_seconds must be positive")
	}

	switch p.Mode {
	case ModeSine:
		for name, v := range map[string]float64{
			"center":         p.Center,
			"amplitude":      p.Amplitude,
			"period_seconds": p.PeriodSeconds,
		} {
			if err := finite(name, v); err != nil {
				return err
			}
		}
		if p.PeriodSeconds <= 0 {
			return p.invalid("period_seconds must be positive")
		}

	case ModeRandomWalk:
		for name, v := range map[string]float64{
			"initial":   p.Initial,
			"step_size": p.StepSize,
		} {
			if err := finite(name, v); err != nil {
				return err
			}
		}
		if p.StepSize < 0 {
			return p.invalid("step_size must be non-negative")
		}
		if p.MinValue != nil && math.IsNaN(*p.MinValue) || p.MaxValue != nil && math.IsNaN(*p.MaxValue) {
			return p.invalid("bounds must be numbers")
		}
		if p.lower() > p.upper() {
			return p.invalid("min_value must not exceed max_value")
		}

	case ModeStep:
		if len(p.Values) <= 0 {
			return p.invalid("values must not be empty")
		}

	default:
		return fmt.Errorf("%w: unknown simulation mode %q", simerr.ErrInvalidValue, p.Mode)
	}
	return nil
}

func (p *Params) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", simerr.ErrInvalidValue, p.Mode, fmt.Sprintf(format, args...))
}

// Interval returns the tick interval.
func (p *Params) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds * float64(time.Second))
}

// lower returns the random walk lower bound.
func (p *Params) lower() float64 {
	if p.MinValue != nil {
		return *p.MinValue
	}
	return math.Inf(-1)
}

// upper returns the random walk upper bound.
func (p *Params) upper() float64 {
	if p.MaxValue != nil {
		return *p.MaxValue
	}
	return math.Inf(1)
}

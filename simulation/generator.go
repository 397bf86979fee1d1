// SPDX-License-Identifier: GPL-3.0-or-later

package simulation

import (
	"math"

	"github.com/iti/rngstream"
	"github.com/rbmk-project/common/runtimex"
)

// generator computes the values of a task.
type generator struct {
	current float64
	elapsed float64
	index   int
	params  Params
	rng     *rngstream.RngStream
}

func newGenerator(params Params, rng *rngstream.RngStream) *generator {
	return &generator{current: params.Initial, params: params, rng: rng}
}

// next advances the elapsed time by one interval and returns the value.
func (g *generator) next() any {
	g.elapsed += g.params.IntervalSeconds

	switch g.params.Mode {
	case ModeSine:
		runtimex.Assert(g.params.PeriodSeconds > 0, "non-positive sine period")
		phase := 2 * math.Pi * g.elapsed / g.params.PeriodSeconds
		return g.params.Center + g.params.Amplitude*math.Sin(phase)

	case ModeRandomWalk:
		delta := g.params.StepSize * (2*g.rng.RandU01() - 1)
		g.current = max(g.params.lower(), min(g.params.upper(), g.current+delta))
		return g.current

	default:
		runtimex.Assert(len(g.params.Values) > 0, "empty step values")
		value := g.params.Values[g.index%len(g.params.Values)]
		g.index++
		return value
	}
}

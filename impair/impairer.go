// SPDX-License-Identifier: GPL-3.0-or-later

package impair

import (
	"sync"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/internal/rngx"
	"github.com/iti/rngstream"
	"github.com/montanaflynn/stats"
)

// statsWindow is the number of recent delays used by [*Impairer.Stats].
const statsWindow = 1024

// Decision is the impairment decision for a single response.
type Decision struct {
	// Drop indicates that the response must be discarded.
	Drop bool

	// Delay is the delay to apply before sending the response.
	Delay time.Duration
}

// Stats contains the impairment counters of an [*Impairer].
type Stats struct {
	// Delivered is the number of responses not dropped.
	Delivered uint64 `json:"delivered"`

	// Dropped is the number of dropped responses.
	Dropped uint64 `json:"dropped"`

	// DelayMeanMS is the mean delay of recent responses.
	DelayMeanMS float64 `json:"delayMeanMs"`

	// DelayP95MS is the 95th percentile delay of recent responses.
	DelayP95MS float64 `json:"delayP95Ms"`

	// DelayMaxMS is the maximum delay of recent responses.
	DelayMaxMS float64 `json:"delayMaxMs"`
}

// Impairer takes impairment decisions for one device.
//
// Construct using [New].
type Impairer struct {
	// delays is a ring buffer of recent delays in milliseconds.
	delays []float64

	// delivered counts the responses not dropped.
	delivered uint64

	// dropped counts the dropped responses.
	dropped uint64

	// mu provides mutual exclusion.
	mu sync.Mutex

	// next is the next write position inside delays.
	next int

	// profile is the current profile.
	profile Profile

	// rng is the device random stream.
	rng *rngstream.RngStream
}

// New returns a new [*Impairer] using the given profile. The name
// identifies the random stream (e.g., "impair:1001").
func New(name string, profile Profile) (*Impairer, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Impairer{
		profile: profile,
		rng:     rngx.New(name),
	}, nil
}

// Profile returns the current profile.
func (im *Impairer) Profile() Profile {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.profile
}

// SetProfile validates and installs a new profile. Decisions already
// taken, including delays being waited, are not affected.
func (im *Impairer) SetProfile(profile Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	im.mu.Lock()
	im.profile = profile
	im.mu.Unlock()
	return nil
}

// Decide takes the impairment decision for the next response using
// the profile current at the time of the call.
func (im *Impairer) Decide() Decision {
	im.mu.Lock()
	defer im.mu.Unlock()

	p := im.profile
	if p.DropProbability > 0 && im.rng.RandU01() < p.DropProbability {
		im.dropped++
		return Decision{Drop: true}
	}

	var delay time.Duration
	if p.MaxDelay > 0 {
		span := float64(p.MaxDelay - p.MinDelay)
		delay = p.MinDelay + time.Duration(im.rng.RandU01()*span)
	}
	im.delivered++
	im.record(float64(delay) / float64(time.Millisecond))
	return Decision{Delay: delay}
}

// record appends a delay to the ring buffer.
func (im *Impairer) record(ms float64) {
	if len(im.delays) < statsWindow {
		im.delays = append(im.delays, ms)
		return
	}
	im.delays[im.next] = ms
	im.next = (im.next + 1) % statsWindow
}

// Stats returns the impairment counters.
func (im *Impairer) Stats() Stats {
	im.mu.Lock()
	out := Stats{Delivered: im.delivered, Dropped: im.dropped}
	window := stats.Float64Data(append([]float64(nil), im.delays...))
	im.mu.Unlock()

	if window.Len() <= 0 {
		return out
	}
	out.DelayMeanMS, _ = window.Mean()
	out.DelayP95MS, _ = window.Percentile(95)
	out.DelayMaxMS, _ = window.Max()
	return out
}

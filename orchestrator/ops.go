// SPDX-License-Identifier: GPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/device"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/impair"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simulation"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/statestore"
)

// Health is the health of the simulator.
type Health struct {
	// Live is true once Start accepted the configuration and
	// planned the addresses. It stays true after Stop.
	Live bool `json:"live"`

	// Ready is true if there is at least one configured
	// device and all the configured devices are ready.
	Ready bool `json:"ready"`

	// Reason explains why the simulator is not ready.
	Reason string `json:"reason,omitempty"`

	// Devices contains the state of the devices.
	Devices []device.Info `json:"devices"`
}

// ProfileInfo describes the impairment of a device.
type ProfileInfo struct {
	Profile         config.ProfileName `json:"profile"`
	MinDelayMS      float64            `json:"min_delay_ms"`
	MaxDelayMS      float64            `json:"max_delay_ms"`
	DropProbability float64            `json:"drop_probability"`
	Stats           impair.Stats       `json:"stats"`
}

// SimulationInfo describes the simulation of an object.
type SimulationInfo struct {
	DeviceID uint32             `json:"deviceId"`
	Object   objtable.Key       `json:"object"`
	Status   simulation.Status  `json:"status"`
	Params   *simulation.Params `json:"params,omitempty"`
	Ticks    uint64             `json:"ticks"`
	Failures uint64             `json:"failures"`
}

// Health returns the simulator health.
func (o *Orchestrator) Health() Health {
	health := Health{Live: o.live.Load(), Devices: o.Devices()}
	notReady := 0
	for _, info := range health.Devices {
		if info.Status != device.StatusReady {
			notReady++
		}
	}

	o.mu.RLock()
	started := o.started
	o.mu.RUnlock()
	switch {
	case len(o.cfg.Devices) <= 0:
		health.Reason = "no devices configured"
	case !started:
		health.Reason = "devices not started"
	case notReady > 0:
		health.Reason = fmt.Sprintf("%d of %d devices not ready", notReady, len(health.Devices))
	default:
		health.Ready = true
	}
	return health
}

// Devices returns the state of all the devices in configuration order.
func (o *Orchestrator) Devices() []device.Info {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]device.Info, 0, len(o.devices))
	for _, dev := range o.devices {
		out = append(out, dev.Info())
	}
	return out
}

// Device returns a device or an error wrapping [simerr.ErrNotFound].
func (o *Orchestrator) Device(id uint32) (*device.Device, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	dev, found := o.byID[id]
	if !found {
		return nil, fmt.Errorf("%w: device %d", simerr.ErrNotFound, id)
	}
	return dev, nil
}

// Objects returns the objects of a device.
func (o *Orchestrator) Objects(id uint32) ([]objtable.View, error) {
	dev, err := o.Device(id)
	if err != nil {
		return nil, err
	}
	return dev.List(), nil
}

// ReadObject returns an object of a device.
func (o *Orchestrator) ReadObject(id uint32, key objtable.Key) (objtable.View, error) {
	dev, err := o.Device(id)
	if err != nil {
		return objtable.View{}, err
	}
	return dev.Read(key)
}

// WriteObject writes an object of a device through the management
// channel. A committed write pauses the simulation of the object.
func (o *Orchestrator) WriteObject(
	ctx context.Context, id uint32, key objtable.Key, value any, force bool) (objtable.View, error) {
	dev, err := o.Device(id)
	if err != nil {
		return objtable.View{}, err
	}
	return dev.Write(ctx, key, value, force)
}

// Profile returns the impairment profile and statistics of a device.
func (o *Orchestrator) Profile(id uint32) (ProfileInfo, error) {
	dev, err := o.Device(id)
	if err != nil {
		return ProfileInfo{}, err
	}
	profile := dev.Impairer().Profile()
	custom := profile.Custom()
	return ProfileInfo{
		Profile:         profile.Name,
		MinDelayMS:      custom.MinDelayMS,
		MaxDelayMS:      custom.MaxDelayMS,
		DropProbability: custom.DropProbability,
		Stats:           dev.Impairer().Stats(),
	}, nil
}

// SetProfile changes the impairment profile of a device. The custom
// parameters are only used with [config.ProfileCustom].
func (o *Orchestrator) SetProfile(id uint32, name config.ProfileName, custom *config.NetworkCustom) error {
	dev, err := o.Device(id)
	if err != nil {
		return err
	}
	profile, err := impair.FromConfig(name, custom)
	if err != nil {
		return err
	}
	return dev.SetProfile(profile)
}

// StartSimulation starts simulating an object, replacing any
// simulation of the same object. The device must be ready.
func (o *Orchestrator) StartSimulation(id uint32, key objtable.Key, params simulation.Params) (SimulationInfo, error) {
	// Stop holds startmu until the tasks of every device are cancelled
	o.startmu.Lock()
	defer o.startmu.Unlock()
	dev, err := o.Device(id)
	if err != nil {
		return SimulationInfo{}, err
	}
	if status, _ := dev.Status(); status != device.StatusReady {
		return SimulationInfo{}, fmt.Errorf("%w: device %d is %s", simerr.ErrNotFound, id, status)
	}
	if _, err := dev.Table().Config(key); err != nil {
		return SimulationInfo{}, err
	}
	handle, err := o.sim.Start(simulation.Ref{DeviceID: id, Key: key}, dev.Table(), params)
	if err != nil {
		return SimulationInfo{}, err
	}
	return newSimulationInfo(handle), nil
}

// Simulation returns the simulation status of an object.
func (o *Orchestrator) Simulation(id uint32, key objtable.Key) (SimulationInfo, error) {
	dev, err := o.Device(id)
	if err != nil {
		return SimulationInfo{}, err
	}
	if _, err := dev.Table().Config(key); err != nil {
		return SimulationInfo{}, err
	}
	handle, found := o.sim.Get(simulation.Ref{DeviceID: id, Key: key})
	if !found {
		return SimulationInfo{DeviceID: id, Object: key, Status: simulation.StatusAbsent}, nil
	}
	return newSimulationInfo(handle), nil
}

// StopSimulation stops simulating an object.
func (o *Orchestrator) StopSimulation(id uint32, key objtable.Key) error {
	ref := simulation.Ref{DeviceID: id, Key: key}
	if !o.sim.Stop(ref) {
		return fmt.Errorf("%w: no simulation for %s", simerr.ErrNotFound, ref)
	}
	return nil
}

// ResumeSimulation resumes a paused simulation.
func (o *Orchestrator) ResumeSimulation(id uint32, key objtable.Key) (SimulationInfo, error) {
	ref := simulation.Ref{DeviceID: id, Key: key}
	if !o.sim.Resume(ref) {
		return SimulationInfo{}, fmt.Errorf("%w: no simulation for %s", simerr.ErrNotFound, ref)
	}
	return o.Simulation(id, key)
}

// Simulations returns all the simulations.
func (o *Orchestrator) Simulations() []SimulationInfo {
	handles := o.sim.List()
	out := make([]SimulationInfo, 0, len(handles))
	for _, handle := range handles {
		out = append(out, newSimulationInfo(handle))
	}
	return out
}

func newSimulationInfo(handle *simulation.Handle) SimulationInfo {
	params := handle.Params
	return SimulationInfo{
		DeviceID: handle.Ref.DeviceID,
		Object:   handle.Ref.Key,
		Status:   handle.Status(),
		Params:   &params,
		Ticks:    handle.Ticks(),
		Failures: handle.Failures(),
	}
}

// Snapshot captures the values of all objects.
func (o *Orchestrator) Snapshot() (statestore.Info, error) {
	store, err := o.stateStore()
	if err != nil {
		return statestore.Info{}, err
	}
	return store.Snapshot(), nil
}

// Snapshots lists the snapshots, oldest first.
func (o *Orchestrator) Snapshots() ([]statestore.Info, error) {
	store, err := o.stateStore()
	if err != nil {
		return nil, err
	}
	return store.List(), nil
}

// RestoreSnapshot restores a snapshot. Simulations are not resumed.
func (o *Orchestrator) RestoreSnapshot(id string) (statestore.Result, error) {
	store, err := o.stateStore()
	if err != nil {
		return statestore.Result{}, err
	}
	return store.Restore(id)
}

// DeleteSnapshot deletes a snapshot.
func (o *Orchestrator) DeleteSnapshot(id string) error {
	store, err := o.stateStore()
	if err != nil {
		return err
	}
	return store.Delete(id)
}

// Reset sets all objects to their configured initial values.
func (o *Orchestrator) Reset() (statestore.Result, error) {
	store, err := o.stateStore()
	if err != nil {
		return statestore.Result{}, err
	}
	return store.Reset(), nil
}

func (o *Orchestrator) stateStore() (*statestore.Store, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.store == nil {
		return nil, fmt.Errorf("%w: devices not started", simerr.ErrNotFound)
	}
	return o.store, nil
}

// SPDX-License-Identifier: GPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/addralloc"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/device"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/impair"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simulation"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/statestore"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency is the default maximum number of
// devices started or stopped concurrently.
const DefaultMaxConcurrency = 16

// Failure describes a device that failed to start.
type Failure struct {
	DeviceID uint32 `json:"deviceId"`
	Error    string `json:"error"`

	// Err is the original error.
	Err error `json:"-"`
}

// StartResult is the outcome of [*Orchestrator.Start].
type StartResult struct {
	// Devices contains all the configured devices.
	Devices []device.Info `json:"devices"`

	// Failures contains the devices that failed to start.
	Failures []Failure `json:"failures"`
}

// Orchestrator manages the simulated devices.
//
// Construct using [New].
type Orchestrator struct {
	// AdoptExisting allows adopting device addresses already
	// present on the interface, such as those applied by a
	// previous run of the setup-ips command.
	AdoptExisting bool

	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// MaxConcurrency is the optional maximum number of devices started
	// concurrently. If zero, we use [DefaultMaxConcurrency].
	MaxConcurrency int

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	cfg     *config.Simulator
	factory engine.Factory
	iface   addralloc.Interface
	live    atomic.Bool
	sim     *simulation.Engine

	// startmu serializes Start.
	startmu sync.Mutex

	// mu protects the fields below.
	mu      sync.RWMutex
	alloc   *addralloc.Allocator
	byID    map[uint32]*device.Device
	devices []*device.Device
	started bool
	store   *statestore.Store
}

// New returns a new [*Orchestrator] for the given configuration using
// iface to manage addresses and factory to construct the engines.
func New(cfg *config.Simulator, iface addralloc.Interface, factory engine.Factory) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		factory: factory,
		iface:   iface,
		sim:     &simulation.Engine{},
	}
}

// Start validates the configuration, plans the addresses and starts all
// the devices concurrently. Devices failing to start are reported in the
// [StartResult]. The returned error wraps [simerr.ErrConfiguration] when the
// configuration is invalid and [simerr.ErrAllDevicesFailed] when no device
// could start; in the latter case the result is still returned.
func (o *Orchestrator) Start(ctx context.Context) (*StartResult, error) {
	o.startmu.Lock()
	defer o.startmu.Unlock()
	o.mu.RLock()
	started := o.started
	o.mu.RUnlock()
	if started {
		return nil, fmt.Errorf("%w: already started", simerr.ErrConfiguration)
	}

	t0 := o.timeNow()
	result, err := o.start(ctx)
	o.logger().InfoContext(
		ctx,
		"orchestratorStartDone",
		slog.Int("devices", len(o.cfg.Devices)),
		slog.Int("failures", o.countFailures(result)),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
		slog.Time("t0", t0),
		slog.Time("t", o.timeNow()),
	)
	return result, err
}

func (o *Orchestrator) countFailures(result *StartResult) int {
	if result == nil {
		return 0
	}
	return len(result.Failures)
}

func (o *Orchestrator) start(ctx context.Context) (*StartResult, error) {
	// 1. validate the whole configuration before touching the host
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	o.sim.Logger = o.Logger

	// 2. plan the addresses
	alloc, err := addralloc.NewAllocator(ctx, o.iface, o.cfg.Global.SubnetMask)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", simerr.ErrAllDevicesFailed, err)
	}
	alloc.AdoptExisting = o.AdoptExisting
	alloc.Logger = o.Logger
	alloc.TimeNow = o.TimeNow

	explicit := make([]netip.Addr, len(o.cfg.Devices))
	for idx := range o.cfg.Devices {
		explicit[idx] = o.cfg.Devices[idx].Addr()
	}
	plan, planErr := alloc.Plan(explicit)
	if planErr != nil && !errors.Is(planErr, simerr.ErrSubnetExhausted) {
		return nil, planErr
	}
	o.live.Store(true)

	// 3. build the devices
	byID := make(map[uint32]*device.Device, len(o.cfg.Devices))
	devices := make([]*device.Device, 0, len(o.cfg.Devices))
	pending := make(map[*device.Device]error)
	for idx := range o.cfg.Devices {
		dcfg := o.cfg.Devices[idx]
		dev, err := o.newDevice(&dcfg, plan[idx])
		if err != nil {
			return nil, err
		}
		if !plan[idx].IsValid() {
			pending[dev] = fmt.Errorf("device %d: %w", dcfg.DeviceID, planErr)
		}
		devices = append(devices, dev)
		byID[dcfg.DeviceID] = dev
	}
	o.mu.Lock()
	o.alloc, o.byID, o.devices = alloc, byID, devices
	o.mu.Unlock()

	// 4. start the devices concurrently
	maxc := o.MaxConcurrency
	if maxc <= 0 {
		maxc = DefaultMaxConcurrency
	}
	group := &errgroup.Group{}
	group.SetLimit(maxc)
	for _, dev := range devices {
		preErr := pending[dev]
		group.Go(func() error {
			o.startDevice(ctx, alloc, dev, preErr)
			return nil
		})
	}
	group.Wait()

	tables := make(map[uint32]statestore.Table, len(devices))
	for _, dev := range devices {
		tables[dev.ID()] = dev.Table()
	}
	store := statestore.New(tables, o.cfg.Global.MaxSnapshots)
	store.Logger = o.Logger
	store.TimeNow = o.TimeNow
	o.mu.Lock()
	o.store, o.started = store, true
	o.mu.Unlock()

	// 5. collect the results
	result := &StartResult{Failures: []Failure{}}
	var errv []error
	for _, dev := range devices {
		result.Devices = append(result.Devices, dev.Info())
		if status, err := dev.Status(); status == device.StatusFailed {
			result.Failures = append(result.Failures, Failure{
				DeviceID: dev.ID(),
				Error:    err.Error(),
				Err:      err,
			})
			errv = append(errv, err)
		}
	}
	if len(result.Failures) >= len(devices) {
		if len(devices) <= 0 {
			errv = append(errv, errors.New("no devices configured"))
		}
		return result, fmt.Errorf("%w: %w", simerr.ErrAllDevicesFailed, errors.Join(errv...))
	}
	return result, nil
}

func (o *Orchestrator) newDevice(dcfg *config.Device, addr netip.Addr) (*device.Device, error) {
	profile, err := impair.FromConfig(dcfg.Profile(&o.cfg.Global))
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", dcfg.DeviceID, err)
	}
	port := uint16(o.cfg.Global.BACnetPort)
	dev, err := device.New(*dcfg, netip.AddrPortFrom(addr, port), profile)
	if err != nil {
		return nil, err
	}
	dev.Logger = o.Logger
	dev.ShutdownTimeout = o.cfg.Global.ShutdownTimeout
	dev.TimeNow = o.TimeNow

	// a committed external write pauses the simulation of the object
	id := dcfg.DeviceID
	dev.Table().Observe(func(key objtable.Key, source objtable.Source) {
		o.sim.Pause(simulation.Ref{DeviceID: id, Key: key})
	})
	return dev, nil
}

// startDevice applies the address and starts the device. On failure,
// the address is released and the device is marked as failed.
func (o *Orchestrator) startDevice(
	ctx context.Context, alloc *addralloc.Allocator, dev *device.Device, preErr error) {
	if preErr != nil {
		dev.Fail(preErr)
		o.logDeviceFailure(ctx, dev, preErr)
		return
	}

	addr := dev.Address().Addr()
	if err := alloc.Apply(ctx, addr); err != nil {
		err = fmt.Errorf("device %d: %w", dev.ID(), err)
		dev.Fail(err)
		o.logDeviceFailure(ctx, dev, err)
		return
	}
	dev.OnStop("address", func(ctx context.Context) error {
		return alloc.Release(ctx, addr)
	})

	if err := dev.Start(ctx, o.factory); err != nil {
		o.logDeviceFailure(ctx, dev, err)
		dev.Stop(ctx)
		return
	}

	// runs first when the device stops
	id := dev.ID()
	dev.OnStop("simulation", func(context.Context) error {
		o.sim.StopDevice(id)
		return nil
	})
}

func (o *Orchestrator) logDeviceFailure(ctx context.Context, dev *device.Device, err error) {
	o.logger().WarnContext(
		ctx,
		"deviceFailed",
		slog.Uint64("deviceId", uint64(dev.ID())),
		slog.String("addr", dev.Address().String()),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
	)
}

// Stop cancels all the simulation tasks and stops all the devices
// concurrently, releasing their addresses. Errors do not interrupt the
// sequence: they are logged and returned joined.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.startmu.Lock()
	defer o.startmu.Unlock()
	t0 := o.timeNow()
	cancelled := o.sim.StopAll()

	o.mu.RLock()
	devices := o.devices
	alloc := o.alloc
	o.mu.RUnlock()

	var (
		errmu sync.Mutex
		errv  []error
	)
	group := &errgroup.Group{}
	for _, dev := range devices {
		group.Go(func() error {
			if err := dev.Stop(ctx); err != nil {
				errmu.Lock()
				errv = append(errv, fmt.Errorf("device %d: %w", dev.ID(), err))
				errmu.Unlock()
			}
			return nil
		})
	}
	group.Wait()

	// release whatever the devices did not release
	if alloc != nil {
		if err := alloc.ReleaseAll(ctx); err != nil {
			errv = append(errv, err)
		}
	}

	err := errors.Join(errv...)
	o.logger().InfoContext(
		ctx,
		"orchestratorStopDone",
		slog.Int("devices", len(devices)),
		slog.Int("simulations", cancelled),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
		slog.Time("t0", t0),
		slog.Time("t", o.timeNow()),
	)
	return err
}

func (o *Orchestrator) timeNow() time.Time {
	if o.TimeNow != nil {
		return o.TimeNow()
	}
	return time.Now()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return discard
}

// discard is the logger used when Logger is nil.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

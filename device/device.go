// SPDX-License-Identifier: GPL-3.0-or-later

package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/closepool"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/impair"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Status is the lifecycle status of a [*Device].
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
)

// Info summarizes the state of a [*Device].
type Info struct {
	DeviceID uint32 `json:"deviceId"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Port     uint16 `json:"port"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	Objects  int    `json:"objects"`
}

// Device is a simulated device.
//
// Construct using [New].
type Device struct {
	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// ShutdownTimeout is the optional timeout for each cleanup
	// step run by [*Device.Stop].
	ShutdownTimeout time.Duration

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	address      netip.AddrPort
	cfg          config.Device
	cleanup      closepool.Pool
	engineErrors atomic.Uint64
	impairer     *impair.Impairer
	table        *objtable.Table

	// mu protects the fields below.
	mu     sync.RWMutex
	engine engine.Engine
	err    error
	status Status
}

// New builds a pending device bound to the given address and port
// using the given impairment profile.
func New(cfg config.Device, address netip.AddrPort, profile impair.Profile) (*Device, error) {
	table, err := objtable.NewTable(cfg.Objects)
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", cfg.DeviceID, err)
	}
	im, err := impair.New(fmt.Sprintf("impair:%d", cfg.DeviceID), profile)
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", cfg.DeviceID, err)
	}
	return &Device{
		address:  address,
		cfg:      cfg,
		impairer: im,
		status:   StatusPending,
		table:    table,
	}, nil
}

// ID returns the device identifier.
func (d *Device) ID() uint32 {
	return d.cfg.DeviceID
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.cfg.Name
}

// Address returns the address and port the device binds.
func (d *Device) Address() netip.AddrPort {
	return d.address
}

// LocalAddr returns the address and port the running engine is bound to.
func (d *Device) LocalAddr() (netip.AddrPort, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.engine == nil {
		return netip.AddrPort{}, false
	}
	return d.engine.LocalAddr(), true
}

// Table returns the device object table.
func (d *Device) Table() *objtable.Table {
	return d.table
}

// Impairer returns the device impairer.
func (d *Device) Impairer() *impair.Impairer {
	return d.impairer
}

// Status returns the device status and the error that caused
// the failure, if any.
func (d *Device) Status() (Status, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status, d.err
}

// Info returns a summary of the device state.
func (d *Device) Info() Info {
	status, err := d.Status()
	info := Info{
		DeviceID: d.cfg.DeviceID,
		Name:     d.cfg.Name,
		Address:  d.address.Addr().String(),
		Port:     d.address.Port(),
		Status:   status,
		Objects:  d.table.Len(),
	}
	if err != nil {
		info.Error = err.Error()
	}
	return info
}

// EngineErrors returns the number of failed engine write notifications.
func (d *Device) EngineErrors() uint64 {
	return d.engineErrors.Load()
}

// OnStop registers a cleanup step run by [*Device.Stop] after the
// steps registered later, including the engine shutdown.
func (d *Device) OnStop(name string, fn closepool.Func) {
	d.cleanup.Add(name, fn)
}

// Start constructs the engine using the factory and registers the
// objects. On failure, the device is marked as failed and the engine,
// if any, is shut down.
func (d *Device) Start(ctx context.Context, factory engine.Factory) error {
	t0 := d.timeNow()
	err := d.start(ctx, factory)
	d.mu.Lock()
	if err != nil {
		d.status, d.err = StatusFailed, err
	} else {
		d.status = StatusReady
	}
	d.mu.Unlock()
	d.logger().InfoContext(
		ctx,
		"deviceStartDone",
		slog.Uint64("deviceId", uint64(d.cfg.DeviceID)),
		slog.String("addr", d.address.String()),
		slog.Int("objects", d.table.Len()),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
		slog.Time("t0", t0),
		slog.Time("t", d.timeNow()),
	)
	return err
}

func (d *Device) start(ctx context.Context, factory engine.Factory) error {
	if status, _ := d.Status(); status != StatusPending {
		return fmt.Errorf("%w: device %d is %s", simerr.ErrEngine, d.cfg.DeviceID, status)
	}

	eng, err := factory.New(ctx, engine.Config{
		Address:      d.address,
		DeviceID:     d.cfg.DeviceID,
		DeviceName:   d.cfg.Name,
		Handler:      d,
		Logger:       d.Logger,
		WrapOutbound: d.wrapOutbound,
	})
	if err != nil {
		return err
	}
	d.cleanup.Add("engine", eng.Shutdown)

	for _, key := range d.table.Keys() {
		obj, _ := d.table.Config(key)
		desc := engine.Descriptor{
			Key:         key,
			Name:        obj.Name,
			Unit:        obj.Unit,
			Commandable: obj.Commandable,
		}
		if err := eng.RegisterObject(desc); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.engine = eng
	d.mu.Unlock()
	return nil
}

func (d *Device) wrapOutbound(conn net.PacketConn) net.PacketConn {
	wrapped := impair.WrapPacketConn(conn, d.impairer)
	wrapped.Logger = d.Logger
	return wrapped
}

// Fail marks a pending device as failed.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	if d.status == StatusPending {
		d.status, d.err = StatusFailed, err
	}
	d.mu.Unlock()
}

// Stop runs the cleanup steps in reverse registration order,
// logging and joining their errors. The device status becomes
// stopped unless the device had failed.
func (d *Device) Stop(ctx context.Context) error {
	t0 := d.timeNow()
	d.cleanup.StepTimeout = d.ShutdownTimeout
	err := d.cleanup.Close(ctx)

	d.mu.Lock()
	d.engine = nil
	if d.status != StatusFailed {
		d.status = StatusStopped
	}
	d.mu.Unlock()

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	d.logger().Log(
		ctx,
		level,
		"deviceStopDone",
		slog.Uint64("deviceId", uint64(d.cfg.DeviceID)),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
		slog.Time("t0", t0),
		slog.Time("t", d.timeNow()),
	)
	return err
}

// SetProfile installs a new impairment profile affecting only
// the responses sent afterwards.
func (d *Device) SetProfile(profile impair.Profile) error {
	if err := d.impairer.SetProfile(profile); err != nil {
		return err
	}
	d.logger().Info(
		"deviceProfileChanged",
		slog.Uint64("deviceId", uint64(d.cfg.DeviceID)),
		slog.String("profile", string(profile.Name)),
	)
	return nil
}

func (d *Device) timeNow() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}

func (d *Device) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return discard
}

// discard is the logger used when Logger is nil.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

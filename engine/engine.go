// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"log/slog"
	"net"
	"net/netip"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
)

// Descriptor describes an object registered with an [Engine].
type Descriptor struct {
	// Key identifies the object.
	Key objtable.Key

	// Name is the object name.
	Name string

	// Unit is the optional engineering unit.
	Unit string

	// Commandable indicates whether the object accepts writes.
	Commandable bool
}

// Handler is implemented by the device runtime to serve the
// requests received by an [Engine].
type Handler interface {
	// ReadProperty returns the present value of an object.
	ReadProperty(ctx context.Context, key objtable.Key) (any, error)

	// WriteProperty writes the present value of an object.
	WriteProperty(ctx context.Context, key objtable.Key, value any) error
}

// Config contains the parameters to construct an [Engine].
type Config struct {
	// Address is the address and port to bind.
	Address netip.AddrPort

	// DeviceID is the device identifier announced by the engine.
	DeviceID uint32

	// DeviceName is the device name announced by the engine.
	DeviceName string

	// Handler serves the object reads and writes.
	Handler Handler

	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// WrapOutbound optionally wraps the conn used to send responses
	// to confirmed requests. The returned conn owns the given conn,
	// so closing it must close the given conn.
	WrapOutbound func(conn net.PacketConn) net.PacketConn
}

// Engine is a protocol engine instance serving one device.
type Engine interface {
	// LocalAddr returns the bound address and port.
	LocalAddr() netip.AddrPort

	// RegisterObject makes an object visible through the protocol.
	RegisterObject(desc Descriptor) error

	// ApplyWrite notifies the engine of a value written through another
	// channel. It returns an error wrapping [simerr.ErrWriteDenied] if the
	// engine does not host the object.
	ApplyWrite(key objtable.Key, value any) error

	// Shutdown stops the engine, waiting for in-flight requests
	// until the context is done.
	Shutdown(ctx context.Context) error
}

// Factory creates [Engine] instances.
type Factory interface {
	New(ctx context.Context, cfg Config) (Engine, error)
}

// FactoryFunc adapts a function to the [Factory] interface.
type FactoryFunc func(ctx context.Context, cfg Config) (Engine, error)

var _ Factory = FactoryFunc(nil)

// New implements [Factory].
func (fx FactoryFunc) New(ctx context.Context, cfg Config) (Engine, error) {
	return fx(ctx, cfg)
}

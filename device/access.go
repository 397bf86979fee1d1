// SPDX-License-Identifier: GPL-3.0-or-later

package device

import (
	"context"
	"log/slog"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
)

var _ engine.Handler = &Device{}

// Read returns a view of an object or an error wrapping [simerr.ErrNotFound].
func (d *Device) Read(key objtable.Key) (objtable.View, error) {
	return d.table.Read(key)
}

// List returns views of all objects in configuration order.
func (d *Device) List() []objtable.View {
	return d.table.List()
}

// Write writes an object through the management channel.
//
// Non-commandable objects are only written when force is true. Once the
// write is committed, the engine is notified; a notification failure is
// logged and counted but does not fail the write.
func (d *Device) Write(ctx context.Context, key objtable.Key, value any, force bool) (objtable.View, error) {
	view, err := d.table.Write(key, value, objtable.WriteOptions{Force: force, Source: objtable.SourceAPI})
	d.logWrite(ctx, key, objtable.SourceAPI, err)
	if err != nil {
		return view, err
	}

	d.mu.RLock()
	eng := d.engine
	d.mu.RUnlock()
	if eng == nil {
		return view, nil
	}
	if err := eng.ApplyWrite(key, view.Value); err != nil {
		d.engineErrors.Add(1)
		d.logger().WarnContext(
			ctx,
			"engineApplyWriteFailed",
			slog.Uint64("deviceId", uint64(d.cfg.DeviceID)),
			slog.String("object", key.String()),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
	return view, nil
}

// ReadProperty implements [engine.Handler].
func (d *Device) ReadProperty(ctx context.Context, key objtable.Key) (any, error) {
	view, err := d.table.Read(key)
	if err != nil {
		return nil, err
	}
	return view.Value, nil
}

// WriteProperty implements [engine.Handler]. Protocol writes are
// never forced.
func (d *Device) WriteProperty(ctx context.Context, key objtable.Key, value any) error {
	_, err := d.table.Write(key, value, objtable.WriteOptions{Source: objtable.SourceProtocol})
	d.logWrite(ctx, key, objtable.SourceProtocol, err)
	return err
}

func (d *Device) logWrite(ctx context.Context, key objtable.Key, source objtable.Source, err error) {
	d.logger().InfoContext(
		ctx,
		"objectWriteDone",
		slog.Uint64("deviceId", uint64(d.cfg.DeviceID)),
		slog.String("object", key.String()),
		slog.String("source", source.String()),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
	)
}

// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
)

// WrapPacketConn wraps the socket of a device to emit a structured
// debug log for every datagram read or written using cfg.Logger.
func WrapPacketConn(ctx context.Context, cfg Config, conn net.PacketConn) net.PacketConn {
	return &loggingConn{
		PacketConn: conn,
		ctx:        ctx,
		deviceID:   cfg.DeviceID,
		laddr:      conn.LocalAddr().String(),
		logger:     cfg.Logger,
	}
}

// loggingConn is the [net.PacketConn] returned by [WrapPacketConn].
type loggingConn struct {
	net.PacketConn
	closeonce sync.Once
	ctx       context.Context // only used for logging
	deviceID  uint32
	laddr     string
	logger    *slog.Logger
}

// ReadFrom implements [net.PacketConn].
func (c *loggingConn) ReadFrom(buf []byte) (int, net.Addr, error) {
	t0 := time.Now()
	count, addr, err := c.PacketConn.ReadFrom(buf)
	c.logger.DebugContext(
		c.ctx,
		"readFromDone",
		slog.Uint64("deviceId", uint64(c.deviceID)),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", addrString(addr)),
		slog.Time("t0", t0),
		slog.Time("t", time.Now()),
	)
	return count, addr, err
}

// WriteTo implements [net.PacketConn].
func (c *loggingConn) WriteTo(data []byte, addr net.Addr) (int, error) {
	t0 := time.Now()
	count, err := c.PacketConn.WriteTo(data, addr)
	c.logger.DebugContext(
		c.ctx,
		"writeToDone",
		slog.Uint64("deviceId", uint64(c.deviceID)),
		slog.Int("ioBufferSize", len(data)),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", addrString(addr)),
		slog.Time("t0", t0),
		slog.Time("t", time.Now()),
	)
	return count, err
}

// Close implements [net.PacketConn].
func (c *loggingConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		err = c.PacketConn.Close()
		c.logger.DebugContext(
			c.ctx,
			"closeDone",
			slog.Uint64("deviceId", uint64(c.deviceID)),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("localAddr", c.laddr),
		)
	})
	return
}

// addrString is a nil-safe way to format an address.
func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// SPDX-License-Identifier: GPL-3.0-or-later

package impair

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// PacketConn is a [net.PacketConn] impairing the datagrams written
// using WriteTo. Reads are not affected.
//
// Construct using [WrapPacketConn].
type PacketConn struct {
	net.PacketConn

	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// closed is closed by Close to interrupt pending delays.
	closed chan struct{}

	// closeOnce ensures we close closed just once.
	closeOnce sync.Once

	// im takes the impairment decisions.
	im *Impairer
}

// WrapPacketConn returns a [*PacketConn] impairing conn using im.
//
// The returned conn owns conn: closing it closes conn.
func WrapPacketConn(conn net.PacketConn, im *Impairer) *PacketConn {
	return &PacketConn{
		PacketConn: conn,
		closed:     make(chan struct{}),
		im:         im,
	}
}

// WriteTo implements [net.PacketConn].
//
// A dropped datagram is reported as fully written. A delayed datagram
// blocks the caller for the delay, or until the conn is closed, in which
// case [net.ErrClosed] is returned.
func (c *PacketConn) WriteTo(data []byte, addr net.Addr) (int, error) {
	decision := c.im.Decide()

	if decision.Drop {
		if c.Logger != nil {
			c.Logger.DebugContext(
				context.Background(),
				"impairDrop",
				slog.String("localAddr", c.LocalAddr().String()),
				slog.String("remoteAddr", addr.String()),
				slog.Int("ioBufferSize", len(data)),
			)
		}
		return len(data), nil
	}

	if decision.Delay > 0 {
		timer := time.NewTimer(decision.Delay)
		select {
		case <-timer.C:
		case <-c.closed:
			timer.Stop()
			return 0, net.ErrClosed
		}
	}
	return c.PacketConn.WriteTo(data, addr)
}

// Close implements [net.PacketConn].
func (c *PacketConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return c.PacketConn.Close()
}

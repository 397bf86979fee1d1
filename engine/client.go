// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
)

// DefaultClientTimeout is the default [*Client] request timeout.
const DefaultClientTimeout = 3 * time.Second

// Client sends requests using the JSON datagram protocol.
//
// The zero value is ready to use.
type Client struct {
	// DialContextFunc is the optional dialer for creating new
	// UDP connections. If this field is nil, the default
	// dialer from the [net] package will be used.
	DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// Timeout is the optional per-request timeout. If zero,
	// we use [DefaultClientTimeout].
	Timeout time.Duration

	invokeID atomic.Uint32
}

// ReadProperty reads the present value of an object. Numbers are
// returned as [json.Number].
func (c *Client) ReadProperty(ctx context.Context, addr netip.AddrPort, key objtable.Key) (any, error) {
	resp, err := c.RoundTrip(ctx, addr, &Request{Op: OpRead, Type: key.Type, Instance: key.Instance})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// WriteProperty writes the present value of an object.
func (c *Client) WriteProperty(ctx context.Context, addr netip.AddrPort, key objtable.Key, value any) error {
	resp, err := c.RoundTrip(ctx, addr, &Request{
		Op:       OpWrite,
		Type:     key.Type,
		Instance: key.Instance,
		Value:    value,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

// WhoIs sends a who-is request and returns the i-am response.
func (c *Client) WhoIs(ctx context.Context, addr netip.AddrPort) (*Response, error) {
	resp, err := c.RoundTrip(ctx, addr, &Request{Op: OpWhoIs})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// RoundTrip sends a request and waits for the response with the same
// invoke ID, ignoring stale responses. It overwrites req.InvokeID.
func (c *Client) RoundTrip(ctx context.Context, addr netip.AddrPort, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req.InvokeID = c.invokeID.Add(1)
	t0 := time.Now()
	resp, err := c.roundTrip(ctx, addr, req)
	if c.Logger != nil {
		c.Logger.DebugContext(
			ctx,
			"clientRoundTripDone",
			slog.String("op", req.Op),
			slog.String("remoteAddr", addr.String()),
			slog.Uint64("invokeId", uint64(req.InvokeID)),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t0", t0),
			slog.Time("t", time.Now()),
		)
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, addr netip.AddrPort, req *Request) (*Response, error) {
	conn, err := c.dial(ctx, "udp", addr.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(data); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxDatagramSize)
	for {
		count, err := conn.Read(buffer)
		if err != nil {
			return nil, err
		}
		var resp Response
		if err := decode(buffer[:count], &resp); err != nil {
			return nil, fmt.Errorf("malformed response: %w", err)
		}
		if resp.InvokeID == req.InvokeID {
			return &resp, nil
		}
	}
}

func (c *Client) dial(ctx context.Context, network, address string) (net.Conn, error) {
	if c.DialContextFunc != nil {
		return c.DialContextFunc(ctx, network, address)
	}
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, address)
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultClientTimeout
}

// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/netipx"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// DefaultMaxConcurrency is the default maximum number of
// requests a [*UDPEngine] serves concurrently.
const DefaultMaxConcurrency = 64

// UDPFactory creates [*UDPEngine] instances.
//
// The zero value is ready to use.
type UDPFactory struct {
	// ListenPacketFunc is the optional function to create the listening
	// socket. If this field is nil, we use [net.ListenConfig].
	ListenPacketFunc func(ctx context.Context, network, address string) (net.PacketConn, error)

	// MaxConcurrency is the optional maximum number of requests served
	// concurrently. If zero, we use [DefaultMaxConcurrency].
	MaxConcurrency int

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	// WrapConn is the optional function wrapping the listening socket
	// when the [Config] contains a logger (e.g., [WrapPacketConn]). If
	// this field is nil, we do not wrap the socket.
	WrapConn func(ctx context.Context, cfg Config, conn net.PacketConn) net.PacketConn
}

var _ Factory = &UDPFactory{}

// New implements [Factory].
func (fx *UDPFactory) New(ctx context.Context, cfg Config) (Engine, error) {
	return fx.Listen(ctx, cfg)
}

// Listen binds the socket and starts serving the datagram protocol.
func (fx *UDPFactory) Listen(ctx context.Context, cfg Config) (*UDPEngine, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%w: nil handler", simerr.ErrEngine)
	}
	if !cfg.Address.IsValid() {
		return nil, fmt.Errorf("%w: invalid address %s", simerr.ErrEngine, cfg.Address)
	}

	// bind the raw socket
	t0 := fx.timeNow()
	raw, err := fx.listenPacket(ctx, "udp4", cfg.Address.String())
	if cfg.Logger != nil {
		cfg.Logger.InfoContext(
			ctx,
			"engineListenDone",
			slog.String("addr", cfg.Address.String()),
			slog.Uint64("deviceId", uint64(cfg.DeviceID)),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t0", t0),
			slog.Time("t", fx.timeNow()),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", simerr.ErrEngine, cfg.Address, err)
	}

	if raw != nil && cfg.Logger != nil && fx.WrapConn != nil {
		raw = fx.WrapConn(ctx, cfg, raw)
	}

	// attach the outbound wrapper, which owns the raw socket
	out := raw
	if cfg.WrapOutbound != nil {
		out = cfg.WrapOutbound(raw)
	}

	maxc := fx.MaxConcurrency
	if maxc <= 0 {
		maxc = DefaultMaxConcurrency
	}
	eng := &UDPEngine{
		cfg:     cfg,
		done:    make(chan struct{}),
		objects: make(map[objtable.Key]Descriptor),
		out:     out,
		raw:     raw,
		sem:     make(chan struct{}, maxc),
	}
	eng.loopwg.Add(1)
	go eng.serve()
	return eng, nil
}

func (fx *UDPFactory) listenPacket(ctx context.Context, network, address string) (net.PacketConn, error) {
	if fx.ListenPacketFunc != nil {
		return fx.ListenPacketFunc(ctx, network, address)
	}
	lc := &net.ListenConfig{}
	return lc.ListenPacket(ctx, network, address)
}

func (fx *UDPFactory) timeNow() time.Time {
	if fx.TimeNow != nil {
		return fx.TimeNow()
	}
	return time.Now()
}

// UDPEngine serves the JSON datagram protocol for one device.
//
// Construct using [*UDPFactory].
type UDPEngine struct {
	// applied counts the writes notified through ApplyWrite.
	applied atomic.Uint64

	cfg       Config
	closeErr  error
	closeOnce sync.Once
	done      chan struct{}

	// loopwg tracks the serve loop, reqwg the in-flight requests.
	loopwg sync.WaitGroup
	reqwg  sync.WaitGroup

	mu      sync.RWMutex
	objects map[objtable.Key]Descriptor

	// out sends confirmed responses and raw sends discovery replies.
	out net.PacketConn
	raw net.PacketConn

	sem chan struct{}
}

var _ Engine = &UDPEngine{}

// LocalAddr implements [Engine].
func (eng *UDPEngine) LocalAddr() netip.AddrPort {
	return netipx.AddrToAddrPort(eng.raw.LocalAddr())
}

// RegisterObject implements [Engine].
func (eng *UDPEngine) RegisterObject(desc Descriptor) error {
	select {
	case <-eng.done:
		return fmt.Errorf("%w: register %s: %w", simerr.ErrEngine, desc.Key, net.ErrClosed)
	default:
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if _, found := eng.objects[desc.Key]; found {
		return fmt.Errorf("%w: object %s already registered", simerr.ErrEngine, desc.Key)
	}
	eng.objects[desc.Key] = desc
	return nil
}

// ApplyWrite implements [Engine].
//
// The engine reads present values through the [Handler], so a write
// committed elsewhere is already visible and we only account for it.
func (eng *UDPEngine) ApplyWrite(key objtable.Key, value any) error {
	if _, found := eng.lookup(key); !found {
		return fmt.Errorf("%w: object %s not hosted by engine", simerr.ErrWriteDenied, key)
	}
	eng.applied.Add(1)
	if eng.cfg.Logger != nil {
		eng.cfg.Logger.Debug(
			"engineApplyWrite",
			slog.Uint64("deviceId", uint64(eng.cfg.DeviceID)),
			slog.String("object", key.String()),
			slog.Any("value", value),
		)
	}
	return nil
}

// AppliedWrites returns the number of writes notified through ApplyWrite.
func (eng *UDPEngine) AppliedWrites() uint64 {
	return eng.applied.Load()
}

// Shutdown implements [Engine].
func (eng *UDPEngine) Shutdown(ctx context.Context) error {
	eng.closeOnce.Do(func() {
		close(eng.done)
		eng.closeErr = eng.out.Close()
	})

	waitch := make(chan struct{})
	go func() {
		eng.loopwg.Wait()
		eng.reqwg.Wait()
		close(waitch)
	}()
	select {
	case <-waitch:
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown: %w", simerr.ErrEngine, ctx.Err())
	}

	if eng.closeErr != nil {
		return fmt.Errorf("%w: shutdown: %w", simerr.ErrEngine, eng.closeErr)
	}
	return nil
}

func (eng *UDPEngine) lookup(key objtable.Key) (Descriptor, bool) {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	desc, found := eng.objects[key]
	return desc, found
}

// serve reads datagrams until the socket is closed.
func (eng *UDPEngine) serve() {
	defer eng.loopwg.Done()
	buffer := make([]byte, maxDatagramSize)
	for {
		count, addr, err := eng.raw.ReadFrom(buffer)
		if err != nil {
			select {
			case <-eng.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			eng.logReadError(err)
			continue
		}

		// apply backpressure when too many requests are in flight
		select {
		case eng.sem <- struct{}{}:
		case <-eng.done:
			return
		}
		pkt := make([]byte, count)
		copy(pkt, buffer[:count])
		eng.reqwg.Add(1)
		go func() {
			defer func() {
				<-eng.sem
				eng.reqwg.Done()
			}()
			eng.handle(pkt, addr)
		}()
	}
}

func (eng *UDPEngine) logReadError(err error) {
	if eng.cfg.Logger != nil {
		eng.cfg.Logger.Warn(
			"engineReadError",
			slog.Uint64("deviceId", uint64(eng.cfg.DeviceID)),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
}

// handle serves a single request datagram.
func (eng *UDPEngine) handle(pkt []byte, addr net.Addr) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-eng.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var req Request
	if err := decode(pkt, &req); err != nil {
		eng.reply(ctx, eng.out, addr, &Response{Error: CodeMalformedRequest})
		return
	}

	switch req.Op {
	case OpRead:
		eng.reply(ctx, eng.out, addr, eng.read(ctx, &req))

	case OpWrite:
		eng.reply(ctx, eng.out, addr, eng.write(ctx, &req))

	case OpWhoIs:
		if !eng.matches(&req) {
			return
		}
		eng.reply(ctx, eng.raw, addr, &Response{
			Op:         OpIAm,
			InvokeID:   req.InvokeID,
			OK:         true,
			DeviceID:   eng.cfg.DeviceID,
			DeviceName: eng.cfg.DeviceName,
		})

	default:
		eng.reply(ctx, eng.out, addr, &Response{InvokeID: req.InvokeID, Error: CodeUnrecognizedService})
	}
}

func (eng *UDPEngine) read(ctx context.Context, req *Request) *Response {
	key := req.Key()
	if _, found := eng.lookup(key); !found {
		return &Response{InvokeID: req.InvokeID, Error: CodeUnknownObject}
	}
	value, err := eng.cfg.Handler.ReadProperty(ctx, key)
	if err != nil {
		return &Response{InvokeID: req.InvokeID, Error: errorCode(err)}
	}
	return &Response{InvokeID: req.InvokeID, OK: true, Value: value}
}

func (eng *UDPEngine) write(ctx context.Context, req *Request) *Response {
	key := req.Key()
	if _, found := eng.lookup(key); !found {
		return &Response{InvokeID: req.InvokeID, Error: CodeUnknownObject}
	}
	if err := eng.cfg.Handler.WriteProperty(ctx, key, req.Value); err != nil {
		return &Response{InvokeID: req.InvokeID, Error: errorCode(err)}
	}
	return &Response{InvokeID: req.InvokeID, OK: true}
}

// matches returns whether a who-is range includes this device.
func (eng *UDPEngine) matches(req *Request) bool {
	id := eng.cfg.DeviceID
	if req.Low != nil && id < *req.Low {
		return false
	}
	if req.High != nil && id > *req.High {
		return false
	}
	return true
}

func (eng *UDPEngine) reply(ctx context.Context, conn net.PacketConn, addr net.Addr, resp *Response) {
	data, err := json.Marshal(resp)
	if err == nil {
		_, err = conn.WriteTo(data, addr)
	}
	if eng.cfg.Logger != nil {
		eng.cfg.Logger.DebugContext(
			ctx,
			"engineReplyDone",
			slog.Uint64("deviceId", uint64(eng.cfg.DeviceID)),
			slog.String("remoteAddr", addr.String()),
			slog.Uint64("invokeId", uint64(resp.InvokeID)),
			slog.Bool("ok", resp.OK),
			slog.String("errorCode", resp.Error),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
}

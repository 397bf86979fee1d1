// SPDX-License-Identifier: GPL-3.0-or-later

package addralloc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os/exec"
	"strings"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
)

// DefaultCommandTimeout is the default timeout for each ip(8) invocation.
const DefaultCommandTimeout = 5 * time.Second

// IPRoute is the Linux [Interface] implemented using the ip(8) tool.
//
// Construct using [NewIPRoute].
type IPRoute struct {
	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// RunFunc is the optional function running the ip(8) tool with
	// the given arguments and returning its combined output. If this
	// field is nil, we use [os/exec] to run the "ip" binary.
	RunFunc func(ctx context.Context, args ...string) ([]byte, error)

	// Timeout is the optional timeout of each invocation. If this field
	// is zero, we use [DefaultCommandTimeout].
	Timeout time.Duration

	// name is the interface name.
	name string
}

var _ Interface = &IPRoute{}

// NewIPRoute returns a new [*IPRoute] managing the named interface.
//
// The name is validated to make sure it is safe to pass to ip(8).
func NewIPRoute(name string) (*IPRoute, error) {
	if !config.ValidInterfaceName(name) {
		return nil, fmt.Errorf("%w: invalid interface name %q", errInvalidInterface, name)
	}
	return &IPRoute{name: name}, nil
}

// errInvalidInterface is returned by [NewIPRoute].
var errInvalidInterface = errors.New("addralloc: invalid interface")

// Name returns the interface name.
func (r *IPRoute) Name() string {
	return r.name
}

// PrimaryPrefix implements [Interface].
func (r *IPRoute) PrimaryPrefix(ctx context.Context) (netip.Prefix, error) {
	output, err := r.run(ctx, "-4", "-o", "addr", "show", r.name)
	if err != nil {
		return netip.Prefix{}, err
	}
	return parsePrimaryPrefix(output, r.name)
}

// parsePrimaryPrefix extracts the first IPv4 prefix from the output
// of `ip -4 -o addr show <iface>`, whose lines look like:
//
//	2: eth0    inet 172.17.0.2/16 brd 172.17.255.255 scope global eth0
func parsePrimaryPrefix(output []byte, name string) (netip.Prefix, error) {
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		for idx := 0; idx+1 < len(fields); idx++ {
			if fields[idx] != "inet" {
				continue
			}
			prefix, err := netip.ParsePrefix(fields[idx+1])
			if err == nil && prefix.Addr().Is4() {
				return prefix, nil
			}
		}
	}
	return netip.Prefix{}, fmt.Errorf("no IPv4 address found on interface %s", name)
}

// AddAddress implements [Interface].
func (r *IPRoute) AddAddress(ctx context.Context, prefix netip.Prefix) error {
	output, err := r.run(ctx, "addr", "add", prefix.String(), "dev", r.name)
	if err != nil && bytes.Contains(output, []byte("File exists")) {
		return fmt.Errorf("ip addr add %s: %w", prefix, ErrAddressExists)
	}
	return err
}

// RemoveAddress implements [Interface].
func (r *IPRoute) RemoveAddress(ctx context.Context, prefix netip.Prefix) error {
	output, err := r.run(ctx, "addr", "del", prefix.String(), "dev", r.name)
	if err != nil && bytes.Contains(output, []byte("Cannot assign requested address")) {
		return fmt.Errorf("ip addr del %s: %w", prefix, ErrAddressNotAvailable)
	}
	return err
}

// run runs the ip(8) tool with a bounded timeout.
func (r *IPRoute) run(ctx context.Context, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t0 := time.Now()
	runFunc := r.RunFunc
	if runFunc == nil {
		runFunc = runIP
	}
	output, err := runFunc(ctx, args...)
	if err != nil {
		err = fmt.Errorf("ip %s: %w: %s", strings.Join(args, " "), err, bytes.TrimSpace(output))
	}

	if r.Logger != nil {
		r.Logger.DebugContext(
			ctx,
			"ipCommandDone",
			slog.Any("args", args),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("ifName", r.name),
			slog.Time("t0", t0),
			slog.Time("t", time.Now()),
		)
	}
	return output, err
}

// runIP is the default RunFunc.
func runIP(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "ip", args...).CombinedOutput()
}

// SPDX-License-Identifier: GPL-3.0-or-later

package addralloc_test

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/addralloc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIPRoute(t *testing.T) {
	for _, name := range []string{"eth0", "ens3", "br-1a2b.100", "veth_x"} {
		r, err := addralloc.NewIPRoute(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, r.Name())
	}
	for _, name := range []string{"", "-eth0", "eth0 up", "this-name-is-too-long", "eth0;reboot"} {
		_, err := addralloc.NewIPRoute(name)
		assert.Error(t, err, name)
	}
}

func TestIPRoute(t *testing.T) {
	ctx := context.Background()
	exitErr := errors.New("exit status 2")

	newRoute := func(t *testing.T, run func(args []string) ([]byte, error)) *addralloc.IPRoute {
		r, err := addralloc.NewIPRoute("eth0")
		require.NoError(t, err)
		r.RunFunc = func(ctx context.Context, args ...string) ([]byte, error) {
			return run(args)
		}
		return r
	}

	t.Run("primary prefix", func(t *testing.T) {
		var got []string
		r := newRoute(t, func(args []string) ([]byte, error) {
			got = args
			return []byte("2: eth0    inet 172.17.0.2/16 brd 172.17.255.255 scope global eth0\\" +
				"       valid_lft forever preferred_lft forever\n"), nil
		})
		prefix, err := r.PrimaryPrefix(ctx)
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix("172.17.0.2/16"), prefix)
		assert.Equal(t, "-4 -o addr show eth0", strings.Join(got, " "))
	})

	t.Run("no IPv4 address", func(t *testing.T) {
		r := newRoute(t, func(args []string) ([]byte, error) {
			return nil, nil
		})
		_, err := r.PrimaryPrefix(ctx)
		assert.ErrorContains(t, err, "no IPv4 address found on interface eth0")
	})

	t.Run("add address", func(t *testing.T) {
		var got []string
		r := newRoute(t, func(args []string) ([]byte, error) {
			got = args
			return nil, nil
		})
		require.NoError(t, r.AddAddress(ctx, netip.MustParsePrefix("172.17.0.3/16")))
		assert.Equal(t, "addr add 172.17.0.3/16 dev eth0", strings.Join(got, " "))
	})

	t.Run("add existing address", func(t *testing.T) {
		r := newRoute(t, func(args []string) ([]byte, error) {
			return []byte("RTNETLINK answers: File exists\n"), exitErr
		})
		err := r.AddAddress(ctx, netip.MustParsePrefix("172.17.0.3/16"))
		assert.ErrorIs(t, err, addralloc.ErrAddressExists)
	})

	t.Run("add failure", func(t *testing.T) {
		r := newRoute(t, func(args []string) ([]byte, error) {
			return []byte("RTNETLINK answers: Operation not permitted\n"), exitErr
		})
		err := r.AddAddress(ctx, netip.MustParsePrefix("172.17.0.3/16"))
		require.ErrorIs(t, err, exitErr)
		assert.ErrorContains(t, err, "Operation not permitted")
		assert.NotErrorIs(t, err, addralloc.ErrAddressExists)
	})

	t.Run("remove missing address", func(t *testing.T) {
		var got []string
		r := newRoute(t, func(args []string) ([]byte, error) {
			got = args
			return []byte("RTNETLINK answers: Cannot assign requested address\n"), exitErr
		})
		err := r.RemoveAddress(ctx, netip.MustParsePrefix("172.17.0.3/16"))
		assert.ErrorIs(t, err, addralloc.ErrAddressNotAvailable)
		assert.Equal(t, "addr del 172.17.0.3/16 dev eth0", strings.Join(got, " "))
	})
}

func TestLoopback(t *testing.T) {
	ctx := context.Background()
	var iface addralloc.Interface = addralloc.Loopback{}
	prefix, err := iface.PrimaryPrefix(ctx)
	require.NoError(t, err)
	assert.Equal(t, addralloc.LoopbackPrefix, prefix)
	assert.NoError(t, iface.AddAddress(ctx, netip.MustParsePrefix("127.0.0.2/24")))
	assert.NoError(t, iface.RemoveAddress(ctx, netip.MustParsePrefix("127.0.0.2/24")))
}

// SPDX-License-Identifier: GPL-3.0-or-later

package impair_test

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/impair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPacketConn is a mockable [net.PacketConn].
type mockPacketConn struct {
	net.PacketConn // nil: panics if an unmocked method is called
	MockWriteTo    func(data []byte, addr net.Addr) (int, error)
	MockClose      func() error
	MockLocalAddr  func() net.Addr
}

func (c *mockPacketConn) WriteTo(data []byte, addr net.Addr) (int, error) {
	return c.MockWriteTo(data, addr)
}

func (c *mockPacketConn) Close() error {
	return c.MockClose()
}

func (c *mockPacketConn) LocalAddr() net.Addr {
	return c.MockLocalAddr()
}

var (
	localAddr  = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 47808}
	remoteAddr = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 99), Port: 50000}
)

func newMockConn(writes *atomic.Int64) *mockPacketConn {
	return &mockPacketConn{
		MockWriteTo: func(data []byte, addr net.Addr) (int, error) {
			writes.Add(1)
			return len(data), nil
		},
		MockClose:     func() error { return nil },
		MockLocalAddr: func() net.Addr { return localAddr },
	}
}

func TestPacketConn(t *testing.T) {
	t.Run("dropped responses are never sent", func(t *testing.T) {
		var writes atomic.Int64
		im, err := impair.New(t.Name(), impair.Profile{DropProbability: 1})
		require.NoError(t, err)
		conn := impair.WrapPacketConn(newMockConn(&writes), im)
		for i := 0; i < 100; i++ {
			count, err := conn.WriteTo([]byte("resp"), remoteAddr)
			require.NoError(t, err)
			assert.Equal(t, 4, count)
		}
		assert.Equal(t, int64(0), writes.Load())
		assert.Equal(t, uint64(100), im.Stats().Dropped)
	})

	t.Run("no impairment sends immediately", func(t *testing.T) {
		var writes atomic.Int64
		im, err := impair.New(t.Name(), impair.None)
		require.NoError(t, err)
		conn := impair.WrapPacketConn(newMockConn(&writes), im)
		t0 := time.Now()
		_, err = conn.WriteTo([]byte("resp"), remoteAddr)
		require.NoError(t, err)
		assert.Less(t, time.Since(t0), 20*time.Millisecond)
		assert.Equal(t, int64(1), writes.Load())
	})

	t.Run("delayed responses wait at least the minimum", func(t *testing.T) {
		var writes atomic.Int64
		im, err := impair.New(t.Name(), impair.Profile{
			MinDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond})
		require.NoError(t, err)
		conn := impair.WrapPacketConn(newMockConn(&writes), im)
		for i := 0; i < 3; i++ {
			t0 := time.Now()
			_, err = conn.WriteTo([]byte("resp"), remoteAddr)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, time.Since(t0), 50*time.Millisecond)
		}
		assert.Equal(t, int64(3), writes.Load())
	})

	t.Run("close interrupts a pending delay", func(t *testing.T) {
		var writes atomic.Int64
		im, err := impair.New(t.Name(), impair.Profile{MinDelay: time.Minute, MaxDelay: time.Minute})
		require.NoError(t, err)
		conn := impair.WrapPacketConn(newMockConn(&writes), im)
		errch := make(chan error, 1)
		go func() {
			_, err := conn.WriteTo([]byte("resp"), remoteAddr)
			errch <- err
		}()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close())
		select {
		case err := <-errch:
			assert.True(t, errors.Is(err, net.ErrClosed))
		case <-time.After(5 * time.Second):
			t.Fatal("write still blocked after close")
		}
		assert.Equal(t, int64(0), writes.Load())
	})
}

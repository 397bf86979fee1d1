// SPDX-License-Identifier: GPL-3.0-or-later

package engine_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a [bytes.Buffer] safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(data)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWrapPacketConn(t *testing.T) {
	table, err := objtable.NewTable(config.Default().Devices[0].Objects)
	require.NoError(t, err)
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fx := &engine.UDPFactory{WrapConn: engine.WrapPacketConn}
	eng, err := fx.Listen(context.Background(), engine.Config{
		Address:  netip.MustParseAddrPort("127.0.0.1:0"),
		DeviceID: 1001,
		Handler:  &tableHandler{table},
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, eng.RegisterObject(engine.Descriptor{Key: zoneTemp}))

	client := &engine.Client{Timeout: 2 * time.Second}
	_, err = client.ReadProperty(context.Background(), eng.LocalAddr(), zoneTemp)
	require.NoError(t, err)
	require.NoError(t, eng.Shutdown(context.Background()))

	output := logs.String()
	assert.Contains(t, output, "msg=readFromDone")
	assert.Contains(t, output, "msg=writeToDone")
	assert.Contains(t, output, "msg=closeDone")
	assert.Contains(t, output, "deviceId=1001")
}

// SPDX-License-Identifier: GPL-3.0-or-later

// Package mocks contains mocks for the interfaces of this module.
package mocks

import (
	"context"
	"net/netip"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
)

// Engine allows mocking an [engine.Engine].
type Engine struct {
	MockLocalAddr      func() netip.AddrPort
	MockRegisterObject func(desc engine.Descriptor) error
	MockApplyWrite     func(key objtable.Key, value any) error
	MockShutdown       func(ctx context.Context) error
}

var _ engine.Engine = &Engine{}

// LocalAddr calls MockLocalAddr.
func (e *Engine) LocalAddr() netip.AddrPort {
	return e.MockLocalAddr()
}

// RegisterObject calls MockRegisterObject.
func (e *Engine) RegisterObject(desc engine.Descriptor) error {
	return e.MockRegisterObject(desc)
}

// ApplyWrite calls MockApplyWrite.
func (e *Engine) ApplyWrite(key objtable.Key, value any) error {
	return e.MockApplyWrite(key, value)
}

// Shutdown calls MockShutdown.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.MockShutdown(ctx)
}

// NewEngine returns an [*Engine] where every method succeeds.
func NewEngine(addr netip.AddrPort) *Engine {
	return &Engine{
		MockLocalAddr: func() netip.AddrPort {
			return addr
		},
		MockRegisterObject: func(desc engine.Descriptor) error {
			return nil
		},
		MockApplyWrite: func(key objtable.Key, value any) error {
			return nil
		},
		MockShutdown: func(ctx context.Context) error {
			return nil
		},
	}
}

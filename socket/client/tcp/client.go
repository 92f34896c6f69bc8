/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package tcp's client half implements spec.md §4.G's client manager: dial a
// non-blocking socket, hand it to a Connection, and let the Connection's own
// Connect drive the finish-connect/timeout sequence through the selector —
// the manager here only resolves the remote address, builds the provider,
// and picks Plain vs TLS from config.Client.TLS.
package tcp

import (
	"net"

	"github.com/sabouaram/netio/errs"
	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/config"
	"github.com/sabouaram/netio/socket/conn"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// DefaultConnectTimeoutMs is used when Dial's caller passes 0.
const DefaultConnectTimeoutMs = 10_000

// Dial resolves cfg's remote address, opens a non-blocking socket, builds a
// Connection (Plain or TLS, per cfg.TLS.Enabled), and starts the non-blocking
// connect sequence against sel. The Connection dispatches OnConnect once
// connect (and, for TLS, the handshake) completes; timeoutMs <= 0 selects
// DefaultConnectTimeoutMs.
func Dial(cfg config.Client, sel *selector.Selector, wrk worker.Worker, h conn.Handlers, timeoutMs int) (conn.Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Network.IsStream() {
		return nil, errs.New(errs.ErrUnsupportedOperation, nil)
	}
	if wrk == nil {
		wrk = worker.Inline
	}
	if timeoutMs <= 0 {
		timeoutMs = DefaultConnectTimeoutMs
	}

	remote, err := provider.Resolve(cfg.Network, cfg.Address)
	if err != nil {
		return nil, err
	}

	prov, err := provider.NewStreamClient(cfg.Network)
	if err != nil {
		return nil, err
	}

	c := newClientConn(cfg, prov, wrk, h, remote)
	if err = c.Connect(sel, timeoutMs); err != nil {
		_ = prov.Close()
		return nil, err
	}
	return c, nil
}

func newClientConn(cfg config.Client, prov provider.Provider, wrk worker.Worker, h conn.Handlers, remote net.Addr) conn.Connection {
	if !cfg.TLS.Enabled {
		return conn.NewPlain(prov, wrk, h, remote)
	}
	return conn.NewTLSClient(prov, wrk, h, remote, cfg.TLS.Config, cfg.TLS.ServerName, cfg.TLS.ALPN)
}

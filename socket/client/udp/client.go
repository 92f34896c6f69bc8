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

// Package udp implements the UDP client manager half of spec.md §4.H: a
// single datagram socket the kernel connect(2)s to one remote, after which
// it behaves like the TCP client manager (socket/client/tcp) minus the
// handshake — Datagram.Connect always completes synchronously.
package udp

import (
	"net"

	"github.com/sabouaram/netio/errs"
	libptc "github.com/sabouaram/netio/network/protocol"
	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/config"
	"github.com/sabouaram/netio/socket/conn"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// Dial resolves cfg's remote address, kernel-connects a fresh datagram
// socket to it, and attaches a Plain or (when cfg.TLS.Enabled) DTLS
// Connection. DTLS over NetworkUnixGram is rejected by cfg.Validate, same
// as TLS over NetworkUnix, since neither transport carries the concept.
func Dial(cfg config.Client, sel *selector.Selector, wrk worker.Worker, h conn.Handlers, timeoutMs int) (conn.Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Network.IsDatagram() {
		return nil, errs.New(errs.ErrUnsupportedOperation, nil)
	}
	if wrk == nil {
		wrk = worker.Inline
	}

	remote, err := provider.Resolve(cfg.Network, cfg.Address)
	if err != nil {
		return nil, err
	}

	var local net.Addr
	if cfg.Network == libptc.NetworkUnixGram {
		local = &net.UnixAddr{Name: provider.TempUnixgramPath(), Net: cfg.Network.String()}
	}
	prov, err := provider.NewDatagramClientBound(cfg.Network, local)
	if err != nil {
		return nil, err
	}

	var c conn.Connection
	if cfg.TLS.Enabled {
		c = conn.NewDTLSClient(prov, wrk, h, remote, cfg.TLS.Config, cfg.TLS.ServerName, cfg.TLS.ALPN)
	} else {
		c = conn.NewPlain(prov, wrk, h, remote)
	}
	if err = c.Connect(sel, timeoutMs); err != nil {
		_ = prov.Close()
		return nil, err
	}
	return c, nil
}

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

package conn

import (
	"io"
	"net"

	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// DefaultBufferSize is the per-read-readiness buffer size used by Plain
// when none is configured.
const DefaultBufferSize = 32 * 1024

// Plain is the Plaintext Connection: spec.md §4.C wired directly onto a
// Channel Provider with no record layer in between. A read-ready event
// reads once into a scratch buffer and dispatches Data with exactly the
// bytes read; Write goes straight to core.write.
type Plain struct {
	core

	bufSize int
}

// NewPlain builds a Plaintext Connection around an already-constructed,
// not-yet-bound provider. remote is the address Connect will dial; pass
// nil for an already-connected (e.g. accepted) provider.
func NewPlain(prov provider.Provider, wrk worker.Worker, h Handlers, remote net.Addr) *Plain {
	p := &Plain{bufSize: DefaultBufferSize}
	p.init(prov, wrk, h, remote)
	return p
}

// Connect binds the provider to sel and starts the connect sequence. For
// an accepted provider (remote already established, no dial needed),
// callers should instead use Attach.
func (p *Plain) Connect(sel *selector.Selector, timeoutMs int) error {
	if err := bindProvider(p.Prov, sel, p); err != nil {
		return err
	}

	immediate, err := p.startConnect(timeoutMs, func() { p.dispatchTimeout(p.destroy) })
	if err != nil {
		return err
	}
	if immediate {
		p.completeConnect(p.writeWire)
	}
	return nil
}

// Attach binds an already-connected provider (e.g. accepted by a server
// listener) straight to the connected state, skipping connect entirely.
func (p *Plain) Attach(sel *selector.Selector) error {
	if err := bindProvider(p.Prov, sel, p); err != nil {
		return err
	}
	p.completeConnect(p.writeWire)
	return nil
}

// AttachPeer completes the connected state for a provider that rides on a
// shared selector key instead of one of its own — the server-mode UDP/
// Unixgram PeerProvider, which does not implement binder since it is never
// registered with the selector directly (see socket/server/udp). Skips
// Bind entirely and dispatches Connect straight away.
func (p *Plain) AttachPeer() {
	p.completeConnect(p.writeWire)
}

// Write queues or writes data, exactly as core.write describes.
func (p *Plain) Write(data []byte) error {
	return p.write(data)
}

// Close requests a graceful close: the backlog (if any) drains first.
func (p *Plain) Close() error {
	return p.requestClose(p.destroy)
}

// HandleReady implements selector.Handler. It runs on the selector's I/O
// goroutine: readable triggers a read-and-dispatch-Data cycle (looping
// until EWOULDBLOCK so one readiness notification drains everything the
// kernel already delivered), writable either completes a pending connect
// or flushes the backlog.
func (p *Plain) HandleReady(_ *selector.Key, readable, writable bool) {
	if writable {
		if !p.IsConnected() {
			if err := p.finishPendingConnect(); err != nil {
				p.raiseError(err, p.destroy)
				return
			}
			p.completeConnect(p.writeWire)
		} else {
			if err := p.flushBacklog(); err != nil {
				p.raiseError(err, p.destroy)
				return
			}
		}
	}

	if readable {
		buf := make([]byte, p.bufSize)
		for {
			n, err := p.Prov.Read(buf)
			if err == io.EOF {
				_ = p.destroy(nil)
				return
			}
			if err != nil {
				p.raiseError(err, p.destroy)
				return
			}
			if n == 0 {
				return
			}
			p.dispatchData(buf[:n])
			if n < len(buf) {
				return
			}
		}
	}
}

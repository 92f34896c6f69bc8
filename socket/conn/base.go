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
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sabouaram/netio/errs"
	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// finishConnecter is implemented by stream-mode providers whose Connect can
// return immediate=false; core type-asserts for it when a pending connect's
// write-readiness fires.
type finishConnecter interface {
	FinishConnect() error
}

// binder is implemented by every concrete provider except server-mode
// PeerProvider (which rides on its SharedSocket's key and is never bound
// directly).
type binder interface {
	Bind(sel *selector.Selector, interest selector.Interest, handler selector.Handler, attachment interface{}) error
}

func bindProvider(prov provider.Provider, sel *selector.Selector, handler selector.Handler) error {
	b, ok := prov.(binder)
	if !ok {
		return errs.New(errs.ErrUnsupportedOperation, nil)
	}
	return b.Bind(sel, selector.Read, handler, nil)
}

// core holds everything spec.md §4.B requires of every Connection: the
// write backlog, the pre-connect queue, the typed event table, and the
// connect/close/destroy lifecycle. Plain and TLS embed core and add their
// own wire-format read/write on top.
type core struct {
	Prov provider.Provider
	Wrk  worker.Worker
	H    Handlers

	wmu          sync.Mutex
	connected    bool
	destroyed    bool
	pendingClose bool
	timedOut     bool

	preConnectQueue [][]byte
	backlog         writeBacklog

	remote         net.Addr
	apparentRemote net.Addr

	lastIO atomic.Int64

	connectTimer *time.Timer
}

func (c *core) init(prov provider.Provider, wrk worker.Worker, h Handlers, remote net.Addr) {
	c.Prov = prov
	if wrk == nil {
		wrk = worker.Inline
	}
	c.Wrk = wrk
	c.H = h
	c.remote = remote
	c.apparentRemote = remote
	c.touch()
}

func (c *core) touch() {
	c.lastIO.Store(time.Now().UnixNano())
}

// LastIO reports the last time data moved in either direction, for the idle
// sweeper spec.md §4.G/§4.H describe.
func (c *core) LastIO() time.Time {
	return time.Unix(0, c.lastIO.Load())
}

func (c *core) IsConnected() bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.connected && !c.destroyed
}

func (c *core) IsSocketConnected() bool {
	return c.Prov != nil && c.Prov.IsAvailable()
}

func (c *core) IsWritable() bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.connected && !c.destroyed && c.backlog.Empty()
}

func (c *core) SetApparentRemote(addr net.Addr) {
	c.wmu.Lock()
	c.apparentRemote = addr
	c.wmu.Unlock()
}

func (c *core) ApparentRemote() net.Addr {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.apparentRemote != nil {
		return c.apparentRemote
	}
	return c.remote
}

func (c *core) RemoteAddr() net.Addr {
	if c.Prov != nil {
		return c.Prov.RemoteAddr()
	}
	return c.remote
}

func (c *core) LocalAddr() net.Addr {
	if c.Prov != nil {
		return c.Prov.LocalAddr()
	}
	return nil
}

func (c *core) SetReadBlock(block bool) {
	if c.Prov != nil {
		c.Prov.SetReadBlock(block)
	}
}

// write implements spec.md §4.B write(): pre-connect bytes go to the queue;
// connected bytes flow through the backlog-aware physical write.
func (c *core) write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	c.wmu.Lock()
	if !c.connected {
		cp := make([]byte, len(data))
		copy(cp, data)
		c.preConnectQueue = append(c.preConnectQueue, cp)
		c.wmu.Unlock()
		return nil
	}
	c.wmu.Unlock()

	return c.writeWire(data)
}

// writeWire is the backlog-aware physical write: direct provider writes
// with automatic spill to the backlog and write-readiness arming on
// EWOULDBLOCK, per spec.md §4.B's write-backlog algorithm steps 1-2.
func (c *core) writeWire(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if !c.backlog.Empty() {
		c.backlog.Enqueue(data)
		return nil
	}

	remaining := data
	for len(remaining) > 0 {
		n, err := c.Prov.Write(remaining)
		if err != nil {
			return err
		}
		if n == 0 {
			c.backlog.Enqueue(remaining)
			c.Prov.WriteBacklogStarted()
			return nil
		}
		remaining = remaining[n:]
	}
	c.touch()
	return nil
}

// flushBacklog implements spec.md §4.B flush(): drains the backlog,
// notifies the provider and dispatches writable on the non-empty -> empty
// transition, and runs a deferred destroy if close() was requested while
// bytes were pending.
func (c *core) flushBacklog() error {
	c.wmu.Lock()
	drained, err := c.backlog.Drain(func(b []byte) (int, error) {
		return c.Prov.Write(b)
	})
	pendingClose := false
	if err == nil && drained {
		pendingClose = c.pendingClose
		c.pendingClose = false
	}
	c.wmu.Unlock()

	if err != nil {
		return err
	}
	if drained {
		c.touch()
		c.Prov.WriteBacklogEnded()
		c.dispatchWritable()
		if pendingClose {
			_ = c.destroy(nil)
		}
	}
	return nil
}

func (c *core) dispatch(fn func()) {
	if fn == nil {
		return
	}
	c.Wrk.Submit(fn)
}

func (c *core) dispatchWritable() {
	c.wmu.Lock()
	connected := c.connected
	c.wmu.Unlock()
	if !connected {
		return
	}
	if c.H.OnWritable != nil {
		c.dispatch(c.H.OnWritable)
	}
}

func (c *core) dispatchData(b []byte) {
	if len(b) == 0 {
		return
	}
	c.touch()
	if c.H.OnData == nil {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	c.dispatch(func() { c.H.OnData(cp) })
}

// completeConnect transitions to connected, flushes the pre-connect queue
// through appWrite (the owning connection's application-level Write, so
// TLS wraps queued bytes identically to any later write) in order, then
// dispatches connect. Per spec.md §4.B, no write after this point ever
// sees the queue again.
func (c *core) completeConnect(appWrite func([]byte) error) {
	c.wmu.Lock()
	c.connected = true
	q := c.preConnectQueue
	c.preConnectQueue = nil
	c.wmu.Unlock()

	for _, chunk := range q {
		_ = appWrite(chunk)
	}

	c.touch()
	if c.H.OnConnect != nil {
		c.dispatch(c.H.OnConnect)
	}
}

// startConnect drives the provider-level connect and, when it does not
// complete synchronously, arms write-readiness (the same condition that
// signals finish-connect) and the one-shot connect timer.
func (c *core) startConnect(timeoutMs int, onTimeout func()) (immediate bool, err error) {
	if c.remote == nil {
		return false, errs.New(errs.ErrUnsupportedOperation, nil)
	}

	immediate, err = c.Prov.Connect(c.remote, timeoutMs)
	if err != nil {
		return false, err
	}
	if !immediate {
		c.Prov.WriteBacklogStarted()
		if timeoutMs > 0 {
			c.connectTimer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, onTimeout)
		}
	}
	return immediate, nil
}

// finishPendingConnect is called from HandleReady when write-readiness
// fires for a still-pending connect. It checks SO_ERROR via the provider's
// finish-connect hook and disarms the writer-readiness interest used only
// to observe completion.
func (c *core) finishPendingConnect() error {
	fc, ok := c.Prov.(finishConnecter)
	if !ok {
		return nil
	}
	if err := fc.FinishConnect(); err != nil {
		return err
	}
	c.Prov.WriteBacklogEnded()
	c.cancelConnectTimeout()
	return nil
}

func (c *core) cancelConnectTimeout() {
	if c.connectTimer != nil {
		c.connectTimer.Stop()
	}
}

// dispatchTimeout fires when the connect timer expires before transport
// connect completes. Per spec.md §4.B/§7: if a timeout handler is
// registered it runs; otherwise the timeout surfaces as an error. Either
// way the connection is destroyed.
func (c *core) dispatchTimeout(destroyFn func(error) error) {
	c.wmu.Lock()
	if c.connected || c.destroyed {
		c.wmu.Unlock()
		return
	}
	c.timedOut = true
	c.wmu.Unlock()

	if c.H.OnTimeout != nil {
		c.dispatch(c.H.OnTimeout)
		_ = destroyFn(nil)
		return
	}
	c.raiseError(errs.New(errs.ErrConnectTimeout, nil), destroyFn)
}

// raiseError runs the error handler synchronously on the caller's
// goroutine, per spec.md §4.B/§7, and always finishes with destroy.
func (c *core) raiseError(err error, destroyFn func(error) error) {
	if c.H.OnError != nil {
		c.H.OnError(err)
	}
	_ = destroyFn(err)
}

// requestClose implements spec.md §4.B close(): if bytes are pending,
// defers destroy until the backlog drains (flushBacklog's pendingClose
// branch); otherwise destroys immediately.
func (c *core) requestClose(destroyFn func(error) error) error {
	c.wmu.Lock()
	if !c.backlog.Empty() {
		c.pendingClose = true
		c.wmu.Unlock()
		return nil
	}
	c.wmu.Unlock()
	return destroyFn(nil)
}

// destroy is idempotent: cancels the connect timer, closes the provider,
// and dispatches close at most once.
func (c *core) destroy(_ error) error {
	c.wmu.Lock()
	if c.destroyed {
		c.wmu.Unlock()
		return nil
	}
	c.destroyed = true
	c.wmu.Unlock()

	c.cancelConnectTimeout()
	if c.Prov != nil {
		_ = c.Prov.Close()
	}
	if c.H.OnClose != nil {
		c.dispatch(c.H.OnClose)
	}
	return nil
}

// HandleClosedLocally implements selector.Closable: the ConnSelector calls
// this, under its drain loop, for a connection whose Destroy was requested
// from an arbitrary goroutine rather than the I/O thread.
func (c *core) HandleClosedLocally() {
	_ = c.destroy(nil)
}

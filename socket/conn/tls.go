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
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/dtls/v2"

	"github.com/sabouaram/netio/certificates"
	"github.com/sabouaram/netio/errs"
	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// pipeAddr satisfies net.Addr for the synthetic conn handed to crypto/tls or
// pion/dtls; it carries no routing meaning, TLS.RemoteAddr reports the real
// peer.
type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// wireConn adapts a pair of io.Pipe halves into the net.Conn crypto/tls or
// pion/dtls requires: Read drains ciphertext the I/O thread delivered from
// the socket, Write hands ciphertext to the pump goroutine that carries it
// back to the socket. Deadlines are unused: the connect timer and the
// selector's own readiness loop are what bound this connection's lifetime.
type wireConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (c *wireConn) Read(b []byte) (int, error)  { return c.r.Read(b) }
func (c *wireConn) Write(b []byte) (int, error) { return c.w.Write(b) }
func (c *wireConn) Close() error {
	_ = c.r.Close()
	return c.w.Close()
}
func (c *wireConn) LocalAddr() net.Addr               { return pipeAddr{} }
func (c *wireConn) RemoteAddr() net.Addr              { return pipeAddr{} }
func (c *wireConn) SetDeadline(_ time.Time) error     { return nil }
func (c *wireConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *wireConn) SetWriteDeadline(_ time.Time) error { return nil }

// record is the subset of *tls.Conn and *dtls.Conn the handshake/read
// goroutine drives once the handshake finishes. Both concrete types satisfy
// it; which one backs a given TLS depends on whether the Connection rides on
// a stream or datagram transport.
type record interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// Buffer roles spec.md §4.D's dynamic growth algorithm names: appRead grows
// by appReadGrowth each time a plaintext read fills its buffer exactly
// (more data was likely waiting), the other three grow by growthFactor.
// Every role starts at DefaultBufferSize; maxBufSize is the engine's hard ceiling —
// a role already at maxBufSize that needs to grow again raises
// errs.ErrBufferOverflow instead.
const (
	appReadGrowth = 8
	growthFactor  = 2
	maxBufSize    = 1 << 20
)

// bufSizes tracks the four independently-growable buffer roles under one
// lock: crypto/tls and pion/dtls give no BUFFER_OVERFLOW status the way an
// SSLEngine would, so growth here is triggered heuristically (a read or
// write that exactly fills its current buffer) rather than from an engine
// result code.
type bufSizes struct {
	mu                             sync.Mutex
	appRead, appWrite              int
	wireRead, wireWrite            int
}

func newBufSizes() *bufSizes {
	return &bufSizes{appRead: DefaultBufferSize, appWrite: DefaultBufferSize, wireRead: DefaultBufferSize, wireWrite: DefaultBufferSize}
}

func grow(cur *int, factor int) (int, error) {
	if *cur >= maxBufSize {
		return 0, errs.New(errs.ErrBufferOverflow, nil)
	}
	next := *cur * factor
	if next > maxBufSize {
		next = maxBufSize
	}
	*cur = next
	return next, nil
}

func (b *bufSizes) growAppRead() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return grow(&b.appRead, appReadGrowth)
}

func (b *bufSizes) growWireRead() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return grow(&b.wireRead, growthFactor)
}

func (b *bufSizes) growWireWrite() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return grow(&b.wireWrite, growthFactor)
}

// ensureAppWrite grows appWrite (capped at maxBufSize) until it is at least
// need bytes, or reports ErrBufferOverflow if need exceeds maxBufSize.
func (b *bufSizes) ensureAppWrite(need int) error {
	if need > maxBufSize {
		return errs.New(errs.ErrBufferOverflow, nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.appWrite < need {
		if _, err := grow(&b.appWrite, growthFactor); err != nil {
			return err
		}
	}
	return nil
}

func (b *bufSizes) get(cur *int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *cur
}

// TLS is the TLS/DTLS Connection (spec.md §4.D). Neither crypto/tls nor
// pion/dtls exposes a record-level engine equivalent to an SSLEngine's
// NEED_UNWRAP/NEED_WRAP states, so this bridges the blocking *tls.Conn or
// *dtls.Conn onto the non-blocking epoll I/O thread: a background goroutine
// owns the handshake and the plaintext read loop, talking to the record
// layer over a pair of in-process pipes, while the I/O thread only ever
// touches raw ciphertext bytes and the write backlog it already knows how to
// drive. This trades one extra goroutine and a data copy per direction for
// never blocking the selector thread on the record layer's internal state
// machine.
type TLS struct {
	core

	isClient  bool
	datagram  bool
	alpn      []string
	serverName string

	inW  *io.PipeWriter // I/O thread writes ciphertext-from-wire here
	inR  *io.PipeReader // handshake goroutine reads it via the record conn
	outR *io.PipeReader // pump goroutine reads ciphertext-to-wire here
	outW *io.PipeWriter // record conn writes it there
	wire *wireConn      // the net.Conn side handed to tls.Client/Server or dtls.Client/Server

	tlsCfg  *tls.Config
	dtlsCfg *dtls.Config

	tlsConn *tls.Conn // constructed eagerly for stream connections
	rec     record    // set once the handshake completes, for either transport

	bufs *bufSizes

	protocol, cipher, appProto string

	rawConnected atomic.Bool
	handshakeOK  atomic.Bool
	closeOnce    sync.Once
}

// NewTLSClient builds a client-mode TLS Connection that will dial remote,
// perform the raw connect, then the TLS handshake with serverName as SNI.
func NewTLSClient(prov provider.Provider, wrk worker.Worker, h Handlers, remote net.Addr, cfg certificates.Config, serverName string, alpn []string) *TLS {
	return newTLS(prov, wrk, h, remote, cfg, true, false, serverName, alpn)
}

// NewTLSServer builds a server-mode TLS Connection around an already
// raw-connected (accepted) provider; the handshake runs as the server side.
func NewTLSServer(prov provider.Provider, wrk worker.Worker, h Handlers, cfg certificates.Config, alpn []string) *TLS {
	return newTLS(prov, wrk, h, nil, cfg, false, false, "", alpn)
}

// NewDTLSClient is NewTLSClient's datagram counterpart: the handshake runs
// over pion/dtls/v2 instead of crypto/tls, driven through the same pipe
// bridge so the UDP demultiplexer's per-peer Connection never blocks on it.
func NewDTLSClient(prov provider.Provider, wrk worker.Worker, h Handlers, remote net.Addr, cfg certificates.Config, serverName string, alpn []string) *TLS {
	return newTLS(prov, wrk, h, remote, cfg, true, true, serverName, alpn)
}

// NewDTLSServer is NewTLSServer's datagram counterpart.
func NewDTLSServer(prov provider.Provider, wrk worker.Worker, h Handlers, cfg certificates.Config, alpn []string) *TLS {
	return newTLS(prov, wrk, h, nil, cfg, false, true, "", alpn)
}

func newTLS(prov provider.Provider, wrk worker.Worker, h Handlers, remote net.Addr, cfg certificates.Config, isClient, datagram bool, serverName string, alpn []string) *TLS {
	t := &TLS{isClient: isClient, datagram: datagram, alpn: alpn, serverName: serverName, bufs: newBufSizes()}
	t.init(prov, wrk, h, remote)

	t.inR, t.inW = io.Pipe()
	t.outR, t.outW = io.Pipe()
	t.wire = &wireConn{r: t.inR, w: t.outW}

	if datagram {
		dtlsCfg := cfg.DTLS(serverName)
		if len(alpn) > 0 {
			dtlsCfg.SupportedProtocols = alpn
		}
		t.dtlsCfg = dtlsCfg
	} else {
		tlsCfg := cfg.TLS(serverName)
		if len(alpn) > 0 {
			tlsCfg.NextProtos = alpn
		}
		if !isClient && len(alpn) > 0 {
			// ALPN follows the client's preference order among the protocols
			// this server also offers.
			tlsCfg.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
				for _, p := range hello.SupportedProtos {
					for _, s := range alpn {
						if p == s {
							c := tlsCfg.Clone()
							c.NextProtos, c.GetConfigForClient = []string{p}, nil
							return c, nil
						}
					}
				}
				return nil, nil
			}
		}
		t.tlsCfg = tlsCfg
		if isClient {
			t.tlsConn = tls.Client(t.wire, tlsCfg)
		} else {
			t.tlsConn = tls.Server(t.wire, tlsCfg)
		}
	}

	go t.pumpToWire()
	return t
}

// pumpToWire carries ciphertext the record layer produced out to the
// physical socket, reusing core's backlog-aware writeWire so EWOULDBLOCK on
// the raw fd is handled exactly like a Plain connection's writes. A read
// that exactly fills the current wire-write buffer grows it for next time,
// per spec.md §4.D's buffer-growth algorithm.
func (t *TLS) pumpToWire() {
	for {
		size := t.bufs.get(&t.bufs.wireWrite)
		buf := make([]byte, size)
		n, err := t.outR.Read(buf)
		if n > 0 {
			if werr := t.writeWire(buf[:n]); werr != nil {
				_ = t.destroyTLS(werr)
				return
			}
			if n == size {
				if _, growErr := t.bufs.growWireWrite(); growErr != nil {
					_ = t.destroyTLS(growErr)
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// runHandshakeAndRead performs the TLS/DTLS handshake and, on success, the
// continuous plaintext read loop. It runs on its own goroutine for the
// lifetime of the connection. pion/dtls/v2's Client/Server calls perform the
// handshake synchronously inside the call (unlike *tls.Conn, which defers it
// to the first Handshake/Read/Write), so both branches converge on the same
// record interface before the read loop begins.
func (t *TLS) runHandshakeAndRead() {
	var rec record
	if t.datagram {
		var err error
		if t.isClient {
			rec, err = dtls.ClientWithContext(context.Background(), t.wire, t.dtlsCfg)
		} else {
			rec, err = dtls.ServerWithContext(context.Background(), t.wire, t.dtlsCfg)
		}
		if err != nil {
			t.raiseError(errs.New(errs.ErrHandshake, err), t.destroyTLS)
			return
		}
		t.setNegotiatedDTLS(rec.(*dtls.Conn))
	} else {
		if err := t.tlsConn.HandshakeContext(context.Background()); err != nil {
			t.raiseError(errs.New(errs.ErrHandshake, err), t.destroyTLS)
			return
		}
		rec = t.tlsConn
		t.setNegotiatedTLS(t.tlsConn.ConnectionState())
	}
	t.rec = rec

	t.handshakeOK.Store(true)
	t.cancelConnectTimeout()
	t.completeConnect(func(b []byte) error {
		_, werr := t.rec.Write(b)
		return werr
	})

	for {
		size := t.bufs.get(&t.bufs.appRead)
		buf := make([]byte, size)
		n, err := t.rec.Read(buf)
		if n > 0 {
			t.dispatchData(buf[:n])
			if n == size {
				if _, growErr := t.bufs.growAppRead(); growErr != nil {
					t.raiseError(growErr, t.destroyTLS)
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				_ = t.destroyTLS(nil)
			} else {
				t.raiseError(err, t.destroyTLS)
			}
			return
		}
	}
}

// setNegotiatedTLS records the accessor surface spec.md §6 names, backed by
// crypto/tls.ConnectionState; GetApplicationProtocol normalizes the no-ALPN
// case to "none".
func (t *TLS) setNegotiatedTLS(cs tls.ConnectionState) {
	t.protocol = tls.VersionName(cs.Version)
	t.cipher = tls.CipherSuiteName(cs.CipherSuite)
	t.appProto = cs.NegotiatedProtocol
}

// setNegotiatedDTLS mirrors setNegotiatedTLS for the datagram transport.
// pion/dtls/v2 implements DTLS 1.2 only, so protocol is a fixed string
// rather than read off per-connection state. The negotiated cipher suite
// is reported as the highest-priority suite this side offered: pion/dtls's
// public State does not expose the chosen CipherSuiteID as of this pinned
// version, so this is an approximation acknowledged in DESIGN.md rather
// than a true post-negotiation read.
func (t *TLS) setNegotiatedDTLS(c *dtls.Conn) {
	t.protocol = "DTLS 1.2"
	if len(t.dtlsCfg.CipherSuites) > 0 {
		t.cipher = t.dtlsCfg.CipherSuites[0].String()
	}
	cs := c.ConnectionState()
	t.appProto = cs.NegotiatedProtocol
}

// Connect dials the remote address, then hands off to the TLS/DTLS
// handshake once the raw socket connect completes (synchronously or via a
// later write-readiness event).
func (t *TLS) Connect(sel *selector.Selector, timeoutMs int) error {
	if err := bindProvider(t.Prov, sel, t); err != nil {
		return err
	}

	immediate, err := t.startConnect(timeoutMs, func() { t.dispatchTimeout(t.destroyTLS) })
	if err != nil {
		return err
	}
	if immediate {
		t.onRawConnected()
	}
	return nil
}

// Attach binds an already raw-connected provider (accepted by a server
// listener) and starts the handshake immediately as the server side. A
// demultiplexed UDP peer has no Bind-able provider and uses AttachPeer
// instead.
func (t *TLS) Attach(sel *selector.Selector) error {
	if err := bindProvider(t.Prov, sel, t); err != nil {
		return err
	}
	t.onRawConnected()
	return nil
}

// AttachPeer starts the server-side handshake for a UDP peer Connection,
// whose provider (a provider.PeerProvider) is never Bind-able directly —
// the shared socket's demuxHandler is already registered with the selector
// and forwards readiness by calling HandleReady on this Connection.
func (t *TLS) AttachPeer() {
	t.onRawConnected()
}

// IsHandshakeComplete reports whether the TLS/DTLS handshake has finished
// successfully.
func (t *TLS) IsHandshakeComplete() bool {
	return t.handshakeOK.Load()
}

// GetProtocol reports the negotiated protocol version name ("TLS 1.3",
// "DTLS 1.2", ...), or "" before the handshake completes.
func (t *TLS) GetProtocol() string {
	if !t.handshakeOK.Load() {
		return ""
	}
	return t.protocol
}

// GetCipher reports the negotiated cipher suite name, or "" before the
// handshake completes.
func (t *TLS) GetCipher() string {
	if !t.handshakeOK.Load() {
		return ""
	}
	return t.cipher
}

// GetApplicationProtocol reports the ALPN-negotiated application protocol,
// normalized to "none" when none was negotiated, per spec.md §6.
func (t *TLS) GetApplicationProtocol() string {
	if !t.handshakeOK.Load() || t.appProto == "" {
		return "none"
	}
	return t.appProto
}

func (t *TLS) onRawConnected() {
	if !t.rawConnected.CompareAndSwap(false, true) {
		return
	}
	go t.runHandshakeAndRead()
}

// Write encrypts and sends data once the handshake has completed; before
// that it queues plaintext, flushed through the record layer the instant
// the handshake finishes, per spec.md §4.D. A payload bigger than the
// current app-write buffer grows it (capped at maxBufSize); a payload that
// still does not fit at the cap fails with ErrBufferOverflow rather than
// being silently truncated.
func (t *TLS) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := t.bufs.ensureAppWrite(len(data)); err != nil {
		return err
	}

	t.wmu.Lock()
	if !t.connected {
		cp := make([]byte, len(data))
		copy(cp, data)
		t.preConnectQueue = append(t.preConnectQueue, cp)
		t.wmu.Unlock()
		return nil
	}
	t.wmu.Unlock()

	_, err := t.rec.Write(data)
	return err
}

func (t *TLS) Close() error {
	return t.requestClose(t.destroyTLS)
}

// destroyTLS releases the handshake goroutine and pump goroutine before
// delegating to core.destroy, so neither leaks once the connection is torn
// down from any path (peer close, error, explicit Close, connect timeout).
func (t *TLS) destroyTLS(err error) error {
	t.closeOnce.Do(func() {
		_ = t.inW.Close()
		_ = t.inR.Close()
		_ = t.outW.Close()
		_ = t.outR.Close()
	})
	return t.destroy(err)
}

// HandleReady implements selector.Handler. writable either completes a
// pending raw connect (kicking off the handshake goroutine) or flushes the
// ciphertext write backlog; readable forwards raw ciphertext into the pipe
// the handshake/read goroutine consumes. A read that exactly fills the
// current wire-read buffer grows it, per spec.md §4.D.
func (t *TLS) HandleReady(_ *selector.Key, readable, writable bool) {
	if writable {
		if !t.rawConnected.Load() {
			if err := t.finishPendingConnect(); err != nil {
				t.raiseError(err, t.destroyTLS)
				return
			}
			t.onRawConnected()
		} else {
			if err := t.flushBacklog(); err != nil {
				t.raiseError(err, t.destroyTLS)
				return
			}
		}
	}

	if readable {
		for {
			size := t.bufs.get(&t.bufs.wireRead)
			buf := make([]byte, size)
			n, err := t.Prov.Read(buf)
			if err == io.EOF {
				_ = t.destroyTLS(nil)
				return
			}
			if err != nil {
				t.raiseError(err, t.destroyTLS)
				return
			}
			if n == 0 {
				return
			}
			if _, werr := t.inW.Write(buf[:n]); werr != nil {
				t.raiseError(werr, t.destroyTLS)
				return
			}
			if n < len(buf) {
				return
			}
			if _, growErr := t.bufs.growWireRead(); growErr != nil {
				t.raiseError(growErr, t.destroyTLS)
				return
			}
		}
	}
}

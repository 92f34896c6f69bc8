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

// Package tcp implements the TCP Server / Client Manager (spec.md §4.G):
// a listening socket whose accept-readiness fans out into one Connection
// per accepted peer, a periodic idle-timeout sweep over the live set, and
// (in client.go) a client manager driving the mirror-image connect path.
package tcp

import (
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	libatm "github.com/sabouaram/netio/atomic"
	"github.com/sabouaram/netio/errs"
	"github.com/sabouaram/netio/logger"
	libptc "github.com/sabouaram/netio/network/protocol"
	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/config"
	"github.com/sabouaram/netio/socket/conn"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// sweepInterval is the idle-timeout sweep period, per spec.md §4.G.
const sweepInterval = 5 * time.Second

// NewConnFunc builds the Handlers table for one accepted connection, given
// its remote address. It runs on the I/O thread, before Attach, so OnConnect
// is already wired by the time the connection enters the connected state.
type NewConnFunc func(remote net.Addr) conn.Handlers

// connFactory builds the concrete Connection (Plain or TLS) a Server hands
// an accepted provider to, chosen once from the server's config.
type connFactory func(prov provider.Provider, wrk worker.Worker, h conn.Handlers) conn.Connection

func newServerConnFactory(cfg config.Server) connFactory {
	if !cfg.TLS.Enabled {
		return func(prov provider.Provider, wrk worker.Worker, h conn.Handlers) conn.Connection {
			return conn.NewPlain(prov, wrk, h, nil)
		}
	}
	return func(prov provider.Provider, wrk worker.Worker, h conn.Handlers) conn.Connection {
		return conn.NewTLSServer(prov, wrk, h, cfg.TLS.Config, cfg.TLS.ALPN)
	}
}

// Server listens on one TCP address, accepting connections and handing each
// to its own Connection. The live connection set and idle-timeout sweeper
// are the server-side half of spec.md §4.G.
type Server struct {
	cfg config.Server
	sel *selector.Selector
	log logger.Logger

	wc    worker.WorkerCreator
	onNew NewConnFunc
	newConn connFactory

	network  libptc.NetworkProtocol
	listenFd int
	addr     net.Addr

	conns libatm.MapTyped[conn.Connection, struct{}]
	open  libatm.Value[int64]

	stopSweep chan struct{}
	sweepDone chan struct{}

	mu      sync.Mutex
	started bool
}

// New builds a Server bound to cfg's address but does not yet listen; call
// Start to open the listening socket and begin accepting.
func New(cfg config.Server, sel *selector.Selector, log logger.Logger, wc worker.WorkerCreator, onNew NewConnFunc) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Network.IsStream() {
		return nil, errs.New(errs.ErrUnsupportedOperation, nil)
	}
	if log == nil {
		log = logger.Default
	}
	if wc == nil {
		wc = worker.NewInline()
	}
	if onNew == nil {
		onNew = func(net.Addr) conn.Handlers { return conn.Handlers{} }
	}

	return &Server{
		cfg:     cfg,
		sel:     sel,
		log:     log,
		wc:      wc,
		onNew:   onNew,
		newConn: newServerConnFactory(cfg),
		network: cfg.Network,
		conns:   libatm.NewMapTyped[conn.Connection, struct{}](),
		open:    libatm.NewValue[int64](),
	}, nil
}

// Start opens the listening socket, registers it for accept-readiness, and
// starts the idle-timeout sweeper.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	fd, local, err := newListenSocket(s.network, s.cfg.Address, s.cfg.ConnectionBacklog, s.cfg.PermFile, s.cfg.GroupPerm)
	if err != nil {
		return err
	}
	s.listenFd = fd
	s.addr = local

	if _, err = s.sel.Register(fd, selector.Read, &listenHandler{s: s}, nil); err != nil {
		_ = unix.Close(fd)
		return err
	}

	s.stopSweep = make(chan struct{})
	s.sweepDone = make(chan struct{})
	go s.sweepLoop()

	s.started = true
	return nil
}

// Addr returns the address the listening socket is bound to.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// OpenConnections reports the number of currently live connections.
func (s *Server) OpenConnections() int64 {
	return s.open.Load()
}

// Stop closes the listening socket, stops the sweeper, and closes every
// live connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	fd := s.listenFd
	s.mu.Unlock()

	close(s.stopSweep)
	<-s.sweepDone

	_ = unix.Close(fd)

	s.conns.Range(func(c conn.Connection, _ struct{}) bool {
		_ = c.Close()
		return true
	})
	return nil
}

// listenHandler implements selector.Handler for the listening socket:
// accept-readiness fans out into one Connection per accepted peer.
type listenHandler struct {
	s *Server
}

func (h *listenHandler) HandleReady(_ *selector.Key, readable, _ bool) {
	if !readable {
		return
	}
	s := h.s
	for {
		nfd, local, remote, ok, err := acceptOne(s.network, s.listenFd)
		if err != nil {
			s.log.Entry(s.log.GetLevel(), "tcp server: accept failed").ErrorField(err).Log()
			return
		}
		if !ok {
			return
		}
		s.onAccept(nfd, local, remote)
	}
}

func (s *Server) onAccept(fd int, local, remote net.Addr) {
	prov := provider.NewStreamAccepted(s.network, fd, local, remote)
	wrk := s.wc()

	var c conn.Connection
	h := wrapClose(s.onNew(remote), func() { s.remove(c) })

	c = s.newConn(prov, wrk, h)
	if err := c.Attach(s.sel); err != nil {
		s.log.Entry(s.log.GetLevel(), "tcp server: attach failed").Field("remote", remote).ErrorField(err).Log()
		_ = prov.Close()
		return
	}

	s.conns.Store(c, struct{}{})
	s.incrOpen(1)
}

// wrapClose returns a copy of h whose OnClose runs the caller's original
// handler (if any) and then after, so the server's live-connection set
// always observes a close regardless of what triggered it.
func wrapClose(h conn.Handlers, after func()) conn.Handlers {
	orig := h.OnClose
	h.OnClose = func() {
		if orig != nil {
			orig()
		}
		after()
	}
	return h
}

func (s *Server) remove(c conn.Connection) {
	if _, loaded := s.conns.LoadAndDelete(c); loaded {
		s.incrOpen(-1)
	}
}

func (s *Server) incrOpen(delta int64) {
	libatm.Add(s.open, delta)
}

// sweepLoop runs the idle-timeout sweep every sweepInterval until Stop
// closes stopSweep. Candidates are collected into a slice before any Close
// call, per spec.md §4.H's "collect before mutate" rule, applied here too
// since Close ends up deleting from the same map the sweep is ranging over.
func (s *Server) sweepLoop() {
	defer close(s.sweepDone)

	if s.cfg.ConnectionIdleTimeout <= 0 {
		<-s.stopSweep
		return
	}

	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-t.C:
			s.sweepOnce()
		}
	}
}

func (s *Server) sweepOnce() {
	now := time.Now()
	var stale []conn.Connection
	s.conns.Range(func(c conn.Connection, _ struct{}) bool {
		delta := now.Sub(c.LastIO())
		if delta < 0 || delta >= s.cfg.ConnectionIdleTimeout {
			stale = append(stale, c)
		}
		return true
	})
	for _, c := range stale {
		_ = c.Close()
		s.remove(c)
	}
}

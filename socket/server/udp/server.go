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

// Package udp implements the UDP Server / Client Manager (spec.md §4.H): a
// single shared datagram socket demultiplexed into one synthesized
// Connection per remote peer, since UDP has no OS-level accept or
// persistent peer channel.
package udp

import (
	"net"
	"sync"
	"time"

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

// DefaultReceiveBufferSize is the per-datagram read buffer size (config.Server
// has no setting for it); the shared socket reads into buf[:DefaultReceiveBufferSize+1]
// so that a datagram filling the whole buffer is detectable as truncated,
// per spec.md §4.H.
const DefaultReceiveBufferSize = 64 * 1024

const sweepInterval = 5 * time.Second

// NewConnFunc builds the Handlers table for one synthesized peer
// connection, given its remote address.
type NewConnFunc func(remote net.Addr) conn.Handlers

// peerConn is the subset of conn.Plain and conn.TLS a peerEntry drives
// uniformly: both implement selector.Handler, Connection and AttachPeer.
type peerConn interface {
	conn.Connection
	AttachPeer()
}

type peerEntry struct {
	conn   peerConn
	prov   *provider.PeerProvider
	remote net.Addr
}

// Server demultiplexes one shared datagram socket into per-peer
// Connections. When cfg.TLS.Enabled, each peer's Connection is a DTLS
// Connection (socket/conn.NewDTLSServer) instead of Plain, running its
// handshake over the same pipe bridge socket/conn uses for TLS over TCP.
type Server struct {
	cfg config.Server
	sel *selector.Selector
	log logger.Logger

	wc    worker.WorkerCreator
	onNew NewConnFunc

	network libptc.NetworkProtocol
	shared  *provider.SharedSocket
	bufSize int

	mu         sync.Mutex
	peers      map[string]*peerEntry
	backlogged map[string]struct{}

	open libatm.Value[int64]

	stopSweep chan struct{}
	sweepDone chan struct{}

	started bool
}

// New builds a Server bound to cfg's address but does not yet bind the
// socket; call Start to open it and begin demultiplexing.
func New(cfg config.Server, sel *selector.Selector, log logger.Logger, wc worker.WorkerCreator, onNew NewConnFunc) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Network.IsDatagram() {
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
		cfg:        cfg,
		sel:        sel,
		log:        log,
		wc:         wc,
		onNew:      onNew,
		network:    cfg.Network,
		bufSize:    DefaultReceiveBufferSize,
		peers:      make(map[string]*peerEntry),
		backlogged: make(map[string]struct{}),
		open:       libatm.NewValue[int64](),
	}, nil
}

// Start binds the shared datagram socket, registers it for read-readiness,
// and starts the idle-timeout sweeper.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	local, err := provider.Resolve(s.network, s.cfg.Address)
	if err != nil {
		return err
	}
	if err = provider.RemoveStalePath(s.network, local); err != nil {
		return errs.New(errs.ErrAddress, err)
	}
	shared, err := provider.NewSharedSocket(s.network, local)
	if err != nil {
		return err
	}
	if err = provider.ApplyPathPerm(s.network, shared.LocalAddr(), s.cfg.PermFile, s.cfg.GroupPerm); err != nil {
		_ = shared.Close()
		return errs.New(errs.ErrAddress, err)
	}
	if err = shared.Bind(s.sel, selector.Read, &demuxHandler{s: s}, nil); err != nil {
		_ = shared.Close()
		return err
	}
	s.shared = shared

	s.stopSweep = make(chan struct{})
	s.sweepDone = make(chan struct{})
	go s.sweepLoop()

	s.started = true
	return nil
}

// Addr returns the address the shared socket is bound to.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shared == nil {
		return nil
	}
	return s.shared.LocalAddr()
}

// OpenConnections reports the number of currently live peer connections.
func (s *Server) OpenConnections() int64 {
	return s.open.Load()
}

// Stop closes the shared socket, stops the sweeper, and closes every live
// peer connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	shared := s.shared
	s.mu.Unlock()

	close(s.stopSweep)
	<-s.sweepDone

	if shared != nil {
		_ = shared.Close()
	}

	s.mu.Lock()
	peers := make([]*peerEntry, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
		s.remove(p.remote)
	}
	return nil
}

// demuxHandler implements selector.Handler for the one shared socket: read-
// readiness receives datagrams and fans them out to per-peer Connections,
// write-readiness flushes whichever peers currently have a write backlog.
type demuxHandler struct {
	s *Server
}

func (h *demuxHandler) HandleReady(_ *selector.Key, readable, writable bool) {
	s := h.s
	if readable {
		s.onReadable()
	}
	if writable {
		s.onWritable()
	}
}

func (s *Server) onReadable() {
	buf := make([]byte, s.bufSize+1)
	for {
		n, sa, err := s.shared.RecvFrom(buf)
		if err != nil {
			s.log.Entry(s.log.GetLevel(), "udp server: recvfrom failed").ErrorField(err).Log()
			return
		}
		if sa == nil {
			return
		}
		if n > s.bufSize {
			s.log.Entry(s.log.GetLevel(), "udp server: dropped oversized datagram").Log()
			continue
		}

		remote := provider.FromSockaddr(s.network, sa)
		if remote == nil {
			continue
		}
		p := s.lookupOrCreate(remote)
		if p == nil {
			continue
		}

		p.prov.PushDatagram(buf[:n])
		p.conn.HandleReady(nil, true, false)
	}
}

func (s *Server) onWritable() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.backlogged))
	for k := range s.backlogged {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.mu.Lock()
		p := s.peers[k]
		s.mu.Unlock()
		if p == nil {
			continue
		}
		p.conn.HandleReady(nil, false, true)
	}
}

func (s *Server) lookupOrCreate(remote net.Addr) *peerEntry {
	key := remote.String()

	s.mu.Lock()
	if p, ok := s.peers[key]; ok {
		s.mu.Unlock()
		return p
	}
	s.mu.Unlock()

	rawSA, err := provider.ToSockaddr(s.network, remote)
	if err != nil {
		return nil
	}

	prov := provider.NewPeerProvider(s.shared, s.network, rawSA, remote,
		func() { s.addBacklogged(key) },
		func() { s.removeBacklogged(key) },
	)

	wrk := s.wc()
	h := wrapClose(s.onNew(remote), func() { s.remove(remote) })

	var c peerConn
	if s.cfg.TLS.Enabled {
		c = conn.NewDTLSServer(prov, wrk, h, s.cfg.TLS.Config, s.cfg.TLS.ALPN)
	} else {
		c = conn.NewPlain(prov, wrk, h, nil)
	}

	entry := &peerEntry{conn: c, prov: prov, remote: remote}

	s.mu.Lock()
	s.peers[key] = entry
	s.mu.Unlock()
	s.incrOpen(1)

	c.AttachPeer()
	return entry
}

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

func (s *Server) addBacklogged(key string) {
	s.mu.Lock()
	_, already := s.backlogged[key]
	s.backlogged[key] = struct{}{}
	armNow := !already && len(s.backlogged) == 1
	s.mu.Unlock()
	if armNow {
		s.shared.WriteBacklogStarted()
	}
}

func (s *Server) removeBacklogged(key string) {
	s.mu.Lock()
	delete(s.backlogged, key)
	disarmNow := len(s.backlogged) == 0
	s.mu.Unlock()
	if disarmNow {
		s.shared.WriteBacklogEnded()
	}
}

func (s *Server) remove(remote net.Addr) {
	key := remote.String()
	s.mu.Lock()
	_, ok := s.peers[key]
	delete(s.peers, key)
	delete(s.backlogged, key)
	s.mu.Unlock()
	if ok {
		s.incrOpen(-1)
	}
}

func (s *Server) incrOpen(delta int64) {
	libatm.Add(s.open, delta)
}

// sweepLoop runs the idle-timeout sweep every sweepInterval until Stop
// closes stopSweep.
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

// sweepOnce collects stale peers into a slice before closing any of them,
// per spec.md §4.H's "collect before mutate" rule for the UDP connection
// map.
func (s *Server) sweepOnce() {
	now := time.Now()

	s.mu.Lock()
	var stale []*peerEntry
	for _, p := range s.peers {
		delta := now.Sub(p.conn.LastIO())
		if delta < 0 || delta >= s.cfg.ConnectionIdleTimeout {
			stale = append(stale, p)
		}
	}
	s.mu.Unlock()

	for _, p := range stale {
		_ = p.conn.Close()
		s.remove(p.remote)
	}
}

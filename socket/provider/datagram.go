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

package provider

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/errs"
	libptc "github.com/sabouaram/netio/network/protocol"
	"github.com/sabouaram/netio/selector"
)

// Datagram is the Channel Provider for client-mode UDP/Unixgram sockets:
// the kernel connect(2)s the socket to exactly one remote, after which
// read/write are plain syscalls exactly like a stream socket.
type Datagram struct {
	Base

	network libptc.NetworkProtocol
	local   net.Addr
	remote  net.Addr
}

// NewDatagramClient creates a fresh non-blocking datagram socket.
func NewDatagramClient(n libptc.NetworkProtocol) (*Datagram, error) {
	fd, err := newSocket(Domain(n, nil), unix.SOCK_DGRAM)
	if err != nil {
		return nil, err
	}
	d := &Datagram{network: n}
	d.Fd = fd
	return d, nil
}

// NewDatagramClientBound is NewDatagramClient plus an explicit bind to
// local before connect. AF_UNIX datagram sockets have no kernel autobind
// (unlike AF_INET's ephemeral-port assignment on connect): an unbound
// client socket sends with no return address, so the server's per-peer
// demultiplexer (socket/server/udp) would see every datagram with an empty
// sender path. NetworkUnixGram clients must bind to a path of their own;
// UDP clients pass local == nil and behave exactly like NewDatagramClient.
func NewDatagramClientBound(n libptc.NetworkProtocol, local net.Addr) (*Datagram, error) {
	d, err := NewDatagramClient(n)
	if err != nil {
		return nil, err
	}
	if local == nil {
		return d, nil
	}
	sa, err := ToSockaddr(n, local)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	if err = unix.Bind(d.Fd, sa); err != nil {
		_ = d.Close()
		return nil, errs.New(errs.ErrAddress, err)
	}
	d.local = local
	return d, nil
}

// Connect kernel-connects the datagram socket to remote. Datagram connect
// is always synchronous from the caller's point of view (no handshake),
// so immediate is always true on success.
func (d *Datagram) Connect(remote net.Addr, _ int) (bool, error) {
	sa, err := ToSockaddr(d.network, remote)
	if err != nil {
		return false, err
	}
	if err = unix.Connect(d.Fd, sa); err != nil {
		return false, errs.New(errs.ErrAddress, err)
	}
	d.remote = remote
	return true, nil
}

func (d *Datagram) Read(buf []byte) (int, error) {
	n, err := unix.Read(d.Fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, errs.New(errs.UnknownError, err)
	}
	return n, nil
}

func (d *Datagram) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Write(d.Fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, errs.New(errs.UnknownError, err)
	}
	return n, nil
}

func (d *Datagram) LocalAddr() net.Addr  { return d.local }
func (d *Datagram) RemoteAddr() net.Addr { return d.remote }

// Close closes the socket and, for a NetworkUnixGram client bound via
// NewDatagramClientBound, unlinks its bind path — otherwise every dialed
// connection leaks one socket file in os.TempDir.
func (d *Datagram) Close() error {
	err := d.Base.Close()
	_ = RemoveStalePath(d.network, d.local)
	return err
}

// SharedSocket is the one OS datagram socket a UDP/Unixgram server binds,
// shared by every synthesized per-peer PeerProvider. It owns the single
// selector.Key (read-readiness always armed; write-readiness armed/
// disarmed by the server as peers enter/leave backlog, per spec.md §4.H).
type SharedSocket struct {
	Base

	network libptc.NetworkProtocol
	local   net.Addr
}

// NewSharedSocket creates and binds a listening datagram socket for server
// mode: unconnected, receiving from any peer.
func NewSharedSocket(n libptc.NetworkProtocol, local net.Addr) (*SharedSocket, error) {
	fd, err := newSocket(Domain(n, local), unix.SOCK_DGRAM)
	if err != nil {
		return nil, err
	}
	sa, err := ToSockaddr(n, local)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, errs.New(errs.ErrAddress, err)
	}
	if bound, gerr := unix.Getsockname(fd); gerr == nil {
		if addr := FromSockaddr(n, bound); addr != nil {
			local = addr
		}
	}
	s := &SharedSocket{network: n, local: local}
	s.Fd = fd
	return s, nil
}

// RecvFrom receives one datagram and the sender's address, sized to
// cap(buf)+1 internally by the caller per spec.md §4.H truncation-detection
// rule; RecvFrom itself just forwards to recvfrom(2).
func (s *SharedSocket) RecvFrom(buf []byte) (int, unix.Sockaddr, error) {
	n, from, err := unix.Recvfrom(s.Fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil, nil
		}
		return 0, nil, errs.New(errs.UnknownError, err)
	}
	return n, from, nil
}

// SendTo writes one datagram to a specific peer via sendto(2).
func (s *SharedSocket) SendTo(buf []byte, to unix.Sockaddr) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if err := unix.Sendto(s.Fd, buf, 0, to); err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, errs.New(errs.UnknownError, err)
	}
	return len(buf), nil
}

func (s *SharedSocket) LocalAddr() net.Addr { return s.local }

// PeerProvider is the per-remote-address view of a server-mode datagram
// socket: Write goes out via the shared socket's sendto to this peer's
// address; Read drains a backlog the demultiplexer (socket/server/udp)
// fills as datagrams arrive. Per spec.md §4.A, a server-mode provider must
// not disarm read-readiness (other peers share the socket) and must not
// close the physical socket on per-peer close.
type PeerProvider struct {
	shared *SharedSocket
	sa     unix.Sockaddr
	remote net.Addr
	n      libptc.NetworkProtocol

	mu      sync.Mutex
	backlog [][]byte
	closed  bool

	backlogStarted func()
	backlogEnded   func()
}

// NewPeerProvider builds the per-peer view; backlogStarted/Ended let the
// UDP server track which peers currently want write-readiness on the one
// shared key (see socket/server/udp).
func NewPeerProvider(shared *SharedSocket, n libptc.NetworkProtocol, sa unix.Sockaddr, remote net.Addr, onStart, onEnd func()) *PeerProvider {
	return &PeerProvider{shared: shared, sa: sa, remote: remote, n: n, backlogStarted: onStart, backlogEnded: onEnd}
}

// Connect is a no-op for synthesized server-mode peers: the "connection"
// already exists by the time a datagram arrived.
func (p *PeerProvider) Connect(net.Addr, int) (bool, error) { return true, nil }

// PushDatagram is called by the demultiplexer's read-readiness handler to
// deliver one received datagram into this peer's backlog.
func (p *PeerProvider) PushDatagram(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	p.backlog = append(p.backlog, cp)
}

// Read pops the oldest backlogged datagram, or returns 0 bytes if none is
// queued (the normal EWOULDBLOCK-equivalent for server-mode peers).
func (p *PeerProvider) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.backlog) == 0 {
		return 0, nil
	}
	next := p.backlog[0]
	p.backlog = p.backlog[1:]
	n := copy(buf, next)
	return n, nil
}

func (p *PeerProvider) Write(buf []byte) (int, error) {
	return p.shared.SendTo(buf, p.sa)
}

func (p *PeerProvider) WriteBacklogStarted() {
	if p.backlogStarted != nil {
		p.backlogStarted()
	}
}

func (p *PeerProvider) WriteBacklogEnded() {
	if p.backlogEnded != nil {
		p.backlogEnded()
	}
}

// SetReadBlock is a no-op in server mode: other peers share the socket, so
// read-readiness can never be disarmed for just one peer.
func (p *PeerProvider) SetReadBlock(bool) {}

func (p *PeerProvider) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *PeerProvider) LocalAddr() net.Addr  { return p.shared.LocalAddr() }
func (p *PeerProvider) RemoteAddr() net.Addr { return p.remote }

// Key always returns nil: a peer has no selection key of its own, it rides
// on the shared socket's key (see SharedSocket.Key via Base).
func (p *PeerProvider) Key() *selector.Key { return nil }

// Close marks the peer closed without touching the shared socket.
func (p *PeerProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

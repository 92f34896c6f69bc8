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
	"io"
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/errs"
	libptc "github.com/sabouaram/netio/network/protocol"
)

// Stream is the Channel Provider for connection-oriented sockets: TCP
// (v4/v6) and Unix-domain stream sockets. The same type serves both
// client-dialed and server-accepted connections — only construction
// differs (NewStreamClient vs NewStreamAccepted).
type Stream struct {
	Base

	network libptc.NetworkProtocol
	local   net.Addr
	remote  net.Addr
}

// NewStreamClient creates a fresh non-blocking socket for n, ready to
// Connect. It does not bind to the selector; call Bind once the owning
// Connection exists.
func NewStreamClient(n libptc.NetworkProtocol) (*Stream, error) {
	fd, err := newSocket(Domain(n, nil), unix.SOCK_STREAM)
	if err != nil {
		return nil, err
	}
	s := &Stream{network: n}
	s.Fd = fd
	return s, nil
}

// NewStreamAccepted wraps a file descriptor handed back by accept(2),
// already non-blocking.
func NewStreamAccepted(n libptc.NetworkProtocol, fd int, local, remote net.Addr) *Stream {
	s := &Stream{network: n, local: local, remote: remote}
	s.Fd = fd
	return s
}

// Connect performs a non-blocking connect(2). immediate is true when the
// kernel completed the three-way handshake synchronously (routine for
// AF_UNIX and loopback). timeout is accepted for interface symmetry; the
// connect-timeout task itself is owned by socket/conn, which arms it only
// when immediate is false.
func (s *Stream) Connect(remote net.Addr, _ int) (bool, error) {
	sa, err := ToSockaddr(s.network, remote)
	if err != nil {
		return false, err
	}
	s.remote = remote

	err = unix.Connect(s.Fd, sa)
	if err == nil {
		return true, nil
	}
	if err == unix.EINPROGRESS {
		return false, nil
	}
	return false, errs.New(errs.ErrAddress, err)
}

// FinishConnect checks SO_ERROR after a write-readiness fires for a
// pending connect, per spec.md §4.G "select: OP_CONNECT-ready -> call the
// OS finish-connect".
func (s *Stream) FinishConnect() error {
	errno, err := unix.GetsockoptInt(s.Fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errs.New(errs.ErrAddress, err)
	}
	if errno != 0 {
		return errs.New(errs.ErrAddress, unix.Errno(errno))
	}
	return nil
}

func (s *Stream) Read(buf []byte) (int, error) {
	n, err := unix.Read(s.Fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, errs.New(errs.UnknownError, err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *Stream) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Write(s.Fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, errs.New(errs.UnknownError, err)
	}
	return n, nil
}

func (s *Stream) LocalAddr() net.Addr  { return s.local }
func (s *Stream) RemoteAddr() net.Addr { return s.remote }

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

package tcp

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/errs"
	libprm "github.com/sabouaram/netio/file/perm"
	libptc "github.com/sabouaram/netio/network/protocol"
	"github.com/sabouaram/netio/socket/provider"
)

const defaultBacklog = 128

// newListenSocket opens a non-blocking listening socket for n bound to
// address, returning its fd and the address the kernel actually bound
// (relevant for ":0" ephemeral-port binds). For NetworkUnix, address is a
// filesystem path: a stale socket file left by a prior process is removed
// before bind, and perm/gid are applied to the path once listening starts
// (both are no-ops for every other protocol).
func newListenSocket(n libptc.NetworkProtocol, address string, backlog int, perm libprm.Perm, gid int32) (fd int, local net.Addr, err error) {
	resolved, err := provider.Resolve(n, address)
	if err != nil {
		return -1, nil, err
	}

	if err = provider.RemoveStalePath(n, resolved); err != nil {
		return -1, nil, errs.New(errs.ErrAddress, err)
	}

	domain := provider.Domain(n, resolved)
	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, errs.New(errs.ErrAddress, err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	sa, err := provider.ToSockaddr(n, resolved)
	if err != nil {
		_ = unix.Close(fd)
		return -1, nil, err
	}
	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, nil, errs.New(errs.ErrAddress, err)
	}

	if backlog <= 0 {
		backlog = defaultBacklog
	}
	if err = unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, nil, errs.New(errs.ErrAddress, err)
	}

	local = resolved
	if bound, gerr := unix.Getsockname(fd); gerr == nil {
		if a := provider.FromSockaddr(n, bound); a != nil {
			local = a
		}
	}

	if err = provider.ApplyPathPerm(n, local, perm, gid); err != nil {
		_ = unix.Close(fd)
		return -1, nil, errs.New(errs.ErrAddress, err)
	}
	return fd, local, nil
}

// acceptOne accepts a single pending connection from fd, non-blocking. ok is
// false (err nil) on EAGAIN, meaning the accept backlog is currently empty.
func acceptOne(n libptc.NetworkProtocol, fd int) (nfd int, local, remote net.Addr, ok bool, err error) {
	cfd, sa, aerr := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return -1, nil, nil, false, nil
		}
		return -1, nil, nil, false, errs.New(errs.UnknownError, aerr)
	}

	remote = provider.FromSockaddr(n, sa)
	if bound, gerr := unix.Getsockname(cfd); gerr == nil {
		local = provider.FromSockaddr(n, bound)
	}
	return cfd, local, remote, true, nil
}

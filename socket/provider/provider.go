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

// Package provider implements the Channel Provider: the thin transport
// adapter between a raw, non-blocking socket file descriptor and the
// Connection state machine in socket/conn. It owns per-socket read/write
// syscalls, interest-op manipulation on its selector.Key, and — for
// server-mode UDP/Unixgram sockets — the per-peer read backlog the
// demultiplexer fills.
package provider

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/errs"
	"github.com/sabouaram/netio/selector"
)

// Provider is the contract socket/conn depends on. All methods are safe to
// call from the I/O thread; Close and interest changes are additionally
// safe from arbitrary goroutines (serialized through the selector key).
type Provider interface {
	// Connect starts a non-blocking connect. immediate is true if the
	// kernel completed it synchronously (common for AF_UNIX, loopback).
	Connect(remote net.Addr, timeout int) (immediate bool, err error)

	// Read performs one non-blocking read. n == 0, err == nil means
	// EWOULDBLOCK (no data yet). n < 0 is never returned; a peer-closed
	// stream surfaces as err == io.EOF.
	Read(buf []byte) (n int, err error)

	// Write performs one non-blocking write. n == 0, err == nil means the
	// kernel refused more bytes (EWOULDBLOCK) — the caller must backlog.
	Write(buf []byte) (n int, err error)

	// WriteBacklogStarted/Ended arm/disarm write-readiness on the
	// selection key and wake the selector so the change takes effect
	// promptly.
	WriteBacklogStarted()
	WriteBacklogEnded()

	// SetReadBlock arms/disarms read-readiness. Only meaningful for
	// client-mode sockets; server-mode UDP ignores it per spec.md §4.A.
	SetReadBlock(block bool)

	IsAvailable() bool
	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// Key returns the selector.Key this provider is registered under, or
	// nil before Bind is called.
	Key() *selector.Key

	Close() error
}

// Base holds the fields every concrete provider shares: the raw fd, its
// selector, its key once registered, and the current interest set.
type Base struct {
	Fd  int
	Sel *selector.Selector

	mu       sync.Mutex
	key      *selector.Key
	interest selector.Interest
	closed   bool
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// newSocket creates a non-blocking socket of the given domain/type.
func newSocket(domain, sockType int) (int, error) {
	fd, err := unix.Socket(domain, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errs.New(errs.ErrAddress, err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return fd, nil
}

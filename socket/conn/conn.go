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

// Package conn implements the Connection state machine (spec.md §4.B) and
// its two record-layer variants: Plain (§4.C) and TLS (§4.D).
package conn

import (
	"net"
	"time"

	"github.com/sabouaram/netio/selector"
)

// Connection is the surface socket/server and socket/client drive a
// connection through, regardless of record layer. Both Plain and TLS
// satisfy it; a server or client manager that does not care which record
// layer it is holding programs against this interface.
type Connection interface {
	selector.Handler

	// Connect dials a not-yet-connected provider; Attach adopts an
	// already-connected (accepted) one. Exactly one of the two is called
	// once per connection, per spec.md §4.B.
	Connect(sel *selector.Selector, timeoutMs int) error
	Attach(sel *selector.Selector) error

	Write(data []byte) error
	Close() error

	LastIO() time.Time
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	IsConnected() bool
}

var (
	_ Connection = (*Plain)(nil)
	_ Connection = (*TLS)(nil)
)

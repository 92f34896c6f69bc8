/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package selector

import "sync"

// Closable is anything a ConnSelector can funnel a local-close request for:
// in this module, a connection attached to a Key.
type Closable interface {
	// HandleClosedLocally runs the close event dispatch for a connection
	// whose close()/destroy() was called off the I/O thread.
	HandleClosedLocally()
}

// ConnSelector extends Selector with a concurrent queue of connections whose
// local close was requested from an arbitrary goroutine. Channels closed via
// their own fd are removed from the epoll set before the next epoll_wait
// returns, so there is no readiness event to carry the close; enqueueing
// here is the only thread-safe path that funnels it back onto the I/O
// thread for ordered dispatch.
type ConnSelector struct {
	*Selector

	mu      sync.Mutex
	pending []Closable
}

// NewConnSelector wraps a fresh Selector with local-close bookkeeping.
func NewConnSelector(s *Selector) *ConnSelector {
	return &ConnSelector{Selector: s}
}

// OnConnectionClosed enqueues conn for close dispatch on the I/O thread and
// wakes the selector so loopIteration runs promptly.
func (c *ConnSelector) OnConnectionClosed(conn Closable) {
	c.mu.Lock()
	c.pending = append(c.pending, conn)
	c.mu.Unlock()
	c.Wakeup()
}

// Run drives the readiness loop, draining the local-close queue at the top
// of every iteration.
func (c *ConnSelector) Run() error {
	return c.Selector.run(c)
}

func (c *ConnSelector) loopIteration() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	drained := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, conn := range drained {
		conn.HandleClosedLocally()
	}
}

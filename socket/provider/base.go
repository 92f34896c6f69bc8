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
	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/selector"
)

// Bind registers fd with sel under the given initial interest and handler,
// storing the resulting key on Base. Concrete providers call this once
// their fd exists (dial, accept, or datagram socket creation).
func (b *Base) Bind(sel *selector.Selector, interest selector.Interest, handler selector.Handler, attachment interface{}) error {
	key, err := sel.Register(b.Fd, interest, handler, attachment)
	if err != nil {
		return err
	}
	b.Sel = sel
	b.mu.Lock()
	b.key = key
	b.interest = interest
	b.mu.Unlock()
	return nil
}

func (b *Base) Key() *selector.Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

func (b *Base) setInterest(i selector.Interest) {
	b.mu.Lock()
	key := b.key
	b.interest = i
	b.mu.Unlock()

	if key == nil || b.Sel == nil {
		return
	}
	_ = b.Sel.Interest(key, i)
	b.Sel.Wakeup()
}

func (b *Base) WriteBacklogStarted() {
	b.mu.Lock()
	i := b.interest | selector.Write
	b.mu.Unlock()
	b.setInterest(i)
}

func (b *Base) WriteBacklogEnded() {
	b.mu.Lock()
	i := b.interest &^ selector.Write
	b.mu.Unlock()
	b.setInterest(i)
}

func (b *Base) SetReadBlock(block bool) {
	b.mu.Lock()
	i := b.interest
	if block {
		i &^= selector.Read
	} else {
		i |= selector.Read
	}
	b.mu.Unlock()
	b.setInterest(i)
}

func (b *Base) IsAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Close is serialized with the selection key: the key is cancelled from
// the selector before the fd itself is closed, matching spec.md §4.A's
// "close() must be serialized with the selection key" contract.
func (b *Base) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	key := b.key
	b.mu.Unlock()

	if key != nil && b.Sel != nil {
		b.Sel.Cancel(key)
	}
	return unix.Close(b.Fd)
}

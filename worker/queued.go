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

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Queued offloads callback dispatch onto a single background goroutine
// draining a FIFO channel, so the I/O thread that calls Submit never blocks
// on application code. Its Start/Stop/IsRunning/Uptime lifecycle mirrors the
// teacher's runner/startStop shape.
type Queued struct {
	size int

	mu      sync.Mutex
	tasks   chan func()
	done    chan struct{}
	running atomic.Bool
	started time.Time
}

// NewQueued returns a Queued worker buffering up to size pending tasks
// before Submit blocks. size <= 0 defaults to 256.
func NewQueued(size int) *Queued {
	if size <= 0 {
		size = 256
	}
	return &Queued{size: size}
}

// NewQueuedCreator returns a WorkerCreator minting and starting a fresh
// Queued worker per call, matching the server-builder workerCreator option.
func NewQueuedCreator(size int) WorkerCreator {
	return func() Worker {
		q := NewQueued(size)
		_ = q.Start(context.Background())
		return q
	}
}

// Start launches the drain goroutine. Calling Start twice is a no-op.
func (q *Queued) Start(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running.Load() {
		return nil
	}

	q.tasks = make(chan func(), q.size)
	q.done = make(chan struct{})
	q.started = time.Now()
	q.running.Store(true)

	tasks, done := q.tasks, q.done
	go func() {
		for {
			select {
			case fn, ok := <-tasks:
				if !ok {
					close(done)
					return
				}
				if fn != nil {
					fn()
				}
			}
		}
	}()

	return nil
}

// Stop closes the task channel and waits for the drain goroutine to finish
// running everything already queued, then exits.
func (q *Queued) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running.Load() {
		q.mu.Unlock()
		return nil
	}
	tasks, done := q.tasks, q.done
	q.running.Store(false)
	q.mu.Unlock()

	close(tasks)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the drain goroutine is accepting tasks.
func (q *Queued) IsRunning() bool {
	return q.running.Load()
}

// Uptime reports how long the worker has been running, zero if stopped.
func (q *Queued) Uptime() time.Duration {
	if !q.running.Load() {
		return 0
	}
	return time.Since(q.started)
}

// Submit enqueues fn on a running worker. If the worker was never started
// or has been stopped, fn runs inline on the caller so callbacks are never
// silently dropped.
func (q *Queued) Submit(fn func()) {
	if fn == nil {
		return
	}
	if !q.running.Load() {
		fn()
		return
	}

	q.mu.Lock()
	tasks := q.tasks
	running := q.running.Load()
	q.mu.Unlock()

	if !running {
		fn()
		return
	}

	select {
	case tasks <- fn:
	case <-q.done:
		fn()
	}
}

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

// Package selector implements the readiness-multiplexing loop that drives
// every socket this module manages: one epoll instance per Selector, one
// goroutine running Run, cross-thread registration coordinated through a
// register_pending flag, and a bounded rebuild-on-spurious-wakeup policy.
package selector

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/errs"
	"github.com/sabouaram/netio/logger"
)

// Interest is the set of readiness conditions a Key is registered for.
type Interest uint32

const (
	Read Interest = 1 << iota
	Write
)

func (i Interest) epollEvents() uint32 {
	var e uint32
	if i&Read != 0 {
		e |= unix.EPOLLIN
	}
	if i&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

// Handler reacts to readiness on a Key. readable/writable report which
// conditions fired this turn.
type Handler interface {
	HandleReady(key *Key, readable, writable bool)
}

// Key is one registered file descriptor, with its current interest set,
// handler, and an opaque attachment (typically the owning connection).
type Key struct {
	Fd         int
	Attachment interface{}

	mu       sync.Mutex
	valid    bool
	interest Interest
	handler  Handler
}

// Valid reports whether the key is still registered with its selector.
func (k *Key) Valid() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.valid
}

// Interest returns the key's current interest set.
func (k *Key) Interest() Interest {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.interest
}

const (
	// RebuildThreshold is the number of consecutive zero-key wakeups that
	// triggers a selector rebuild.
	RebuildThreshold = 1024
	// RebuildsMax is the number of rebuilds tolerated before the loop fails.
	RebuildsMax = 8

	registerPendingWaitBound = 2 * time.Second
	maxEvents                = 256
)

// Selector owns one epoll instance, its registered-keys set, and the
// eventfd used to force select() to return from another goroutine.
type Selector struct {
	log logger.Logger

	mu      sync.Mutex
	epfd    int
	wakeFd  int
	keys    map[int]*Key
	running atomic.Bool

	registerPending atomic.Bool

	spins   int
	rebuilds int
}

// New opens a fresh epoll instance plus its wakeup eventfd.
func New(log logger.Logger) (*Selector, error) {
	if log == nil {
		log = logger.Default
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, errs.New(errs.UnknownError, err)
	}

	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, errs.New(errs.UnknownError, err)
	}

	s := &Selector{
		log:    log,
		epfd:   epfd,
		wakeFd: wfd,
		keys:   make(map[int]*Key),
	}

	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wfd),
	}); err != nil {
		_ = unix.Close(wfd)
		_ = unix.Close(epfd)
		return nil, errs.New(errs.UnknownError, err)
	}

	s.running.Store(true)
	return s, nil
}

// Wakeup forces a blocked Run loop to return from epoll_wait immediately.
func (s *Selector) Wakeup() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(s.wakeFd, buf[:])
}

// Register adds fd to the epoll set with the given interest, handler and
// attachment, returning the Key other calls use to address it. Safe to call
// from any goroutine: it sets register_pending, wakes the loop so it does
// not hold epoll_wait while the registration lock is needed, performs the
// epoll_ctl call, then clears register_pending.
func (s *Selector) Register(fd int, interest Interest, handler Handler, attachment interface{}) (*Key, error) {
	s.registerPending.Store(true)
	s.Wakeup()
	defer s.registerPending.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := &Key{Fd: fd, Attachment: attachment, valid: true, interest: interest, handler: handler}

	ev := unix.EpollEvent{Events: interest.epollEvents(), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, errs.New(errs.UnknownError, err)
	}

	s.keys[fd] = key
	return key, nil
}

// Interest updates a key's registered readiness conditions.
func (s *Selector) Interest(key *Key, interest Interest) error {
	key.mu.Lock()
	if !key.valid {
		key.mu.Unlock()
		return errs.New(errs.ErrClosed, nil)
	}
	key.interest = interest
	fd := key.Fd
	key.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	ev := unix.EpollEvent{Events: interest.epollEvents(), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errs.New(errs.UnknownError, err)
	}
	return nil
}

// Cancel removes a key from the epoll set. It does not close the fd.
func (s *Selector) Cancel(key *Key) {
	key.mu.Lock()
	if !key.valid {
		key.mu.Unlock()
		return
	}
	key.valid = false
	fd := key.Fd
	key.mu.Unlock()

	s.mu.Lock()
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(s.keys, fd)
	s.mu.Unlock()
}

// IsRunning reports whether the selector loop is still expected to run.
func (s *Selector) IsRunning() bool {
	return s.running.Load()
}

// Close marks the selector not running, wakes the loop, and closes the
// wakeup and epoll descriptors. Registered keys and their fds are left as
// they are; closing those channels is up to their owners.
func (s *Selector) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.Wakeup()

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = unix.Close(s.wakeFd)
	return unix.Close(s.epfd)
}

// loopIteration is the virtual hook spec.md §4.E calls at the top of every
// turn, even on zero-key wakeups. The base Selector has nothing to do here;
// ConnSelector overrides the behavior by embedding and shadowing Run.
type loopHook interface {
	loopIteration()
}

// Run drives the readiness loop until Close is called or select fails
// unrecoverably after RebuildsMax consecutive rebuilds.
func (s *Selector) Run() error {
	return s.run(s)
}

// run is factored out so ConnSelector can supply its own loopIteration hook
// while reusing the select/rebuild machinery.
func (s *Selector) run(hook loopHook) error {
	events := make([]unix.EpollEvent, maxEvents)

	for s.running.Load() {
		hook.loopIteration()
		if !s.running.Load() {
			break
		}

		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errs.New(errs.UnknownError, err)
		}

		if n > 0 {
			s.dispatch(events[:n])
			s.spins = 0
			s.rebuilds = 0
		} else {
			s.spins++
		}

		s.waitOutRegisterPending()

		if s.spins >= RebuildThreshold {
			s.rebuilds++
			if s.rebuilds > RebuildsMax {
				return errs.New(errs.ErrSelectorRebuild, nil)
			}
			if err = s.rebuild(s.rebuilds == RebuildsMax); err != nil {
				return err
			}
			s.spins = 0
		}
	}

	return nil
}

func (s *Selector) dispatch(events []unix.EpollEvent) {
	s.mu.Lock()
	keys := make([]*Key, 0, len(events))
	flags := make([]unix.EpollEvent, 0, len(events))
	for _, ev := range events {
		if ev.Fd == int32(s.wakeFd) {
			var buf [8]byte
			_, _ = unix.Read(s.wakeFd, buf[:])
			continue
		}
		if k, ok := s.keys[int(ev.Fd)]; ok {
			keys = append(keys, k)
			flags = append(flags, ev)
		}
	}
	s.mu.Unlock()

	for i, k := range keys {
		if !k.Valid() {
			continue
		}
		readable := flags[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0
		writable := flags[i].Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0
		k.mu.Lock()
		h := k.handler
		k.mu.Unlock()
		if h != nil {
			h.HandleReady(k, readable, writable)
		}
	}
}

func (s *Selector) waitOutRegisterPending() {
	if !s.registerPending.Load() {
		return
	}
	deadline := time.Now().Add(registerPendingWaitBound)
	for s.registerPending.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

// rebuild opens a fresh epoll instance, re-registers every still-valid key,
// and closes the old instance. When destroy is true (the final permitted
// rebuild), channels are cancelled instead of re-registered — the caller
// observes this as their keys going invalid and must destroy the owning
// connections.
func (s *Selector) rebuild(destroy bool) error {
	s.log.Entry(s.log.GetLevel(), "selector: rebuilding after spurious wakeup storm").
		Field("destroy", destroy).Log()

	s.mu.Lock()
	old := s.epfd
	oldKeys := s.keys
	s.mu.Unlock()

	if destroy {
		for _, k := range oldKeys {
			s.Cancel(k)
		}
		return nil
	}

	newEpfd, err := unix.EpollCreate1(0)
	if err != nil {
		return errs.New(errs.ErrSelectorRebuild, err)
	}

	if err = unix.EpollCtl(newEpfd, unix.EPOLL_CTL_ADD, s.wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(s.wakeFd),
	}); err != nil {
		_ = unix.Close(newEpfd)
		return errs.New(errs.ErrSelectorRebuild, err)
	}

	s.mu.Lock()
	for fd, k := range oldKeys {
		k.mu.Lock()
		ev := unix.EpollEvent{Events: k.interest.epollEvents(), Fd: int32(fd)}
		k.mu.Unlock()
		if err = unix.EpollCtl(newEpfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			s.log.Entry(s.log.GetLevel(), "selector: failed re-registering fd during rebuild").
				Field("fd", fd).ErrorField(err).Log()
		}
	}
	s.epfd = newEpfd
	s.mu.Unlock()

	_ = unix.Close(old)
	return nil
}

func (s *Selector) loopIteration() {}

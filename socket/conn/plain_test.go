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

package conn_test

import (
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/netio/logger"
	libptc "github.com/sabouaram/netio/network/protocol"
	"github.com/sabouaram/netio/selector"
	"github.com/sabouaram/netio/socket/conn"
	"github.com/sabouaram/netio/socket/provider"
	"github.com/sabouaram/netio/worker"
)

// recorder collects the events a Handlers table fires, guarded by its own
// mutex since HandleReady runs on the selector goroutine.
type recorder struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	data      [][]byte
	errs      []error
}

func (r *recorder) handlers() conn.Handlers {
	return conn.Handlers{
		OnConnect: func() {
			r.mu.Lock()
			r.connected = true
			r.mu.Unlock()
		},
		OnData: func(b []byte) {
			r.mu.Lock()
			cp := append([]byte(nil), b...)
			r.data = append(r.data, cp)
			r.mu.Unlock()
		},
		OnClose: func() {
			r.mu.Lock()
			r.closed = true
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) isConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) joinedData() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, d := range r.data {
		out = append(out, d...)
	}
	return string(out)
}

var _ = Describe("Plain connection", func() {
	var sel *selector.Selector

	BeforeEach(func() {
		var err error
		sel, err = selector.New(logger.New())
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = sel.Run() }()
	})

	AfterEach(func() {
		_ = sel.Close()
	})

	It("dials a loopback listener, dispatches connect, and exchanges data", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = ln.Close() }()

		accepted := make(chan net.Conn, 1)
		go func() {
			c, aerr := ln.Accept()
			if aerr == nil {
				accepted <- c
			}
		}()

		remote, err := provider.Resolve(libptc.NetworkTCP, ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())

		prov, err := provider.NewStreamClient(libptc.NetworkTCP)
		Expect(err).NotTo(HaveOccurred())

		rec := &recorder{}
		p := conn.NewPlain(prov, worker.Inline, rec.handlers(), remote)

		Expect(p.Write([]byte("queued-before-connect"))).To(Succeed())
		Expect(p.Connect(sel, 2000)).To(Succeed())

		var srvConn net.Conn
		Eventually(accepted, time.Second).Should(Receive(&srvConn))
		defer func() { _ = srvConn.Close() }()

		Eventually(rec.isConnected, time.Second).Should(BeTrue())

		buf := make([]byte, 64)
		srvConn.SetReadDeadline(time.Now().Add(time.Second))
		n, rerr := srvConn.Read(buf)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("queued-before-connect"))

		_, err = srvConn.Write([]byte("server-says-hi"))
		Expect(err).NotTo(HaveOccurred())

		Eventually(rec.joinedData, time.Second).Should(Equal("server-says-hi"))

		Expect(p.Write([]byte("after-connect"))).To(Succeed())
		buf2 := make([]byte, 64)
		srvConn.SetReadDeadline(time.Now().Add(time.Second))
		n2, rerr2 := srvConn.Read(buf2)
		Expect(rerr2).NotTo(HaveOccurred())
		Expect(string(buf2[:n2])).To(Equal("after-connect"))
	})

	It("dispatches close when the peer shuts down", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = ln.Close() }()

		accepted := make(chan net.Conn, 1)
		go func() {
			c, aerr := ln.Accept()
			if aerr == nil {
				accepted <- c
			}
		}()

		remote, err := provider.Resolve(libptc.NetworkTCP, ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())

		prov, err := provider.NewStreamClient(libptc.NetworkTCP)
		Expect(err).NotTo(HaveOccurred())

		rec := &recorder{}
		p := conn.NewPlain(prov, worker.Inline, rec.handlers(), remote)
		Expect(p.Connect(sel, 2000)).To(Succeed())

		var srvConn net.Conn
		Eventually(accepted, time.Second).Should(Receive(&srvConn))

		Eventually(rec.isConnected, time.Second).Should(BeTrue())
		_ = srvConn.Close()

		Eventually(rec.isClosed, time.Second).Should(BeTrue())
	})

	It("attaches an already-connected provider directly into the connected state", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = ln.Close() }()

		accepted := make(chan net.Conn, 1)
		go func() {
			c, aerr := ln.Accept()
			if aerr == nil {
				accepted <- c
			}
		}()

		remote, err := provider.Resolve(libptc.NetworkTCP, ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())

		prov, err := provider.NewStreamClient(libptc.NetworkTCP)
		Expect(err).NotTo(HaveOccurred())
		_, err = prov.Connect(remote, 0)
		Expect(err).NotTo(HaveOccurred())

		var srvConn net.Conn
		Eventually(accepted, time.Second).Should(Receive(&srvConn))
		defer func() { _ = srvConn.Close() }()

		Eventually(func() error { return prov.FinishConnect() }, time.Second, 10*time.Millisecond).Should(Succeed())

		rec := &recorder{}
		p := conn.NewPlain(prov, worker.Inline, rec.handlers(), nil)
		Expect(p.Attach(sel)).To(Succeed())

		Eventually(rec.isConnected, time.Second).Should(BeTrue())

		_, err = srvConn.Write([]byte("hi-from-server"))
		Expect(err).NotTo(HaveOccurred())
		Eventually(rec.joinedData, time.Second).Should(Equal("hi-from-server"))
	})
})

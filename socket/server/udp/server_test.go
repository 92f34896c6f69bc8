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

package udp_test

import (
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/netio/logger"
	libptc "github.com/sabouaram/netio/network/protocol"
	"github.com/sabouaram/netio/selector"
	clientudp "github.com/sabouaram/netio/socket/client/udp"
	"github.com/sabouaram/netio/socket/config"
	"github.com/sabouaram/netio/socket/conn"
	serverudp "github.com/sabouaram/netio/socket/server/udp"
	"github.com/sabouaram/netio/worker"
)

type recorder struct {
	mu        sync.Mutex
	connected bool
	data      [][]byte
}

func (r *recorder) handlers() conn.Handlers {
	return conn.Handlers{
		OnConnect: func() { r.mu.Lock(); r.connected = true; r.mu.Unlock() },
		OnData: func(b []byte) {
			r.mu.Lock()
			r.data = append(r.data, append([]byte(nil), b...))
			r.mu.Unlock()
		},
	}
}

func (r *recorder) isConnected() bool { r.mu.Lock(); defer r.mu.Unlock(); return r.connected }
func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, d := range r.data {
		out = append(out, d...)
	}
	return string(out)
}

var _ = Describe("UDP Server/Client Manager", func() {
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

	It("demultiplexes a dialed client's datagrams into a synthesized peer connection", func() {
		var srvRec *recorder
		var srvRecMu sync.Mutex

		cfg := config.Server{Network: libptc.NetworkUDP, Address: "127.0.0.1:0"}
		srv, err := serverudp.New(cfg, sel, logger.New(), worker.NewInline(), func(net.Addr) conn.Handlers {
			r := &recorder{}
			srvRecMu.Lock()
			srvRec = r
			srvRecMu.Unlock()
			return r.handlers()
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(srv.Start()).To(Succeed())
		defer func() { _ = srv.Stop() }()

		cliRec := &recorder{}
		cliCfg := config.Client{Network: libptc.NetworkUDP, Address: srv.Addr().String()}
		cli, err := clientudp.Dial(cliCfg, sel, worker.Inline, cliRec.handlers(), 2000)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = cli.Close() }()

		Eventually(cliRec.isConnected, 2*time.Second).Should(BeTrue())
		Expect(cli.Write([]byte("ping"))).To(Succeed())

		Eventually(func() *recorder {
			srvRecMu.Lock()
			defer srvRecMu.Unlock()
			return srvRec
		}, 2*time.Second).ShouldNot(BeNil())
		Eventually(srvRec.joined, 2*time.Second).Should(Equal("ping"))
		Eventually(func() int64 { return srv.OpenConnections() }, 2*time.Second).Should(Equal(int64(1)))
	})

	It("rejects a TLS-enabled config with no Config set", func() {
		cfg := config.Server{
			Network: libptc.NetworkUDP,
			Address: "127.0.0.1:0",
			TLS:     config.TLS{Enabled: true},
		}
		_, err := serverudp.New(cfg, sel, logger.New(), nil, nil)
		Expect(err).To(HaveOccurred())
	})
})

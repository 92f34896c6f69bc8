/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package certificates is the external collaborator the core's TLS/DTLS
// connection relies on for *tls.Config construction. PEM/PKCS loading and
// trust-store construction proper (multi-format parsing, CBOR/TOML encode,
// certificate rotation) are out of this core's scope per spec.md §1 — only
// the Config interface shape matters to socket/conn's TLS engine. This
// package therefore offers one straightforward implementation backed
// directly by crypto/tls and crypto/x509, not the fuller certificate-
// management subsystem a complete application would layer on top.
package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"sync"

	"github.com/pion/dtls/v2"

	tlsaut "github.com/sabouaram/netio/certificates/auth"
	tlscpr "github.com/sabouaram/netio/certificates/cipher"
	tlscrv "github.com/sabouaram/netio/certificates/curves"
	tlsvrs "github.com/sabouaram/netio/certificates/tlsversion"
)

// Config is the TLS configuration surface the TLS/DTLS connection (§4.D)
// consumes. All operations are safe for concurrent use.
type Config interface {
	AddRootCA(pemCert []byte) bool
	AddRootCAFile(pemFile string) error
	GetRootCAPool() *x509.CertPool

	AddClientCA(pemCert []byte) bool
	GetClientCAPool() *x509.CertPool
	SetClientAuth(a tlsaut.ClientAuth)

	AddCertificatePair(cert tls.Certificate)
	AddCertificatePairFile(keyFile, crtFile string) error
	GetCertificatePair() []tls.Certificate

	SetVersionMin(v tlsvrs.Version)
	GetVersionMin() tlsvrs.Version
	SetVersionMax(v tlsvrs.Version)
	GetVersionMax() tlsvrs.Version

	SetCipherList(c []tlscpr.Cipher)
	GetCiphers() []tlscpr.Cipher
	SetWeakCipherDisabled(flag bool)

	SetCurveList(c []tlscrv.Curves)
	GetCurves() []tlscrv.Curves

	RegisterRand(rand io.Reader)

	Clone() Config
	// TLS builds a *tls.Config for the given server name (SNI on the client
	// side, certificate-selection hint on the server side). ALPN protocols
	// are not carried by Config: the caller (socket/conn) sets NextProtos
	// on the returned value, since ALPN preference is per-connection, not
	// per TLSConfig, per spec.md §4.D.
	TLS(serverName string) *tls.Config
	// DTLS builds the equivalent *dtls.Config for datagram Connections
	// (spec.md §4.D), sharing the same root/client CA pools, certificate
	// pairs, and client-auth mode as TLS. DTLS 1.2 (the only version
	// pion/dtls/v2 implements) has no MinVersion/MaxVersion negotiation
	// knob, so VersionMin/VersionMax are not consulted here.
	DTLS(serverName string) *dtls.Config
}

type config struct {
	mu sync.RWMutex

	rand io.Reader

	caRoot   *x509.CertPool
	caClient *x509.CertPool
	auth     tlsaut.ClientAuth

	cert []tls.Certificate

	verMin, verMax tlsvrs.Version
	ciphers        []tlscpr.Cipher
	curves         []tlscrv.Curves
	weakDisabled   bool
}

// New returns a Config seeded with the defaults spec.md §6 names: TLS 1.2
// minimum, TLS 1.3 maximum, weak-cipher filtering off.
func New() Config {
	return &config{
		caRoot:   x509.NewCertPool(),
		caClient: x509.NewCertPool(),
		auth:     tlsaut.NoClientCert,
		cert:     make([]tls.Certificate, 0),
		verMin:   tlsvrs.VersionTLS12,
		verMax:   tlsvrs.VersionTLS13,
		ciphers:  make([]tlscpr.Cipher, 0),
		curves:   make([]tlscrv.Curves, 0),
	}
}

func (c *config) RegisterRand(rand io.Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rand = rand
}

func (c *config) AddRootCA(pemCert []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caRoot.AppendCertsFromPEM(pemCert)
}

func (c *config) AddRootCAFile(pemFile string) error {
	p, e := readFile(pemFile)
	if e != nil {
		return e
	}
	if !c.AddRootCA(p) {
		return ErrInvalidCertificate
	}
	return nil
}

func (c *config) GetRootCAPool() *x509.CertPool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caRoot.Clone()
}

func (c *config) AddClientCA(pemCert []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caClient.AppendCertsFromPEM(pemCert)
}

func (c *config) GetClientCAPool() *x509.CertPool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caClient.Clone()
}

func (c *config) SetClientAuth(a tlsaut.ClientAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

func (c *config) AddCertificatePair(cert tls.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = append(c.cert, cert)
}

func (c *config) AddCertificatePairFile(keyFile, crtFile string) error {
	cert, e := tls.LoadX509KeyPair(crtFile, keyFile)
	if e != nil {
		return e
	}
	c.AddCertificatePair(cert)
	return nil
}

func (c *config) GetCertificatePair() []tls.Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]tls.Certificate, len(c.cert))
	copy(res, c.cert)
	return res
}

func (c *config) SetVersionMin(v tlsvrs.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verMin = v
}

func (c *config) GetVersionMin() tlsvrs.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verMin
}

func (c *config) SetVersionMax(v tlsvrs.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verMax = v
}

func (c *config) GetVersionMax() tlsvrs.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verMax
}

func (c *config) SetCipherList(list []tlscpr.Cipher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ciphers = append([]tlscpr.Cipher(nil), list...)
}

func (c *config) GetCiphers() []tlscpr.Cipher {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.ciphers
	if c.weakDisabled {
		list = tlscpr.FilterWeak(list)
	}
	res := make([]tlscpr.Cipher, len(list))
	copy(res, list)
	return res
}

func (c *config) SetWeakCipherDisabled(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weakDisabled = flag
}

func (c *config) SetCurveList(list []tlscrv.Curves) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.curves = append([]tlscrv.Curves(nil), list...)
}

func (c *config) GetCurves() []tlscrv.Curves {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]tlscrv.Curves, len(c.curves))
	copy(res, c.curves)
	return res
}

func (c *config) Clone() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &config{
		rand:         c.rand,
		caRoot:       c.caRoot.Clone(),
		caClient:     c.caClient.Clone(),
		auth:         c.auth,
		cert:         append([]tls.Certificate(nil), c.cert...),
		verMin:       c.verMin,
		verMax:       c.verMax,
		ciphers:      append([]tlscpr.Cipher(nil), c.ciphers...),
		curves:       append([]tlscrv.Curves(nil), c.curves...),
		weakDisabled: c.weakDisabled,
	}
}

func (c *config) TLS(serverName string) *tls.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cipherSuites := make([]uint16, 0, len(c.ciphers))
	ciphers := c.ciphers
	if c.weakDisabled {
		ciphers = tlscpr.FilterWeak(ciphers)
	}
	for _, ci := range ciphers {
		cipherSuites = append(cipherSuites, uint16(ci))
	}

	return &tls.Config{
		Rand:                  c.rand,
		ServerName:            serverName,
		RootCAs:               c.caRoot.Clone(),
		ClientCAs:             c.caClient.Clone(),
		ClientAuth:            c.auth.TLS(),
		Certificates:          append([]tls.Certificate(nil), c.cert...),
		MinVersion:            uint16(c.verMin),
		MaxVersion:            uint16(c.verMax),
		CipherSuites:          cipherSuites,
		CurvePreferences:      tlscrv.TLSCurveIDs(c.curves),
		DynamicRecordSizingDisabled: false,
	}
}

// DTLS mirrors TLS for the datagram transport: certificates, CA pools and
// client-auth mode carry over unchanged since pion/dtls/v2 models its
// ClientAuthType the same way crypto/tls does. Cipher suite IDs are the same
// IANA registry TLS uses, so the uint16 codepoints in c.ciphers cast
// directly onto dtls.CipherSuiteID without a lookup table.
func (c *config) DTLS(serverName string) *dtls.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ciphers := c.ciphers
	if c.weakDisabled {
		ciphers = tlscpr.FilterWeak(ciphers)
	}
	cipherSuites := make([]dtls.CipherSuiteID, 0, len(ciphers))
	for _, ci := range ciphers {
		cipherSuites = append(cipherSuites, dtls.CipherSuiteID(ci))
	}

	return &dtls.Config{
		ServerName:         serverName,
		RootCAs:            c.caRoot.Clone(),
		ClientCAs:          c.caClient.Clone(),
		ClientAuth:         dtlsClientAuth(c.auth),
		Certificates:       append([]tls.Certificate(nil), c.cert...),
		CipherSuites:       cipherSuites,
	}
}

// dtlsClientAuth maps tlsaut.ClientAuth onto dtls.ClientAuthType; pion/dtls
// declares the same five-value enum crypto/tls does, in the same order.
func dtlsClientAuth(a tlsaut.ClientAuth) dtls.ClientAuthType {
	switch a {
	case tlsaut.RequestClientCert:
		return dtls.RequestClientCert
	case tlsaut.RequireAnyClientCert:
		return dtls.RequireAnyClientCert
	case tlsaut.VerifyClientCertIfGiven:
		return dtls.VerifyClientCertIfGiven
	case tlsaut.RequireAndVerifyClientCert:
		return dtls.RequireAndVerifyClientCert
	default:
		return dtls.NoClientCert
	}
}

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

// Package cipher provides TLS cipher suite selection over every suite crypto/tls knows.
//
// A Cipher wraps the uint16 IDs from crypto/tls. The package also exposes
// IsWeak, the coarse substring-based weak-cipher filter carried over from
// the source library: it flags suite names containing "CBC", "ECDH_", or
// "RENEGOTIATION", and suites starting with "TLS_RSA_WITH_AES_". The policy
// is intentionally naive (name matching, not security analysis) and is kept
// as an opaque parameter rather than redesigned, per spec.
package cipher

import (
	"crypto/tls"
	"strings"
)

// Cipher wraps a TLS cipher suite ID.
type Cipher uint16

const Unknown Cipher = 0

// List returns every cipher suite the Go runtime knows about (secure + insecure).
func List() []Cipher {
	var res = make([]Cipher, 0)

	for _, c := range tls.CipherSuites() {
		res = append(res, Cipher(c.ID))
	}

	for _, c := range tls.InsecureCipherSuites() {
		res = append(res, Cipher(c.ID))
	}

	return res
}

// Name returns the cipher suite's registered name, or "" if unknown.
func (c Cipher) Name() string {
	for _, s := range tls.CipherSuites() {
		if uint16(c) == s.ID {
			return s.Name
		}
	}

	for _, s := range tls.InsecureCipherSuites() {
		if uint16(c) == s.ID {
			return s.Name
		}
	}

	return ""
}

// IsWeak reports whether the cipher suite name matches the disable-weak-ciphers
// substring policy described in spec.md §4.D / §9: names containing "CBC",
// "ECDH_", "RENEGOTIATION", or starting with "TLS_RSA_WITH_AES_".
func (c Cipher) IsWeak() bool {
	n := c.Name()
	if n == "" {
		return false
	}

	if strings.Contains(n, "CBC") {
		return true
	}
	if strings.Contains(n, "ECDH_") {
		return true
	}
	if strings.Contains(n, "RENEGOTIATION") {
		return true
	}
	if strings.HasPrefix(n, "TLS_RSA_WITH_AES_") {
		return true
	}

	return false
}

// Parse resolves a cipher suite by its registered name (case-insensitive).
func Parse(s string) Cipher {
	s = strings.TrimSpace(s)

	for _, c := range List() {
		if strings.EqualFold(c.Name(), s) {
			return c
		}
	}

	return Unknown
}

// FilterWeak removes every cipher in list for which IsWeak() is true.
func FilterWeak(list []Cipher) []Cipher {
	res := make([]Cipher, 0, len(list))

	for _, c := range list {
		if !c.IsWeak() {
			res = append(res, c)
		}
	}

	return res
}

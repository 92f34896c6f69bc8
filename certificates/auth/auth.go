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

// Package auth provides client authentication mode types for TLS connections.
package auth

import (
	"crypto/tls"
	"strings"
)

// ClientAuth wraps tls.ClientAuthType.
type ClientAuth tls.ClientAuthType

const (
	NoClientCert               = ClientAuth(tls.NoClientCert)
	RequestClientCert          = ClientAuth(tls.RequestClientCert)
	RequireAnyClientCert       = ClientAuth(tls.RequireAnyClientCert)
	VerifyClientCertIfGiven    = ClientAuth(tls.VerifyClientCertIfGiven)
	RequireAndVerifyClientCert = ClientAuth(tls.RequireAndVerifyClientCert)
)

func (a ClientAuth) TLS() tls.ClientAuthType {
	return tls.ClientAuthType(a)
}

func (a ClientAuth) String() string {
	switch tls.ClientAuthType(a) {
	case tls.RequestClientCert:
		return "request"
	case tls.RequireAnyClientCert:
		return "require"
	case tls.VerifyClientCertIfGiven:
		return "verify"
	case tls.RequireAndVerifyClientCert:
		return "strict"
	default:
		return "none"
	}
}

// Parse resolves a client-auth mode from its String() form.
func Parse(s string) ClientAuth {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "request":
		return RequestClientCert
	case "require":
		return RequireAnyClientCert
	case "verify":
		return VerifyClientCertIfGiven
	case "strict":
		return RequireAndVerifyClientCert
	default:
		return NoClientCert
	}
}

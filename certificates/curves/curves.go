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

// Package curves provides elliptic curve selection for ECDHE cipher suites.
package curves

import (
	"crypto/tls"
	"strings"
)

// Curves wraps a TLS named-curve / group ID.
type Curves tls.CurveID

const Unknown Curves = 0

const (
	X25519    = Curves(tls.X25519)
	CurveP256 = Curves(tls.CurveP256)
	CurveP384 = Curves(tls.CurveP384)
	CurveP521 = Curves(tls.CurveP521)
)

// List returns every curve known to this package, most preferred first.
func List() []Curves {
	return []Curves{X25519, CurveP256, CurveP384, CurveP521}
}

func (c Curves) String() string {
	switch c {
	case X25519:
		return "X25519"
	case CurveP256:
		return "P256"
	case CurveP384:
		return "P384"
	case CurveP521:
		return "P521"
	default:
		return "unknown"
	}
}

// Parse resolves a curve by its String() name (case-insensitive).
func Parse(s string) Curves {
	s = strings.TrimSpace(s)

	for _, c := range List() {
		if strings.EqualFold(c.String(), s) {
			return c
		}
	}

	return Unknown
}

// TLSCurveIDs converts a slice of Curves to the []tls.CurveID crypto/tls expects.
func TLSCurveIDs(list []Curves) []tls.CurveID {
	res := make([]tls.CurveID, 0, len(list))
	for _, c := range list {
		res = append(res, tls.CurveID(c))
	}
	return res
}

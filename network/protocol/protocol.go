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

// Package protocol declares the transport kinds the socket layer dials,
// listens on, and encodes into configuration: stream, datagram and
// filesystem-socket variants, plus the address-family-qualified forms
// net.Dial/net.Listen accept directly.
package protocol

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// NetworkProtocol identifies a transport/address-family pair accepted by
// net.Dial and net.Listen. The zero value, NetworkEmpty, means "unset".
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkUnix
	NetworkTCP
	NetworkTCP4
	NetworkTCP6
	NetworkUDP
	NetworkUDP4
	NetworkUDP6
	NetworkIP
	NetworkIP4
	NetworkIP6
	NetworkUnixGram
)

// String returns the net.Dial/net.Listen network name, or "" if unset.
func (n NetworkProtocol) String() string {
	switch n {
	case NetworkUnix:
		return "unix"
	case NetworkTCP:
		return "tcp"
	case NetworkTCP4:
		return "tcp4"
	case NetworkTCP6:
		return "tcp6"
	case NetworkUDP:
		return "udp"
	case NetworkUDP4:
		return "udp4"
	case NetworkUDP6:
		return "udp6"
	case NetworkIP:
		return "ip"
	case NetworkIP4:
		return "ip4"
	case NetworkIP6:
		return "ip6"
	case NetworkUnixGram:
		return "unixgram"
	default:
		return ""
	}
}

// Code is an alias for String, kept for config keys that read better as
// "code" than "string representation".
func (n NetworkProtocol) Code() string {
	return n.String()
}

// Int returns the underlying ordinal, 0 for unset/invalid.
func (n NetworkProtocol) Int() int {
	if n.String() == "" {
		return 0
	}
	return int(n)
}

// Int64 returns the underlying ordinal as int64, 0 for unset/invalid.
func (n NetworkProtocol) Int64() int64 {
	return int64(n.Int())
}

// Uint returns the underlying ordinal as uint, 0 for unset/invalid.
func (n NetworkProtocol) Uint() uint {
	return uint(n.Int())
}

// IsStream reports whether this protocol is connection-oriented
// (the Channel Provider's "stream" side: TCP and Unix stream sockets).
func (n NetworkProtocol) IsStream() bool {
	switch n {
	case NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkUnix:
		return true
	default:
		return false
	}
}

// IsDatagram reports whether this protocol is connectionless
// (the Channel Provider's "datagram" side: UDP and Unix datagram sockets).
func (n NetworkProtocol) IsDatagram() bool {
	switch n {
	case NetworkUDP, NetworkUDP4, NetworkUDP6, NetworkUnixGram:
		return true
	default:
		return false
	}
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, "`")
	s = strings.Trim(s, `'`)
	return s
}

// Parse resolves a NetworkProtocol from its string form, trimming
// surrounding whitespace and quote characters and matching case-insensitively.
// Unknown input returns NetworkEmpty.
func Parse(s string) NetworkProtocol {
	s = clean(s)
	for _, n := range []NetworkProtocol{
		NetworkUnix, NetworkTCP, NetworkTCP4, NetworkTCP6,
		NetworkUDP, NetworkUDP4, NetworkUDP6,
		NetworkIP, NetworkIP4, NetworkIP6, NetworkUnixGram,
	} {
		if strings.EqualFold(n.String(), s) {
			return n
		}
	}
	return NetworkEmpty
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(p []byte) NetworkProtocol {
	return Parse(string(p))
}

// ParseInt64 resolves a NetworkProtocol from its ordinal. Out-of-range
// values (including negatives and anything above NetworkUnixGram) return
// NetworkEmpty rather than panicking or wrapping.
func ParseInt64(i int64) NetworkProtocol {
	if i <= 0 || i > int64(NetworkUnixGram) {
		return NetworkEmpty
	}
	return NetworkProtocol(i)
}

// MarshalJSON implements json.Marshaler.
func (n NetworkProtocol) MarshalJSON() ([]byte, error) {
	s := n.String()
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	out = append(out, s...)
	out = append(out, '"')
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler. Unknown or malformed input
// resolves to NetworkEmpty rather than erroring, matching Parse's leniency.
func (n *NetworkProtocol) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*n = Parse(s)
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting the plain string form.
func (n NetworkProtocol) MarshalYAML() (interface{}, error) {
	return n.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *NetworkProtocol) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*n = Parse(s)
	return nil
}

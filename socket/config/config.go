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

// Package config declares the descriptors that parameterize a connection,
// a client manager, or a server: network protocol, address/path, TLS
// options, and the handful of server-only knobs spec.md §6 names
// (connection backlog, idle timeout, ALPN, Unix-socket file permissions).
package config

import (
	"errors"
	"net"
	"runtime"
	"time"

	libtls "github.com/sabouaram/netio/certificates"
	libprm "github.com/sabouaram/netio/file/perm"
	libptc "github.com/sabouaram/netio/network/protocol"
)

var (
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrInvalidTLSConfig = errors.New("invalid TLS config")
	ErrInvalidGroup     = errors.New("invalid unix group")
	ErrInvalidAddress   = errors.New("invalid address")
)

// MaxGID is the highest value accepted for Server.GroupPerm.
const MaxGID = 32767

// TLS carries the optional encryption parameters shared by Client and
// Server. A zero value means "plaintext". Config is nil unless Enabled.
type TLS struct {
	Enabled    bool
	Config     libtls.Config
	ServerName string
	ALPN       []string
}

// Client is an immutable descriptor for a connection a client manager will
// dial: remote network/address plus optional TLS parameters.
type Client struct {
	Network libptc.NetworkProtocol
	Address string
	TLS     TLS
}

// Validate checks the protocol is supported, the address resolves for that
// protocol, and that TLS (if enabled) is only requested on a TCP or UDP
// transport, never a Unix-domain one, with a non-nil Config.
func (c Client) Validate() error {
	if err := validateProtocol(c.Network); err != nil {
		return err
	}
	if err := validateTLS(c.Network, c.TLS); err != nil {
		return err
	}
	return resolveAddress(c.Network, c.Address)
}

// Server is an immutable descriptor for a listening endpoint: network/
// address, optional TLS, and the server-only tunables from spec.md §6.
type Server struct {
	Network libptc.NetworkProtocol
	Address string
	TLS     TLS

	// ConnectionBacklog is the pending-connection queue length for stream
	// listeners; 0 selects a sane default.
	ConnectionBacklog int
	// ConnectionIdleTimeout is the inactivity period after which the sweeper
	// closes a connection (e.g. 30 * time.Second); 0 or less disables it.
	ConnectionIdleTimeout time.Duration

	// PermFile/GroupPerm apply to NetworkUnix/NetworkUnixGram listen paths.
	PermFile  libprm.Perm
	GroupPerm int32
}

// Validate mirrors Client.Validate with the server-only group-permission
// check added.
func (s Server) Validate() error {
	if err := validateProtocol(s.Network); err != nil {
		return err
	}
	if err := validateTLS(s.Network, s.TLS); err != nil {
		return err
	}
	if s.GroupPerm < 0 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}
	return resolveAddress(s.Network, s.Address)
}

func validateProtocol(n libptc.NetworkProtocol) error {
	if n.String() == "" {
		return ErrInvalidProtocol
	}
	if runtime.GOOS == "windows" && (n == libptc.NetworkUnix || n == libptc.NetworkUnixGram) {
		return ErrInvalidProtocol
	}
	return nil
}

func validateTLS(n libptc.NetworkProtocol, t TLS) error {
	if !t.Enabled {
		return nil
	}
	if !n.IsStream() && !n.IsDatagram() {
		return ErrInvalidTLSConfig
	}
	if n == libptc.NetworkUnix || n == libptc.NetworkUnixGram {
		return ErrInvalidTLSConfig
	}
	if t.Config == nil {
		return ErrInvalidTLSConfig
	}
	return nil
}

func resolveAddress(n libptc.NetworkProtocol, addr string) error {
	switch n {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		_, err := net.ResolveTCPAddr(n.String(), addr)
		return err
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		_, err := net.ResolveUDPAddr(n.String(), addr)
		return err
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		_, err := net.ResolveUnixAddr(n.String(), addr)
		return err
	default:
		return ErrInvalidProtocol
	}
}

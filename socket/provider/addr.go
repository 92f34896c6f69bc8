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

package provider

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/netio/errs"
	libptc "github.com/sabouaram/netio/network/protocol"
)

// Domain returns the socket address family for a protocol: AF_UNIX for the
// Unix-domain variants, AF_INET6 for explicitly-6 variants, AF_INET
// otherwise (resolution of plain tcp/udp defers the v4-vs-v6 choice to the
// resolved address).
func Domain(n libptc.NetworkProtocol, resolved net.Addr) int {
	switch n {
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		return unix.AF_UNIX
	case libptc.NetworkTCP6, libptc.NetworkUDP6:
		return unix.AF_INET6
	case libptc.NetworkTCP4, libptc.NetworkUDP4:
		return unix.AF_INET
	}
	if ipAddr, ok := addrIP(resolved); ok && ipAddr.To4() == nil {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// SockType returns SOCK_STREAM for stream protocols, SOCK_DGRAM for
// datagram protocols.
func SockType(n libptc.NetworkProtocol) int {
	if n.IsDatagram() {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

func addrIP(a net.Addr) (net.IP, bool) {
	switch v := a.(type) {
	case *net.TCPAddr:
		return v.IP, true
	case *net.UDPAddr:
		return v.IP, true
	default:
		return nil, false
	}
}

// ToSockaddr converts a resolved net.Addr into the unix.Sockaddr the raw
// syscalls need, honoring the Unix-domain path form.
func ToSockaddr(n libptc.NetworkProtocol, a net.Addr) (unix.Sockaddr, error) {
	switch v := a.(type) {
	case *net.TCPAddr:
		return ipPortSockaddr(n, v.IP, v.Port)
	case *net.UDPAddr:
		return ipPortSockaddr(n, v.IP, v.Port)
	case *net.UnixAddr:
		return &unix.SockaddrUnix{Name: v.Name}, nil
	default:
		return nil, errs.New(errs.ErrAddress, nil)
	}
}

func ipPortSockaddr(n libptc.NetworkProtocol, ip net.IP, port int) (unix.Sockaddr, error) {
	if ip4 := ip.To4(); ip4 != nil && n != libptc.NetworkTCP6 && n != libptc.NetworkUDP6 {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return nil, errs.New(errs.ErrAddress, nil)
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip16)
	return sa, nil
}

// Resolve turns a network protocol and address string into a net.Addr,
// following net.Dial's own resolution for each protocol family.
func Resolve(n libptc.NetworkProtocol, address string) (net.Addr, error) {
	switch n {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		return net.ResolveTCPAddr(n.String(), address)
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		return net.ResolveUDPAddr(n.String(), address)
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		return net.ResolveUnixAddr(n.String(), address)
	default:
		return nil, errs.New(errs.ErrUnsupportedOperation, nil)
	}
}

// FromSockaddr converts a unix.Sockaddr (e.g. from getpeername/accept) back
// into a net.Addr for display/apparent-remote purposes.
func FromSockaddr(n libptc.NetworkProtocol, sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, v.Addr[:])
		if n.IsDatagram() {
			return &net.UDPAddr{IP: ip, Port: v.Port}
		}
		return &net.TCPAddr{IP: ip, Port: v.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, v.Addr[:])
		if n.IsDatagram() {
			return &net.UDPAddr{IP: ip, Port: v.Port}
		}
		return &net.TCPAddr{IP: ip, Port: v.Port}
	case *unix.SockaddrUnix:
		return &net.UnixAddr{Name: v.Name, Net: n.String()}
	default:
		return nil
	}
}

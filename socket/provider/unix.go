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
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	libprm "github.com/sabouaram/netio/file/perm"
	libptc "github.com/sabouaram/netio/network/protocol"
)

var unixgramSeq atomic.Uint64

// TempUnixgramPath returns a unique path under os.TempDir for a
// NetworkUnixGram client socket to bind to (see
// Datagram.NewDatagramClientBound's doc comment for why a client-side bind
// is required at all for this transport).
func TempUnixgramPath() string {
	n := unixgramSeq.Add(1)
	return fmt.Sprintf("%s/netio-unixgram-%d-%d-%d.sock", os.TempDir(), os.Getpid(), time.Now().UnixNano(), n)
}

// RemoveStalePath unlinks a leftover Unix-domain socket path before a
// listener/shared socket binds to it — bind(2) fails with EADDRINUSE
// against a path a prior, uncleanly-terminated process left behind. A
// no-op for every non-Unix-domain protocol.
func RemoveStalePath(n libptc.NetworkProtocol, addr net.Addr) error {
	if n != libptc.NetworkUnix && n != libptc.NetworkUnixGram {
		return nil
	}
	path := unixPath(addr)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ApplyPathPerm chmods (and, when gid > 0, chgrp's) a bound Unix-domain
// socket path per config.Server's PermFile/GroupPerm. A no-op for every
// non-Unix-domain protocol or a zero Perm.
func ApplyPathPerm(n libptc.NetworkProtocol, addr net.Addr, perm libprm.Perm, gid int32) error {
	if n != libptc.NetworkUnix && n != libptc.NetworkUnixGram {
		return nil
	}
	path := unixPath(addr)
	if path == "" {
		return nil
	}
	if perm != 0 {
		if err := os.Chmod(path, perm.FileMode()); err != nil {
			return err
		}
	}
	if gid > 0 {
		if err := os.Chown(path, -1, int(gid)); err != nil {
			return err
		}
	}
	return nil
}

func unixPath(addr net.Addr) string {
	if u, ok := addr.(*net.UnixAddr); ok {
		return u.Name
	}
	return ""
}

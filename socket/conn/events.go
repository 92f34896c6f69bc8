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

// Package conn implements the Connection state machine: write backlog,
// pre-connect queue, and the typed event table every transport (plaintext,
// TLS/DTLS) dispatches through.
package conn

// Kind identifies one of the six events a Connection ever raises.
type Kind uint8

const (
	Connect Kind = iota
	Timeout
	Data
	Writable
	Close
	Error
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Timeout:
		return "timeout"
	case Data:
		return "data"
	case Writable:
		return "writable"
	case Close:
		return "close"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Handlers is the fixed event table spec.md §9 calls for in place of the
// source's set-one callback slots: one callable per event kind, all
// optional. Connect/Timeout/Data/Writable/Close run on the connection's
// Worker; Error always runs synchronously on the caller and is always
// followed by Destroy.
type Handlers struct {
	OnConnect  func()
	OnTimeout  func()
	OnData     func(b []byte)
	OnWritable func()
	OnClose    func()
	OnError    func(err error)
}

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

// Package errs provides coded errors with parent chaining, compatible with
// errors.Is/errors.As. It is a trimmed sibling of the teacher's errors
// package: the pool/hierarchy/HTTP-status-table machinery is dropped since
// this core only ever raises the handful of codes declared below.
package errs

import "fmt"

// Code classifies the kind of failure a connection/selector/server raises.
type Code uint8

const (
	UnknownError Code = iota
	ErrAddress
	ErrUnsupportedOperation
	ErrHandshake
	ErrBufferOverflow
	ErrConnectTimeout
	ErrSelectorRebuild
	ErrClosed
	ErrProtocolMisuse
)

func (c Code) String() string {
	switch c {
	case ErrAddress:
		return "invalid address"
	case ErrUnsupportedOperation:
		return "unsupported operation"
	case ErrHandshake:
		return "handshake failure"
	case ErrBufferOverflow:
		return "buffer overflow"
	case ErrConnectTimeout:
		return "connect timed out"
	case ErrSelectorRebuild:
		return "selector rebuild exhausted"
	case ErrClosed:
		return "connection closed"
	case ErrProtocolMisuse:
		return "protocol misuse"
	default:
		return "unknown error"
	}
}

// Error is a coded error that may wrap a lower-level cause.
type Error struct {
	code   Code
	msg    string
	parent error
}

func New(code Code, parent error) *Error {
	return &Error{code: code, msg: code.String(), parent: parent}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.parent != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.parent.Error())
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.parent
}

func (e *Error) Code() Code {
	if e == nil {
		return UnknownError
	}
	return e.code
}

// Is implements errors.Is by code, so errors.Is(err, errs.New(errs.ErrClosed, nil))
// matches any Error sharing the same code, parent notwithstanding.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.code == t.code
}

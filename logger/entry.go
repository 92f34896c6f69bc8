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

package logger

import (
	"github.com/sirupsen/logrus"

	loglvl "github.com/sabouaram/netio/logger/level"
)

// Entry is one log line under construction. Field/ErrorField return the same
// Entry so calls chain; Log emits it.
type Entry interface {
	Field(key string, val interface{}) Entry
	ErrorField(err error) Entry
	Log()
}

type entry struct {
	logger *logger
	lvl    loglvl.Level
	msg    string
	fields logrus.Fields
	err    error
}

func (e *entry) Field(key string, val interface{}) Entry {
	e.fields[key] = val
	return e
}

func (e *entry) ErrorField(err error) Entry {
	e.err = err
	return e
}

func (e *entry) Log() {
	if e.lvl == loglvl.NilLevel || e.lvl > e.logger.GetLevel() {
		return
	}

	l := e.logger.base.WithFields(e.fields)
	if e.err != nil {
		l = l.WithField("error", e.err.Error())
	}

	l.Log(e.lvl.Logrus(), e.msg)
}

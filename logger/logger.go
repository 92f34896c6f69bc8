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

// Package logger is a trimmed, logrus-backed structured logger. It keeps the
// shape of the teacher's logger package (a Logger that hands out chained
// Entry values keyed by level and fields) but drops the multi-hook
// (syslog/file/gorm/hclog/gin) machinery that package carries, since this
// core only ever needs one sink.
package logger

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	loglvl "github.com/sabouaram/netio/logger/level"
)

// Logger is the minimal logging surface the I/O core depends on.
type Logger interface {
	SetLevel(lvl loglvl.Level)
	GetLevel() loglvl.Level
	SetFields(f Fields)
	Entry(lvl loglvl.Level, msg string) Entry
	FieldLogger() logrus.FieldLogger
}

// Fields are key/value pairs attached to every subsequent Entry.
type Fields map[string]interface{}

type logger struct {
	lvl    atomic.Uint32
	mu     sync.RWMutex
	fields Fields
	base   *logrus.Logger
}

// New returns a Logger writing through a fresh logrus.Logger at InfoLevel.
func New() Logger {
	l := &logger{base: logrus.New(), fields: make(Fields)}
	l.lvl.Store(uint32(loglvl.InfoLevel))
	l.base.SetLevel(loglvl.InfoLevel.Logrus())
	return l
}

func (l *logger) SetLevel(lvl loglvl.Level) {
	l.lvl.Store(uint32(lvl))
	l.base.SetLevel(lvl.Logrus())
}

func (l *logger) GetLevel() loglvl.Level {
	return loglvl.Level(l.lvl.Load())
}

func (l *logger) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = f
}

func (l *logger) FieldLogger() logrus.FieldLogger {
	return l.base
}

func (l *logger) Entry(lvl loglvl.Level, msg string) Entry {
	l.mu.RLock()
	fields := make(logrus.Fields, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	l.mu.RUnlock()

	return &entry{
		logger: l,
		lvl:    lvl,
		msg:    msg,
		fields: fields,
	}
}

// Default is a package-level logger used by components that are not handed
// one explicitly (selector rebuild warnings, dropped oversized datagrams).
var Default = New()

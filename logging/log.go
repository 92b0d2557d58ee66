// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-dpos
//
// go-dpos is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-dpos is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-dpos.  If not, see <https://www.gnu.org/licenses/>.

// Package logging is the node's logger: a thin layer over logrus that tags
// every entry with its source location.
//
//	logging.Base().Info("node started")
//	log.WithBlock(uint64(blk.Height), blk.ID).Warn("block disregarded")
package logging

import (
	"io"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity. Lower values are more severe.
type Level uint32

const (
	// Panic logs and then panics.
	Panic Level = iota
	// Fatal logs and then exits the process, after the exit handlers ran.
	Fatal
	// Error is for faults that lose or corrupt data.
	Error
	// Warn is for disregarded input and recoverable faults.
	Warn
	// Info is for chain progress.
	Info
	// Debug is for per-block and per-transaction detail.
	Debug
)

const (
	timestampFormat     = "2006-01-02T15:04:05.000000 -0700"
	jsonTimestampFormat = "2006-01-02T15:04:05.000000Z07:00"
)

var (
	baseLogger Logger
	once       sync.Once
)

// Init sets up the base logger. It logs warnings and above to stderr until
// configured otherwise.
func Init() {
	once.Do(func() {
		baseLogger = NewLogger()
		baseLogger.SetLevel(Warn)
	})
}

func init() {
	Init()
}

// Fields are structured key/values attached to an entry.
type Fields = logrus.Fields

// Logger is the logging interface used throughout the node.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})

	// Error and Errorf also log the current stack.
	Error(...interface{})
	Errorf(string, ...interface{})

	// Fatal and Fatalf log the current stack and exit.
	Fatal(...interface{})
	Fatalf(string, ...interface{})

	// With adds one key/value to every entry of the returned logger.
	With(key string, value interface{}) Logger
	WithFields(Fields) Logger
	// WithBlock tags entries with a block height and id.
	WithBlock(height uint64, id string) Logger

	SetLevel(Level)
	GetLevel() Level
	IsLevelEnabled(Level) bool
	SetOutput(io.Writer)
	SetJSONFormatter()

	source() *logrus.Entry
}

type logger struct {
	entry *logrus.Entry
}

// NewLogger returns a logger at Info level writing text to stderr.
func NewLogger() Logger {
	l := logrus.New()
	if tf, ok := l.Formatter.(*logrus.TextFormatter); ok {
		tf.TimestampFormat = timestampFormat
	}
	return logger{entry: logrus.NewEntry(l)}
}

// Base returns the process-wide logger.
func Base() Logger {
	return baseLogger
}

// RegisterExitHandler adds a function run before Fatal exits the process.
func RegisterExitHandler(handler func()) {
	logrus.RegisterExitHandler(handler)
}

func (l logger) Debug(args ...interface{})                 { l.source().Debug(args...) }
func (l logger) Debugf(format string, args ...interface{}) { l.source().Debugf(format, args...) }
func (l logger) Info(args ...interface{})                  { l.source().Info(args...) }
func (l logger) Infof(format string, args ...interface{})  { l.source().Infof(format, args...) }
func (l logger) Warn(args ...interface{})                  { l.source().Warn(args...) }
func (l logger) Warnf(format string, args ...interface{})  { l.source().Warnf(format, args...) }

func (l logger) Error(args ...interface{}) {
	e := l.source()
	e.Errorln("[Stack]", string(debug.Stack()))
	e.Error(args...)
}

func (l logger) Errorf(format string, args ...interface{}) {
	e := l.source()
	e.Errorln("[Stack]", string(debug.Stack()))
	e.Errorf(format, args...)
}

func (l logger) Fatal(args ...interface{}) {
	e := l.source()
	e.Errorln("[Stack]", string(debug.Stack()))
	e.Fatal(args...)
}

func (l logger) Fatalf(format string, args ...interface{}) {
	e := l.source()
	e.Errorln("[Stack]", string(debug.Stack()))
	e.Fatalf(format, args...)
}

func (l logger) With(key string, value interface{}) Logger {
	return logger{entry: l.entry.WithField(key, value)}
}

func (l logger) WithFields(fields Fields) Logger {
	return logger{entry: l.entry.WithFields(fields)}
}

func (l logger) WithBlock(height uint64, id string) Logger {
	return l.WithFields(Fields{"height": height, "block": id})
}

func (l logger) SetLevel(lvl Level) {
	l.entry.Logger.SetLevel(logrus.Level(lvl))
}

func (l logger) GetLevel() Level {
	return Level(l.entry.Logger.GetLevel())
}

func (l logger) IsLevelEnabled(lvl Level) bool {
	return l.entry.Logger.IsLevelEnabled(logrus.Level(lvl))
}

func (l logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l logger) SetJSONFormatter() {
	l.entry.Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: jsonTimestampFormat})
}

// source tags the entry with the file, line and function two frames up:
// the caller of the Logger method.
func (l logger) source() *logrus.Entry {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return l.entry
	}
	fields := Fields{
		"file": file[strings.LastIndex(file, "/")+1:],
		"line": line,
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		fields["function"] = fn.Name()
	}
	return l.entry.WithFields(fields)
}

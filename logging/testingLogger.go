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

package logging

import (
	"strings"
	"testing"
)

// testLoggerWriter forwards log lines to a testing.TB so output is attached to the test that produced it
type testLoggerWriter struct {
	t testing.TB
}

func (w testLoggerWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// TestingLog is a test-only helper that returns a debug-level Logger writing to t.
func TestingLog(t testing.TB) Logger {
	l := NewLogger()
	l.SetLevel(Debug)
	l.SetOutput(testLoggerWriter{t: t})
	return l
}

// TestingLogWithoutFatalExit is like TestingLog but Fatal runs the exit handlers
// without terminating the test binary.
func TestingLogWithoutFatalExit(t testing.TB) Logger {
	l := TestingLog(t).(logger)
	l.entry.Logger.ExitFunc = func(int) {}
	return l
}

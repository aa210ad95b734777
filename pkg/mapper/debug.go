/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mapper

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

type logger struct {
	name      string
	out       io.Writer
	callDepth int
}

var (
	internalLogger = newLogger("mapper", os.Stdout)
	level          atomic.Int32

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors    = []string{magenta, green, blue, yellow, red}
	levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}
)

func init() {
	level.Store(LevelWarn)
	if v := os.Getenv("MMAP_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= LevelTrace && n <= LevelNoPrint {
			level.Store(int32(n))
		}
	}
}

// SetLogLevel changes the manager logger's level. The default is LevelWarn;
// the MMAP_LOG_LEVEL environment variable sets it at startup.
func SetLogLevel(l int) {
	if l >= LevelTrace && l <= LevelNoPrint {
		level.Store(int32(l))
	}
}

// SetLogOutput redirects the manager logger. A nil writer restores stdout.
// It must not be called while a Manager is in use.
func SetLogOutput(out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	internalLogger = newLogger("mapper", out)
}

func newLogger(name string, out io.Writer) *logger {
	if out == nil {
		out = os.Stdout
	}
	return &logger{name: name, out: out, callDepth: 4}
}

func (l *logger) logf(lv int, format string, a ...interface{}) {
	if int(level.Load()) > lv {
		return
	}
	if _, err := fmt.Fprintf(l.out, l.prefix(lv)+format+reset+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "mapper logger failed: %v\n", err)
	}
}

func (l *logger) errorf(format string, a ...interface{}) { l.logf(LevelError, format, a...) }
func (l *logger) warnf(format string, a ...interface{})  { l.logf(LevelWarn, format, a...) }
func (l *logger) infof(format string, a ...interface{})  { l.logf(LevelInfo, format, a...) }
func (l *logger) debugf(format string, a ...interface{}) { l.logf(LevelDebug, format, a...) }
func (l *logger) tracef(format string, a ...interface{}) { l.logf(LevelTrace, format, a...) }

func (l *logger) prefix(lv int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	_, _ = buf.WriteString(colors[lv])
	_, _ = buf.WriteString(levelName[lv])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
	return buf.String()
}

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file = "???"
		line = 0
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

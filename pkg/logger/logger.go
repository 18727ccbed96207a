// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var _ Logger = (*ZLogger)(nil)

var (
	loggerMu sync.RWMutex
	logger   = Logger(defaultLogger)
)

const _component = "vectis"

var baseLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
	Timestamp().
	Logger()

var defaultLogger = &ZLogger{
	zl: baseLogger.With().Str("component", _component).Logger(),
}

// Logger is the facade every package in this module logs through: a
// handful of leveled *f methods plus a package-level
// SetLogger/GetLogger pair guarded by an RWMutex so a host process can
// swap in its own sink.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	Panicf(format string, args ...any)
}

func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func ResetDefaultLogger() {
	SetLogger(defaultLogger)
}

func GetLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// ZLogger backs the facade with zerolog, giving every component
// structured, leveled output with a fixed "component" tag.
type ZLogger struct {
	zl zerolog.Logger
}

// WithComponent returns a ZLogger tagging every line with component,
// used to give the scheduler, coordinator, and router each their own
// identifiable log stream.
func WithComponent(component string) *ZLogger {
	return &ZLogger{zl: baseLogger.With().Str("component", component).Logger()}
}

func (zl *ZLogger) Debugf(format string, args ...any) {
	zl.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (zl *ZLogger) Infof(format string, args ...any) {
	zl.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (zl *ZLogger) Warnf(format string, args ...any) {
	zl.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (zl *ZLogger) Errorf(format string, args ...any) {
	zl.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (zl *ZLogger) Fatalf(format string, args ...any) {
	zl.zl.Fatal().Msg(fmt.Sprintf(format, args...))
}

func (zl *ZLogger) Panicf(format string, args ...any) {
	zl.zl.Panic().Msg(fmt.Sprintf(format, args...))
}

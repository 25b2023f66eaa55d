// Copyright 2025 The go-animica Authors
// This file is part of the go-animica library.
//
// The go-animica library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-animica library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-animica library. If not, see <http://www.gnu.org/licenses/>.

// Package animicalog is the structured logger every component of the
// consensus core logs through, built over log/slog with an optional rotating
// file sink.
package animicalog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Root returns the process-wide logger. Components should prefer an injected
// *slog.Logger where practical; Root exists for package-level convenience calls.
func Root() *slog.Logger { return root }

// Config controls where root logging is sent and at what level.
type Config struct {
	Level     slog.Level
	FilePath  string // if set, logs are also written to a rotating file
	MaxSizeMB int    // lumberjack MaxSize, defaults to 100
	MaxBackups int
	MaxAgeDays int
}

// Init (re)configures the root logger. Called once at process start from
// cmd/animica-consensusd; safe to call again in tests that need quieter output.
func Init(cfg Config) {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, lj)
	}
	root = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level}))
}

// New returns a child logger tagged with its owning subsystem, so every log
// line carries the component it came from.
func New(component string) *slog.Logger {
	return root.With("component", component)
}

// Info, Warn, Error, Debug are package-level convenience wrappers over the
// root logger (log.Info(msg, "k", v, ...)).
func Info(msg string, args ...any)  { root.Info(msg, args...) }
func Warn(msg string, args ...any)  { root.Warn(msg, args...) }
func Error(msg string, args ...any) { root.Error(msg, args...) }
func Debug(msg string, args ...any) { root.Debug(msg, args...) }

// Crit logs at error level and marks the line as a fatal/invariant condition;
// callers decide whether to os.Exit — this package never exits the process.
func Crit(msg string, args ...any) {
	root.Error(msg, append([]any{"fatal", true}, args...)...)
}

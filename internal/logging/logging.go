/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging constructs the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels are the accepted log level names, from most to least verbose.
var Levels = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

const (
	maxFileSizeMB  = 10
	maxFileBackups = 3
)

// Options control the construction of a logger.
type Options struct {
	// Level is the minimum level that is logged; defaults to INFO.
	Level string
	// File is an optional path to a size rotated log file, written in addition to the console.
	File string
	// Out is the console destination; defaults to standard error.
	Out io.Writer
}

// ParseLevel returns the level for the (case-insensitive) level name.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO", "":
		return zapcore.InfoLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q, expected one of %s", name, strings.Join(Levels, ", "))
	}
}

// New returns a logger for the supplied options.
func New(opts Options) (logr.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.ConsoleSeparator = " - "
	consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleConfig.CallerKey = zapcore.OmitKey
	consoleConfig.StacktraceKey = zapcore.OmitKey

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(out), level),
	}

	if opts.File != "" {
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
		}), level))
	}

	return zapr.NewLogger(zap.New(zapcore.NewTee(cores...))), nil
}

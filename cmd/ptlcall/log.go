// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the CLI logger. With a file it rotates through
// lumberjack, otherwise it writes console lines to stderr.
func newLogger(file string, debug bool, stderr io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	var (
		encoder zapcore.Encoder
		sink    zapcore.WriteSyncer
	)
	if file != "" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		})
	} else {
		if stderr == nil {
			stderr = os.Stderr
		}
		encoder = zapcore.NewConsoleEncoder(encCfg)
		sink = zapcore.AddSync(stderr)
	}
	return zap.New(zapcore.NewCore(encoder, sink, level))
}

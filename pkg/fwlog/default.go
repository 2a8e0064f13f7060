// Copyright 2025 The fawa Authors
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

package fwlog

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger Logger = newZapLogger(os.Stdout)

// DefaultLogger returns the process wide logger.
func DefaultLogger() Logger {
	return logger
}

// SetLogger sets the default logger.
// Note that this method is not concurrent-safe and must not be called
// after the use of DefaultLogger and global functions in this package.
func SetLogger(v Logger) {
	logger = v
}

// SetOutput sets the output of default logger. By default, it is stdout.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel sets the level of logs below which logs will not be output.
func SetLevel(lv Level) {
	logger.SetLevel(lv)
}

// EnableFile additionally writes JSON logs to a size rotated file.
// It is a no-op when the default logger is not the zap backed one.
func EnableFile(path string) {
	zl, ok := logger.(*zapLogger)
	if !ok || path == "" {
		return
	}
	zl.setFile(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	})
}

func Fatal(v ...any) { logger.Fatal(v...) }
func Error(v ...any) { logger.Error(v...) }
func Warn(v ...any)  { logger.Warn(v...) }
func Info(v ...any)  { logger.Info(v...) }
func Debug(v ...any) { logger.Debug(v...) }

func Fatalf(format string, v ...any) { logger.Fatalf(format, v...) }
func Errorf(format string, v ...any) { logger.Errorf(format, v...) }
func Warnf(format string, v ...any)  { logger.Warnf(format, v...) }
func Infof(format string, v ...any)  { logger.Infof(format, v...) }
func Debugf(format string, v ...any) { logger.Debugf(format, v...) }

// zapLogger keeps a single atomic level so SetLevel never rebuilds the core.
type zapLogger struct {
	mu    sync.Mutex
	level zap.AtomicLevel
	out   zapcore.WriteSyncer
	file  zapcore.WriteSyncer
	sugar *zap.SugaredLogger
}

func newZapLogger(w io.Writer) *zapLogger {
	l := &zapLogger{
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
		out:   zapcore.AddSync(w),
	}
	l.rebuild()
	return l
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// rebuild must be called with mu held or before the logger is shared.
func (l *zapLogger) rebuild() {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), l.out, l.level)
	if l.file != nil {
		core = zapcore.NewTee(core, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), l.file, l.level))
	}
	l.sugar = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

func (l *zapLogger) get() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

func (l *zapLogger) setFile(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = zapcore.AddSync(w)
	l.rebuild()
}

func (l *zapLogger) SetLevel(lv Level) {
	l.level.SetLevel(lv.toZapLevel())
}

func (l *zapLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = zapcore.AddSync(w)
	l.rebuild()
}

func (l *zapLogger) Debugf(format string, v ...any) { l.get().Debugf(format, v...) }
func (l *zapLogger) Infof(format string, v ...any)  { l.get().Infof(format, v...) }
func (l *zapLogger) Warnf(format string, v ...any)  { l.get().Warnf(format, v...) }
func (l *zapLogger) Errorf(format string, v ...any) { l.get().Errorf(format, v...) }
func (l *zapLogger) Fatalf(format string, v ...any) { l.get().Fatalf(format, v...) }

func (l *zapLogger) Debug(v ...any) { l.get().Debug(v...) }
func (l *zapLogger) Info(v ...any)  { l.get().Info(v...) }
func (l *zapLogger) Warn(v ...any)  { l.get().Warn(v...) }
func (l *zapLogger) Error(v ...any) { l.get().Error(v...) }
func (l *zapLogger) Fatal(v ...any) { l.get().Fatal(v...) }

// Package logging builds the router's zap logger. A rotating file sink
// (via lumberjack) is always attached; a console sink is attached too,
// except that in stdio transport mode the console sink is pinned to
// stderr — stdout is reserved for the JSON-RPC wire and must never receive
// a stray log line.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Directory string // log file directory, e.g. "logs"
	Level     string // "DEBUG" | "INFO" | "WARN" | "ERROR"
	Stdio     bool   // true when running the stdio transport
}

// New builds a *zap.Logger per Options. The file sink rotates latest.txt to
// a timestamped file at startup so each run gets its own log file while
// "latest.txt" always points at the current one.
func New(opts Options) (*zap.Logger, error) {
	if opts.Directory != "" {
		if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
			return nil, err
		}
		if err := rotateLatest(opts.Directory); err != nil {
			return nil, err
		}
	}

	level := parseLevel(opts.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core

	if opts.Directory != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opts.Directory, "latest.txt"),
			MaxSize:    50, // MiB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		})
		fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, level))
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	consoleSink := zapcore.Lock(os.Stdout)
	if opts.Stdio {
		// stdout is the JSON-RPC wire in stdio mode: human logs must never
		// land there.
		consoleSink = zapcore.Lock(os.Stderr)
	}
	cores = append(cores, zapcore.NewCore(consoleEncoder, consoleSink, level))

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "DEBUG", "debug":
		return zapcore.DebugLevel
	case "WARN", "warn", "WARNING", "warning":
		return zapcore.WarnLevel
	case "ERROR", "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// rotateLatest renames an existing latest.txt to a timestamped name before
// a new run starts writing to it, so old runs' logs aren't silently
// truncated by lumberjack's own rotation policy on the next restart.
func rotateLatest(dir string) error {
	latest := filepath.Join(dir, "latest.txt")
	info, err := os.Stat(latest)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	base := info.ModTime().Format("06.01.02-15-04")
	archived := filepath.Join(dir, base+".txt")
	for n := 1; ; n++ {
		if _, err := os.Stat(archived); os.IsNotExist(err) {
			break
		}
		archived = filepath.Join(dir, fmt.Sprintf("%s-%d.txt", base, n))
	}
	return os.Rename(latest, archived)
}

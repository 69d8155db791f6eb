// Package logging builds the zap logger used by cmd/upstreamctl and, via
// upstream.SetLogger, by the upstream package itself.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger New builds.
type Options struct {
	// Debug enables debug-level output and a development-style console
	// encoder instead of the production JSON encoder.
	Debug bool
}

// New builds a *zap.Logger writing to stderr: a console encoder with
// colorized levels for human-facing CLI output in debug mode, and a JSON
// encoder over zap.NewProductionEncoderConfig otherwise.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Debug {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	return zap.New(core), nil
}

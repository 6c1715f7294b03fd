/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout is the default timeout used for one-shot commands.
const DefaultTimeout = 30 * time.Second

// ConfigFile is a flag for commands that use oracle configuration.
var ConfigFile = cli.StringFlag{
	Name:  "config-file, c",
	Usage: "path to the oracle configuration file",
	Value: config.DefaultConfigPath,
}

// Debug is a flag for commands that allow debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Timeout is a flag for one-shot commands.
var Timeout = cli.DurationFlag{
	Name:  "timeout, s",
	Value: DefaultTimeout,
	Usage: "Timeout for the operation",
}

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext loads the configuration file given in the context,
// the default path is used if none is specified.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	configFile := ctx.String("config-file")
	if configFile == "" {
		configFile = config.DefaultConfigPath
	}
	return config.LoadFile(configFile)
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}

package options

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"
)

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(DefaultTimeout)))
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Duration("timeout", time.Duration(20), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("sample", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-file", "../../config/oracle.yml", "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		cfg, err := GetConfigFromContext(ctx)
		require.NoError(t, err)
		require.True(t, cfg.ApplicationConfiguration.Oracle.Enabled)
	})

	t.Run("missing", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-file", filepath.Join(t.TempDir(), "nope.yml"), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		_, err := GetConfigFromContext(ctx)
		require.Error(t, err)
	})
}

func TestHandleLoggingParams(t *testing.T) {
	d := t.TempDir()

	t.Run("logdir is a file", func(t *testing.T) {
		logfile := filepath.Join(d, "logdir")
		require.NoError(t, os.WriteFile(logfile, []byte{1, 2, 3}, os.ModePerm))
		cfg := config.ApplicationConfiguration{
			LogPath: filepath.Join(logfile, "file.log"),
		}
		_, _, err := HandleLoggingParams(false, cfg)
		require.Error(t, err)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogLevel: "panicky"})
		require.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		logger, lvl, err := HandleLoggingParams(false, config.ApplicationConfiguration{})
		require.NoError(t, err)
		require.Equal(t, zapcore.InfoLevel, lvl.Level())
		require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("warn", func(t *testing.T) {
		logger, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogLevel: "warn"})
		require.NoError(t, err)
		require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("debug overrides", func(t *testing.T) {
		testLog := filepath.Join(d, "nested", "file.log")
		logger, lvl, err := HandleLoggingParams(true, config.ApplicationConfiguration{
			LogLevel: "warn",
			LogPath:  testLog,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Sync() })
		require.Equal(t, zapcore.DebugLevel, lvl.Level())

		logger.Debug("test message")
		require.NoError(t, logger.Sync())
		data, err := os.ReadFile(testLog)
		require.NoError(t, err)
		require.Contains(t, string(data), "DEBUG")
		require.Contains(t, string(data), "test message")
	})
}

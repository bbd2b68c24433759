package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/S0me0neR0man/quadstash/internal/storage"
)

// noEnvFile points the loader at a file that does not exist.
func noEnvFile(t *testing.T) {
	t.Setenv(envPrefix+"ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestNewConfig_Defaults(t *testing.T) {
	noEnvFile(t)

	conf, err := NewConfig("test", nil)
	require.NoError(t, err)
	require.Equal(t, "db/quadstash.snapshot", conf.StoreFile)
	require.True(t, conf.Restore)
	require.Equal(t, storage.CompressionLZ4, conf.Compression)
	require.Equal(t, 5*time.Second, conf.FlushInterval)
	require.Equal(t, ":3200", conf.Addr)
	require.Equal(t, zapcore.InfoLevel, conf.LogLevel)
	require.Equal(t, 4, conf.Workers)
	require.NotZero(t, conf.Seed)

	logger, err := conf.Logger()
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewConfig_Precedence(t *testing.T) {
	noEnvFile(t)
	t.Setenv(envPrefix+"STORE_FILE", "env.snapshot")
	t.Setenv(envPrefix+"COMPRESSION", "zstd")
	t.Setenv(envPrefix+"WORKERS", "8")

	conf, err := NewConfig("test", []string{"-store-file", "flag.snapshot", "-restore=false", "-seed", "42"})
	require.NoError(t, err)
	require.Equal(t, "flag.snapshot", conf.StoreFile)
	require.False(t, conf.Restore)
	require.Equal(t, storage.CompressionZSTD, conf.Compression)
	require.Equal(t, 8, conf.Workers)
	require.EqualValues(t, 42, conf.Seed)

	opts := conf.StoreOptions()
	require.Equal(t, storage.Options{Path: "flag.snapshot", Compression: storage.CompressionZSTD}, opts)
}

func TestNewConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("QUADSTASH_ADDR=:4000\nQUADSTASH_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv(envPrefix+"ENV_FILE", path)
	// godotenv does not override variables that are already set
	t.Setenv(envPrefix+"ADDR", "")
	t.Setenv(envPrefix+"LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv(envPrefix+"ADDR"))
	require.NoError(t, os.Unsetenv(envPrefix+"LOG_LEVEL"))

	conf, err := NewConfig("test", nil)
	require.NoError(t, err)
	require.Equal(t, ":4000", conf.Addr)
	require.Equal(t, zapcore.DebugLevel, conf.LogLevel)
}

func TestNewConfig_Errors(t *testing.T) {
	noEnvFile(t)

	_, err := NewConfig("test", []string{"-compression", "snappy"})
	require.ErrorIs(t, err, storage.ErrUnknownCompression)

	_, err = NewConfig("test", []string{"-flush-interval", "-1s"})
	require.Error(t, err)

	_, err = NewConfig("test", []string{"-log-level", "loud"})
	require.Error(t, err)

	t.Setenv(envPrefix+"WORKERS", "many")
	_, err = NewConfig("test", nil)
	require.ErrorContains(t, err, "QUADSTASH_WORKERS")
}

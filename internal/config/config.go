package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/S0me0neR0man/quadstash/internal/storage"
)

const envPrefix = "QUADSTASH_"

type Config struct {
	StoreFile     string // empty - keep the index in memory only
	Restore       bool
	Compression   storage.Compression
	FlushInterval time.Duration // 0 - disable periodic flush

	Addr        string
	MetricsAddr string // empty - no metrics endpoint
	AuthToken   string // empty - no auth

	LogLevel zapcore.Level

	// generator
	Entities      int
	MaxSizeMeters float64
	Workers       int
	Seed          int64
}

// NewConfig builds the config from args. Flag defaults come from QUADSTASH_* environment
// variables, which may be set in a .env file (QUADSTASH_ENV_FILE overrides the path).
func NewConfig(name string, args []string) (*Config, error) {
	envFile := os.Getenv(envPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	e := envReader{}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	f := flags.String("store-file", e.getString("STORE_FILE", "db/quadstash.snapshot"), "snapshot file, empty - memory only")
	r := flags.Bool("restore", e.getBool("RESTORE", true), "restore the index from disk on startup")
	c := flags.String("compression", e.getString("COMPRESSION", "lz4"), "snapshot compression: none, lz4, zstd")
	i := flags.Duration("flush-interval", e.getDuration("FLUSH_INTERVAL", 5*time.Second), "flush interval, 0 - disable")
	a := flags.String("addr", e.getString("ADDR", ":3200"), "gRPC listen address")
	m := flags.String("metrics-addr", e.getString("METRICS_ADDR", ":9090"), "prometheus listen address, empty - disable")
	t := flags.String("auth-token", e.getString("AUTH_TOKEN", ""), "bearer token required by the server")
	l := flags.String("log-level", e.getString("LOG_LEVEL", "info"), "log level")
	n := flags.Int("entities", e.getInt("ENTITIES", 100_000), "generator: number of boxes")
	s := flags.Float64("max-size-meters", e.getFloat("MAX_SIZE_METERS", 100), "generator: max box side in meters")
	w := flags.Int("workers", e.getInt("WORKERS", 4), "generator: concurrent inserters")
	seed := flags.Int64("seed", e.getInt64("SEED", 0), "generator: random seed, 0 - time based")

	if e.err != nil {
		return nil, e.err
	}
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	conf := &Config{
		StoreFile:     *f,
		Restore:       *r,
		FlushInterval: *i,
		Addr:          *a,
		MetricsAddr:   *m,
		AuthToken:     *t,
		Entities:      *n,
		MaxSizeMeters: *s,
		Workers:       *w,
		Seed:          *seed,
	}

	var err error
	if conf.Compression, err = storage.ParseCompression(*c); err != nil {
		return nil, err
	}
	if conf.LogLevel, err = zapcore.ParseLevel(*l); err != nil {
		return nil, err
	}
	if conf.FlushInterval < 0 {
		return nil, fmt.Errorf("flush-interval %v is negative", conf.FlushInterval)
	}
	if conf.Workers < 1 {
		conf.Workers = 1
	}
	if conf.Seed == 0 {
		conf.Seed = time.Now().UnixNano()
	}
	return conf, nil
}

// StoreOptions for storage.Open
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Path:        c.StoreFile,
		Restore:     c.Restore,
		Compression: c.Compression,
	}
}

// Logger development logger for debug level, production otherwise.
func (c *Config) Logger() (*zap.Logger, error) {
	var zc zap.Config
	if c.LogLevel <= zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	return zc.Build()
}

// envReader reads typed QUADSTASH_* variables and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	return v, ok && v != ""
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s=%q: %w", envPrefix, key, v, err)
	}
}

func (e *envReader) getString(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) getBool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) getInt(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) getInt64(key string, def int64) int64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) getFloat(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

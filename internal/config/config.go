// Package config resolves runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/roach88/nodegraph/internal/compiler"
)

// Environment variables read by Load.
const (
	EnvDB        = "NODEGRAPH_DB"
	EnvCacheSize = "NODEGRAPH_CACHE_SIZE"
	EnvWorkers   = "NODEGRAPH_WORKERS"
	EnvLogLevel  = "NODEGRAPH_LOG_LEVEL"
)

// Config holds runtime settings. Command-line flags override it.
type Config struct {
	// DBPath is the SQLite store for manifests and run history. Empty means
	// no store.
	DBPath string

	// CacheSize bounds the in-memory compiled subgraph cache.
	CacheSize int

	// Workers bounds per-layer concurrency in parallel runs. Zero means no
	// bound.
	Workers int

	LogLevel slog.Level
}

// Load reads settings. Variables already in the environment win over the
// files; earlier files win over later ones. Missing files are skipped, and
// with no files given Load tries ".env".
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fromFiles := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, seen := fromFiles[k]; !seen {
				fromFiles[k] = v
			}
		}
	}

	return resolve(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fromFiles[key])
	})
}

func resolve(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBPath:    getenv(EnvDB),
		CacheSize: compiler.DefaultCacheSize,
		LogLevel:  slog.LevelInfo,
	}

	var err error
	if cfg.CacheSize, err = intSetting(getenv, EnvCacheSize, compiler.DefaultCacheSize, 1); err != nil {
		return nil, err
	}
	if cfg.Workers, err = intSetting(getenv, EnvWorkers, 0, 0); err != nil {
		return nil, err
	}
	if raw := getenv(EnvLogLevel); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}
	return cfg, nil
}

func intSetting(getenv func(string) string, key string, def, minimum int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	if n < minimum {
		return 0, fmt.Errorf("%s: must be at least %d, got %d", key, minimum, n)
	}
	return n, nil
}

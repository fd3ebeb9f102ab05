// Package config reads settings from the environment. Commands use these
// helpers as flag defaults, so flags override the environment which
// overrides the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name looked up by this package.
const Prefix = "TWINSNAKE_"

// LoadDotEnv loads variables from the given files (".env" if none) without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(Prefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func EnvOr(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

// EnvInt returns the integer in Prefix+key, or def if it is unset or does not
// parse. Bad values are logged.
func EnvInt(key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring bad integer in environment", "var", Prefix+key, "value", v)
		return def
	}
	return n
}

func EnvInt64(key string, def int64) int64 {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("ignoring bad integer in environment", "var", Prefix+key, "value", v)
		return def
	}
	return n
}

func EnvDuration(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring bad duration in environment", "var", Prefix+key, "value", v)
		return def
	}
	return d
}

func EnvBool(key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring bad boolean in environment", "var", Prefix+key, "value", v)
		return def
	}
	return b
}

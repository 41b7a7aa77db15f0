// Package where implements a cross-platform resolver for application-specific filesystem paths.
package where

import (
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/filesystem"
)

// EnvConfigPath is the environment variable used to override the default configuration directory.
const EnvConfigPath = "STREAMCTL_CONFIG_PATH"

func ensureDir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config resolves the primary configuration directory.
// STREAMCTL_CONFIG_PATH takes precedence over the platform default.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Streamctl))
}

// Cache resolves the persistent cache directory.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(".", "cache")
	}
	return ensureDir(filepath.Join(base, constant.Streamctl))
}

// Logs resolves the directory used for diagnostic logs.
func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"))
}

// History resolves the recently played sources file.
func History() string {
	return filepath.Join(Config(), "history.json")
}

// Queries resolves the ranked address suggestions file.
func Queries() string {
	return filepath.Join(Cache(), "queries.json")
}

// Temp resolves the directory for transient artifacts such as mpv sockets and embed pages.
func Temp() string {
	return ensureDir(filepath.Join(os.TempDir(), constant.Streamctl))
}

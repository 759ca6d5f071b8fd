// Package config reads megafetch settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Witriol/megafetch/internal/megaapi"
)

type Config struct {
	APIURL   string
	Timeout  time.Duration
	StateDir string
	// DBPath is empty when history is disabled.
	DBPath         string
	OutDir         string
	GCSBucket      string
	GCSPrefix      string
	GCSCredentials string
	LogLevel       string
}

// Load reads MEGAFETCH_* variables, falling back to defaults.
func Load() Config {
	stateDir := getenv("MEGAFETCH_STATE_DIR", defaultStateDir())
	dbPath := getenv("MEGAFETCH_DB", filepath.Join(stateDir, "megafetch.db"))
	if strings.EqualFold(dbPath, "off") {
		dbPath = ""
	}
	return Config{
		APIURL:         getenv("MEGAFETCH_API", megaapi.DefaultAPIURL),
		Timeout:        time.Duration(getenvInt("MEGAFETCH_TIMEOUT", 120)) * time.Second,
		StateDir:       stateDir,
		DBPath:         dbPath,
		OutDir:         getenv("MEGAFETCH_OUT_DIR", "."),
		GCSBucket:      getenv("MEGAFETCH_GCS_BUCKET", ""),
		GCSPrefix:      getenv("MEGAFETCH_GCS_PREFIX", ""),
		GCSCredentials: getenv("MEGAFETCH_GCS_CREDENTIALS", ""),
		LogLevel:       getenv("MEGAFETCH_LOG_LEVEL", "info"),
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "megafetch")
	}
	return ".megafetch"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

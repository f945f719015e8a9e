package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// the FOLIO_DATA_DIR env var, the config file, or ~/.folio as fallback.
func resolveDataDir(cfg config.StorageConfig) string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("FOLIO_DATA_DIR"); envDir != "" {
		return envDir
	}
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.folio"
}

// openStore opens the persistence backend selected by the storage config.
func openStore(cfg config.StorageConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return store.OpenSQLite(resolveDataDir(cfg))
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
		}
		return store.OpenPostgres(cfg.DSN)
	case "file":
		return store.OpenFile(resolveDataDir(cfg), logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected sqlite, postgres, or file)", cfg.Driver)
	}
}

// loadConfig loads the explicitly chosen config file, or discovers one in
// the working directory and then ~/.folio. A missing file yields defaults.
func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	if _, err := os.Stat("folio.yaml"); err == nil {
		return config.Load("folio.yaml")
	}
	home, _ := os.UserHomeDir()
	return config.Load(filepath.Join(home, ".folio", "folio.yaml"))
}

// newLogger builds the process logger at the configured level.
func newLogger(level string, dev bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if dev {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}

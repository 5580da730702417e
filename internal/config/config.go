// Package config loads application configuration from environment variables
// and an optional TOML file.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr    string
	DBPath        string
	SecretKey     []byte // 32 bytes, or nil when credential sealing is disabled.
	Watch         bool
	WatchDebounce time.Duration
	SyncInterval  time.Duration // 0 disables periodic sync.
}

// fileConfig mirrors the keys accepted in the TOML file.
type fileConfig struct {
	ListenAddr    string `toml:"listen_addr"`
	DBPath        string `toml:"db_path"`
	SecretKey     string `toml:"secret_key"`
	Watch         *bool  `toml:"watch"`
	WatchDebounce string `toml:"watch_debounce"`
	SyncInterval  string `toml:"sync_interval"`
}

// HasSecretKey returns true when a credential sealing key is configured.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) > 0
}

// Load reads configuration and returns a validated Config.
//
// If COOKIESYNC_CONFIG names a TOML file, its values replace the defaults;
// environment variables then override both. Recognised variables:
// COOKIESYNC_LISTEN_ADDR (127.0.0.1:8080), COOKIESYNC_DB_PATH (cookiesync.db),
// COOKIESYNC_SECRET_KEY (64 hex characters, optional), COOKIESYNC_WATCH (true),
// COOKIESYNC_WATCH_DEBOUNCE (250ms), COOKIESYNC_SYNC_INTERVAL (30s, 0 disables).
func Load() (*Config, error) {
	var file fileConfig
	if path, ok := os.LookupEnv("COOKIESYNC_CONFIG"); ok && path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("COOKIESYNC_CONFIG %q: %w", path, err)
		}
	}

	listenAddr := "127.0.0.1:8080"
	if file.ListenAddr != "" {
		listenAddr = file.ListenAddr
	}
	if v, ok := os.LookupEnv("COOKIESYNC_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "cookiesync.db"
	if file.DBPath != "" {
		dbPath = file.DBPath
	}
	if v, ok := os.LookupEnv("COOKIESYNC_DB_PATH"); ok {
		dbPath = v
	}

	rawKey := file.SecretKey
	if v, ok := os.LookupEnv("COOKIESYNC_SECRET_KEY"); ok {
		rawKey = v
	}
	var secretKey []byte
	if rawKey != "" {
		decoded, err := hex.DecodeString(rawKey)
		if err != nil {
			return nil, fmt.Errorf("COOKIESYNC_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("COOKIESYNC_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	watch := true
	if file.Watch != nil {
		watch = *file.Watch
	}
	if v, ok := os.LookupEnv("COOKIESYNC_WATCH"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("COOKIESYNC_WATCH has invalid boolean %q: %w", v, err)
		}
		watch = parsed
	}

	watchDebounce := 250 * time.Millisecond
	rawDebounce := file.WatchDebounce
	if v, ok := os.LookupEnv("COOKIESYNC_WATCH_DEBOUNCE"); ok {
		rawDebounce = v
	}
	if rawDebounce != "" {
		parsed, err := time.ParseDuration(rawDebounce)
		if err != nil {
			return nil, fmt.Errorf("COOKIESYNC_WATCH_DEBOUNCE has invalid duration %q: %w", rawDebounce, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("COOKIESYNC_WATCH_DEBOUNCE must be positive, got %s", parsed)
		}
		watchDebounce = parsed
	}

	syncInterval := 30 * time.Second
	rawInterval := file.SyncInterval
	if v, ok := os.LookupEnv("COOKIESYNC_SYNC_INTERVAL"); ok {
		rawInterval = v
	}
	if rawInterval != "" {
		parsed, err := time.ParseDuration(rawInterval)
		if err != nil {
			return nil, fmt.Errorf("COOKIESYNC_SYNC_INTERVAL has invalid duration %q: %w", rawInterval, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("COOKIESYNC_SYNC_INTERVAL must not be negative, got %s", parsed)
		}
		syncInterval = parsed
	}

	return &Config{
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		SecretKey:     secretKey,
		Watch:         watch,
		WatchDebounce: watchDebounce,
		SyncInterval:  syncInterval,
	}, nil
}

// Package config loads click-gait settings from ~/.click-gait/settings.json
// and GAIT_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
)

const (
	// DefaultHTTPAddr is the listen address for HTTP and gRPC.
	DefaultHTTPAddr = ":10000"
	// DefaultStore is the session store backend.
	DefaultStore = StoreMemory
	// DefaultSessionTTLMinutes is how long an idle session survives.
	DefaultSessionTTLMinutes = 30
	// DefaultHistorySize is the prediction log capacity.
	DefaultHistorySize = 1000
	// DefaultMaxConns bounds database connection pools.
	DefaultMaxConns = 4

	dataDirName  = ".click-gait"
	settingsFile = "settings.json"
	dbFile       = "sessions.db"
	modelFile    = "model.yaml"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreCookie   = "cookie"
)

// DefaultCORSOrigins allows the dashboard dev server.
var DefaultCORSOrigins = []string{"http://localhost:3000"}

// Config holds all settings.
type Config struct {
	HTTPAddr          string   `json:"GAIT_HTTP_ADDR"`
	Store             string   `json:"GAIT_STORE"`
	DBPath            string   `json:"GAIT_DB_PATH"`
	PostgresDSN       string   `json:"GAIT_POSTGRES_DSN"`
	RedisAddr         string   `json:"GAIT_REDIS_ADDR"`
	SessionTTLMinutes int      `json:"GAIT_SESSION_TTL_MINUTES"`
	SessionSecret     string   `json:"GAIT_SESSION_SECRET"`
	ModelPath         string   `json:"GAIT_MODEL_PATH"`
	ClassifierAddr    string   `json:"GAIT_CLASSIFIER_ADDR"`
	HistorySize       int      `json:"GAIT_HISTORY_SIZE"`
	MaxConns          int      `json:"GAIT_MAX_CONNS"`
	CORSOrigins       []string `json:"GAIT_CORS_ORIGINS"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// DataDir returns ~/.click-gait.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFile)
}

// ModelPath returns the default classifier model path.
func ModelPath() string {
	return filepath.Join(DataDir(), modelFile)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFile)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:          DefaultHTTPAddr,
		Store:             DefaultStore,
		DBPath:            DBPath(),
		SessionTTLMinutes: DefaultSessionTTLMinutes,
		ModelPath:         ModelPath(),
		HistorySize:       DefaultHistorySize,
		MaxConns:          DefaultMaxConns,
		CORSOrigins:       append([]string(nil), DefaultCORSOrigins...),
	}
}

// Load reads the settings file and applies environment overrides. A missing
// or unparsable settings file leaves the defaults in place.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		var settings map[string]any
		if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
			log.Warn().Err(err).Str("path", SettingsPath()).Msg("Ignoring unparsable settings file")
		} else {
			cfg.apply(func(key string) (string, bool) { return settingString(settings, key) })
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg.apply(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
// Load errors fall back to defaults.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Falling back to default configuration")
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("GAIT_STORE=postgres requires GAIT_POSTGRES_DSN")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("GAIT_STORE=redis requires GAIT_REDIS_ADDR")
		}
	case StoreCookie:
		if c.SessionSecret == "" {
			return fmt.Errorf("GAIT_STORE=cookie requires GAIT_SESSION_SECRET")
		}
	default:
		return fmt.Errorf("unknown GAIT_STORE %q", c.Store)
	}
	if c.SessionTTLMinutes < 0 {
		return fmt.Errorf("GAIT_SESSION_TTL_MINUTES must not be negative")
	}
	return nil
}

// SessionTTL returns the session expiry as a duration. Zero disables expiry.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// apply overrides fields for every key lookup reports as set.
func (c *Config) apply(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-integer setting")
			return
		}
		*dst = n
	}

	str("GAIT_HTTP_ADDR", &c.HTTPAddr)
	str("GAIT_STORE", &c.Store)
	str("GAIT_DB_PATH", &c.DBPath)
	str("GAIT_POSTGRES_DSN", &c.PostgresDSN)
	str("GAIT_REDIS_ADDR", &c.RedisAddr)
	num("GAIT_SESSION_TTL_MINUTES", &c.SessionTTLMinutes)
	str("GAIT_SESSION_SECRET", &c.SessionSecret)
	str("GAIT_MODEL_PATH", &c.ModelPath)
	str("GAIT_CLASSIFIER_ADDR", &c.ClassifierAddr)
	num("GAIT_HISTORY_SIZE", &c.HistorySize)
	num("GAIT_MAX_CONNS", &c.MaxConns)
	if v, ok := lookup("GAIT_CORS_ORIGINS"); ok {
		c.CORSOrigins = splitTrim(v)
	}
}

// settingString renders a decoded settings value the way it would appear in
// an environment variable. Arrays become comma separated lists.
func settingString(settings map[string]any, key string) (string, bool) {
	raw, ok := settings[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(v), true
	}
}

func splitTrim(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// EnsureDataDir creates the data directory.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file with a fresh session secret
// if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generate session secret: %w", err)
	}
	cfg := Default()
	cfg.SessionSecret = hex.EncodeToString(secret)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

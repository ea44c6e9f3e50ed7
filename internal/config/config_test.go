package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var envKeys = []string{
	"GAIT_HTTP_ADDR", "GAIT_STORE", "GAIT_DB_PATH", "GAIT_POSTGRES_DSN",
	"GAIT_REDIS_ADDR", "GAIT_SESSION_TTL_MINUTES", "GAIT_SESSION_SECRET",
	"GAIT_MODEL_PATH", "GAIT_CLASSIFIER_ADDR", "GAIT_HISTORY_SIZE",
	"GAIT_MAX_CONNS", "GAIT_CORS_ORIGINS",
}

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, k := range envKeys {
		s.T().Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(body string) {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, ".click-gait"), 0750))
	s.Require().NoError(os.WriteFile(filepath.Join(s.tempDir, ".click-gait", "settings.json"), []byte(body), 0600))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultHTTPAddr, cfg.HTTPAddr)
	s.Equal(StoreMemory, cfg.Store)
	s.Equal(30*time.Minute, cfg.SessionTTL())
	s.Equal(DefaultHistorySize, cfg.HistorySize)
	s.Equal(DefaultMaxConns, cfg.MaxConns)
	s.Equal(DefaultCORSOrigins, cfg.CORSOrigins)
	s.Contains(cfg.DBPath, "sessions.db")
	s.Contains(cfg.ModelPath, "model.yaml")
	s.NoError(cfg.Validate())
}

// TestPaths tests data directory derived paths.
func (s *ConfigSuite) TestPaths() {
	s.Equal(filepath.Join(s.tempDir, ".click-gait"), DataDir())
	s.Equal(filepath.Join(DataDir(), "settings.json"), SettingsPath())
	s.Equal(filepath.Join(DataDir(), "sessions.db"), DBPath())
}

// TestEnsureAll tests data directory and settings creation.
func (s *ConfigSuite) TestEnsureAll() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())

	data, err := os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	var written Config
	s.Require().NoError(json.Unmarshal(data, &written))
	s.Len(written.SessionSecret, 64)

	// Second call keeps the existing file and secret.
	s.Require().NoError(EnsureSettings())
	again, err := os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	s.Equal(data, again)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name        string
		settings    string
		env         map[string]string
		wantAddr    string
		wantHistory int
		wantOrigins []string
	}{
		{
			name:        "no settings file",
			wantAddr:    DefaultHTTPAddr,
			wantHistory: DefaultHistorySize,
			wantOrigins: DefaultCORSOrigins,
		},
		{
			name:        "settings values",
			settings:    `{"GAIT_HTTP_ADDR": ":8080", "GAIT_HISTORY_SIZE": 50}`,
			wantAddr:    ":8080",
			wantHistory: 50,
			wantOrigins: DefaultCORSOrigins,
		},
		{
			name: "jsonc comments and trailing commas",
			settings: `{
				// dashboard origins
				"GAIT_CORS_ORIGINS": ["http://a.test", "http://b.test"],
				"GAIT_HISTORY_SIZE": 10,
			}`,
			wantAddr:    DefaultHTTPAddr,
			wantHistory: 10,
			wantOrigins: []string{"http://a.test", "http://b.test"},
		},
		{
			name:        "env overrides settings",
			settings:    `{"GAIT_HTTP_ADDR": ":8080"}`,
			env:         map[string]string{"GAIT_HTTP_ADDR": ":9090", "GAIT_CORS_ORIGINS": " http://x.test , "},
			wantAddr:    ":9090",
			wantHistory: DefaultHistorySize,
			wantOrigins: []string{"http://x.test"},
		},
		{
			name:        "invalid integer keeps default",
			env:         map[string]string{"GAIT_HISTORY_SIZE": "lots"},
			wantAddr:    DefaultHTTPAddr,
			wantHistory: DefaultHistorySize,
			wantOrigins: DefaultCORSOrigins,
		},
		{
			name:        "invalid JSON returns defaults",
			settings:    `{invalid}`,
			wantAddr:    DefaultHTTPAddr,
			wantHistory: DefaultHistorySize,
			wantOrigins: DefaultCORSOrigins,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			os.Remove(SettingsPath())
			if tt.settings != "" {
				s.writeSettings(tt.settings)
			}
			for k, v := range tt.env {
				s.T().Setenv(k, v)
			}

			cfg, err := Load()
			s.Require().NoError(err)
			s.Equal(tt.wantAddr, cfg.HTTPAddr)
			s.Equal(tt.wantHistory, cfg.HistorySize)
			s.Equal(tt.wantOrigins, cfg.CORSOrigins)

			for k := range tt.env {
				os.Unsetenv(k)
			}
		})
	}
}

// TestLoad_StoreValidation tests backend requirements.
func (s *ConfigSuite) TestLoad_StoreValidation() {
	tests := []struct {
		name     string
		settings string
		wantErr  string
	}{
		{name: "postgres without dsn", settings: `{"GAIT_STORE": "postgres"}`, wantErr: "GAIT_POSTGRES_DSN"},
		{name: "redis without addr", settings: `{"GAIT_STORE": "redis"}`, wantErr: "GAIT_REDIS_ADDR"},
		{name: "cookie without secret", settings: `{"GAIT_STORE": "cookie"}`, wantErr: "GAIT_SESSION_SECRET"},
		{name: "unknown backend", settings: `{"GAIT_STORE": "etcd"}`, wantErr: "unknown GAIT_STORE"},
		{name: "negative ttl", settings: `{"GAIT_SESSION_TTL_MINUTES": -1}`, wantErr: "must not be negative"},
		{name: "redis with addr", settings: `{"GAIT_STORE": "redis", "GAIT_REDIS_ADDR": "localhost:6379"}`},
		{name: "cookie with secret", settings: `{"GAIT_STORE": "cookie", "GAIT_SESSION_SECRET": "s3cret"}`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.writeSettings(tt.settings)
			cfg, err := Load()
			if tt.wantErr != "" {
				s.Require().Error(err)
				s.Contains(err.Error(), tt.wantErr)
				return
			}
			s.Require().NoError(err)
			s.NotNil(cfg)
		})
	}
}

// TestSplitTrim tests the splitTrim helper function.
func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value", input: "http://a", expected: []string{"http://a"}},
		{name: "values with spaces", input: " a , b , c ", expected: []string{"a", "b", "c"}},
		{name: "empty values filtered", input: "a,,b,,", expected: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}

func TestSettingString(t *testing.T) {
	settings := map[string]any{
		"num":  float64(1000000),
		"str":  "x",
		"bool": true,
		"list": []any{"a", "b"},
		"null": nil,
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"num", "1000000", true},
		{"str", "x", true},
		{"bool", "true", true},
		{"list", "a,b", true},
		{"null", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := settingString(settings, tt.key)
		assert.Equal(t, tt.wantOK, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}

func TestGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := Get()
	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.HTTPAddr)
	assert.Same(t, cfg, Get())
}

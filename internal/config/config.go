package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// TokenEnvVar overrides api.token when set.
const TokenEnvVar = "HERDTOP_TOKEN"

type Config struct {
	API      APIConfig
	Farm     FarmConfig
	Alerts   AlertsConfig
	Display  DisplayConfig
	Storage  StorageConfig
	Log      LogConfig
	Exporter ExporterConfig
}

type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	WebBaseURL        string  `toml:"web_base_url"`
	Token             string  `toml:"token"`
	TokenFile         string  `toml:"token_file"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type FarmConfig struct {
	DefaultID string   `toml:"default_id"`
	IDs       []string `toml:"ids"`
}

type AlertsConfig struct {
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
	HeaderCacheTTLSeconds  int `toml:"header_cache_ttl_seconds"`
	MaxParallel            int `toml:"max_parallel"`
	PreviewItems           int `toml:"preview_items"`
	ListPageSize           int `toml:"list_page_size"`
	HealthWindowDays       int `toml:"health_window_days"`
	// SystemNotify sends a desktop notification when a farm's total rises.
	SystemNotify bool `toml:"system_notify"`
}

type DisplayConfig struct {
	RefreshRateMS      int `toml:"refresh_rate_ms"`
	ActivityBufferSize int `toml:"activity_buffer_size"`
}

type StorageConfig struct {
	DBPath        string `toml:"db_path"`
	Scope         string `toml:"scope"`
	RetentionDays int    `toml:"retention_days"`
}

type LogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

type ExporterConfig struct {
	Listen string   `toml:"listen"`
	Farms  []string `toml:"farms"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8080",
			TimeoutSeconds:    15,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Alerts: AlertsConfig{
			RefreshIntervalSeconds: 60,
			HeaderCacheTTLSeconds:  60,
			MaxParallel:            4,
			PreviewItems:           3,
			ListPageSize:           20,
			HealthWindowDays:       7,
			SystemNotify:           true,
		},
		Display: DisplayConfig{
			RefreshRateMS:      500,
			ActivityBufferSize: 200,
		},
		Storage: StorageConfig{
			DBPath:        "~/.local/state/herd-top/herd-top.db",
			Scope:         "default",
			RetentionDays: 7,
		},
		Log: LogConfig{
			Level: "info",
		},
		Exporter: ExporterConfig{
			Listen: ":9464",
		},
	}
}

// DefaultPath is ~/.config/herd-top/config.toml, or "" when the home
// directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "herd-top", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			applyEnv(&result.Config)
			return result, validate(&result.Config)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := parseInto(result, string(data)); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnv(&result.Config)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadFromString parses TOML without consulting the environment.
func LoadFromString(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	if data == "" {
		return result, nil
	}

	if err := parseInto(result, data); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

var knownTopLevel = map[string]bool{
	"api":      true,
	"farm":     true,
	"alerts":   true,
	"display":  true,
	"storage":  true,
	"log":      true,
	"exporter": true,
}

type tomlFile struct {
	API      *APIConfig      `toml:"api"`
	Farm     *FarmConfig     `toml:"farm"`
	Alerts   *AlertsConfig   `toml:"alerts"`
	Display  *DisplayConfig  `toml:"display"`
	Storage  *StorageConfig  `toml:"storage"`
	Log      *LogConfig      `toml:"log"`
	Exporter *ExporterConfig `toml:"exporter"`
}

func parseInto(result *LoadResult, data string) error {
	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return err
	}

	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return err
	}

	mergeFromRaw(&result.Config, &tf, raw)
	return nil
}

// mergeFromRaw copies only the keys actually present in the file so that
// an explicit zero value is distinguishable from an omitted key.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.API != nil {
		if section, ok := rawSection(raw, "api"); ok {
			if _, exists := section["base_url"]; exists {
				cfg.API.BaseURL = tf.API.BaseURL
			}
			if _, exists := section["web_base_url"]; exists {
				cfg.API.WebBaseURL = tf.API.WebBaseURL
			}
			if _, exists := section["token"]; exists {
				cfg.API.Token = tf.API.Token
			}
			if _, exists := section["token_file"]; exists {
				cfg.API.TokenFile = tf.API.TokenFile
			}
			if _, exists := section["timeout_seconds"]; exists {
				cfg.API.TimeoutSeconds = tf.API.TimeoutSeconds
			}
			if _, exists := section["requests_per_second"]; exists {
				cfg.API.RequestsPerSecond = tf.API.RequestsPerSecond
			}
			if _, exists := section["burst"]; exists {
				cfg.API.Burst = tf.API.Burst
			}
		}
	}
	if tf.Farm != nil {
		if section, ok := rawSection(raw, "farm"); ok {
			if _, exists := section["default_id"]; exists {
				cfg.Farm.DefaultID = tf.Farm.DefaultID
			}
			if _, exists := section["ids"]; exists {
				cfg.Farm.IDs = tf.Farm.IDs
			}
		}
	}
	if tf.Alerts != nil {
		if section, ok := rawSection(raw, "alerts"); ok {
			if _, exists := section["refresh_interval_seconds"]; exists {
				cfg.Alerts.RefreshIntervalSeconds = tf.Alerts.RefreshIntervalSeconds
			}
			if _, exists := section["header_cache_ttl_seconds"]; exists {
				cfg.Alerts.HeaderCacheTTLSeconds = tf.Alerts.HeaderCacheTTLSeconds
			}
			if _, exists := section["max_parallel"]; exists {
				cfg.Alerts.MaxParallel = tf.Alerts.MaxParallel
			}
			if _, exists := section["preview_items"]; exists {
				cfg.Alerts.PreviewItems = tf.Alerts.PreviewItems
			}
			if _, exists := section["list_page_size"]; exists {
				cfg.Alerts.ListPageSize = tf.Alerts.ListPageSize
			}
			if _, exists := section["health_window_days"]; exists {
				cfg.Alerts.HealthWindowDays = tf.Alerts.HealthWindowDays
			}
			if _, exists := section["system_notify"]; exists {
				cfg.Alerts.SystemNotify = tf.Alerts.SystemNotify
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["activity_buffer_size"]; exists {
				cfg.Display.ActivityBufferSize = tf.Display.ActivityBufferSize
			}
		}
	}
	if tf.Storage != nil {
		if section, ok := rawSection(raw, "storage"); ok {
			if _, exists := section["db_path"]; exists {
				cfg.Storage.DBPath = tf.Storage.DBPath
			}
			if _, exists := section["scope"]; exists {
				cfg.Storage.Scope = tf.Storage.Scope
			}
			if _, exists := section["retention_days"]; exists {
				cfg.Storage.RetentionDays = tf.Storage.RetentionDays
			}
		}
	}
	if tf.Log != nil {
		if section, ok := rawSection(raw, "log"); ok {
			if _, exists := section["path"]; exists {
				cfg.Log.Path = tf.Log.Path
			}
			if _, exists := section["level"]; exists {
				cfg.Log.Level = tf.Log.Level
			}
			if _, exists := section["json"]; exists {
				cfg.Log.JSON = tf.Log.JSON
			}
		}
	}
	if tf.Exporter != nil {
		if section, ok := rawSection(raw, "exporter"); ok {
			if _, exists := section["listen"]; exists {
				cfg.Exporter.Listen = tf.Exporter.Listen
			}
			if _, exists := section["farms"]; exists {
				cfg.Exporter.Farms = tf.Exporter.Farms
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func applyEnv(cfg *Config) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		cfg.API.Token = token
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg *Config) error {
	var errs []string

	if u, err := url.Parse(cfg.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api base_url must be an http(s) URL, got %q", cfg.API.BaseURL))
	}
	if cfg.API.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("api timeout_seconds must be positive, got %d", cfg.API.TimeoutSeconds))
	}
	if cfg.API.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Sprintf("api requests_per_second must be positive, got %f", cfg.API.RequestsPerSecond))
	}
	if cfg.API.Burst < 1 {
		errs = append(errs, fmt.Sprintf("api burst must be positive, got %d", cfg.API.Burst))
	}

	for _, id := range cfg.Farm.IDs {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, "farm ids must not contain empty entries")
			break
		}
	}

	if cfg.Alerts.RefreshIntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("alerts refresh_interval_seconds must be positive, got %d", cfg.Alerts.RefreshIntervalSeconds))
	}
	if cfg.Alerts.HeaderCacheTTLSeconds < 1 {
		errs = append(errs, fmt.Sprintf("alerts header_cache_ttl_seconds must be positive, got %d", cfg.Alerts.HeaderCacheTTLSeconds))
	}
	if cfg.Alerts.MaxParallel < 1 {
		errs = append(errs, fmt.Sprintf("alerts max_parallel must be positive, got %d", cfg.Alerts.MaxParallel))
	}
	if cfg.Alerts.PreviewItems < 0 {
		errs = append(errs, fmt.Sprintf("alerts preview_items must not be negative, got %d", cfg.Alerts.PreviewItems))
	}
	if cfg.Alerts.ListPageSize < 1 || cfg.Alerts.ListPageSize > 200 {
		errs = append(errs, fmt.Sprintf("alerts list_page_size must be 1-200, got %d", cfg.Alerts.ListPageSize))
	}
	if cfg.Alerts.HealthWindowDays < 1 {
		errs = append(errs, fmt.Sprintf("alerts health_window_days must be positive, got %d", cfg.Alerts.HealthWindowDays))
	}

	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.ActivityBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("activity_buffer_size must be positive, got %d", cfg.Display.ActivityBufferSize))
	}

	if strings.TrimSpace(cfg.Storage.Scope) == "" {
		errs = append(errs, "storage scope must not be empty")
	}
	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log level must be one of debug, info, warn, error; got %q", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ExpandTilde resolves a leading "~/" against the user's home directory.
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

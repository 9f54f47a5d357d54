package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// XrayStorageDir is the root directory where assigned image files are
	// persisted by the disk file store.
	XrayStorageDir string `mapstructure:"XRAY_STORAGE_DIR"`

	// XrayWatchDirs configures directory-watcher study sources as a comma
	// separated list of vendor:path pairs, e.g.
	// "triana:/mnt/triana/out,carestream:/mnt/cs/export".
	XrayWatchDirs    []string      `mapstructure:"XRAY_WATCH_DIRS"`
	XrayScanInterval time.Duration `mapstructure:"XRAY_SCAN_INTERVAL"`

	// DeviceAPIKeys authorizes unattended device push integrations.
	DeviceAPIKeys []string `mapstructure:"DEVICE_API_KEYS"`

	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("XRAY_STORAGE_DIR", "./data/xray")
	v.SetDefault("XRAY_SCAN_INTERVAL", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("XRAY_STORAGE_DIR")
	v.BindEnv("XRAY_WATCH_DIRS")
	v.BindEnv("XRAY_SCAN_INTERVAL")
	v.BindEnv("DEVICE_API_KEYS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	if cfg.XrayWatchDirs == nil {
		cfg.XrayWatchDirs = splitList(v.GetString("XRAY_WATCH_DIRS"))
	}
	if cfg.DeviceAPIKeys == nil {
		cfg.DeviceAPIKeys = splitList(v.GetString("DEVICE_API_KEYS"))
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// WatchDir is one parsed XRAY_WATCH_DIRS entry.
type WatchDir struct {
	Vendor string
	Path   string
}

// ParseWatchDirs splits the vendor:path entries of XRAY_WATCH_DIRS.
// Entries without a vendor prefix default to the generic manifest layout.
func (c *Config) ParseWatchDirs() ([]WatchDir, error) {
	var dirs []WatchDir
	for _, raw := range c.XrayWatchDirs {
		vendor, path, found := strings.Cut(raw, ":")
		if !found {
			vendor, path = "generic", raw
		}
		if path == "" {
			return nil, fmt.Errorf("invalid watch dir entry %q", raw)
		}
		dirs = append(dirs, WatchDir{Vendor: vendor, Path: path})
	}
	return dirs, nil
}

// Validate checks that the configuration is safe to run. Outside development
// an auth signing key or issuer must be configured, and device push requires
// at least one API key so unauthenticated devices cannot enqueue studies.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" && c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_ISSUER must be set when ENV=%q", c.Env)
		}
		if len(c.DeviceAPIKeys) == 0 && len(c.XrayWatchDirs) == 0 {
			return fmt.Errorf("no study sources configured: set DEVICE_API_KEYS or XRAY_WATCH_DIRS")
		}
	}
	if c.XrayScanInterval <= 0 {
		return fmt.Errorf("XRAY_SCAN_INTERVAL must be positive, got %s", c.XrayScanInterval)
	}
	if c.XrayStorageDir == "" {
		return fmt.Errorf("XRAY_STORAGE_DIR is required")
	}
	return nil
}

package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Errorf("expected development env by default")
	}
	if cfg.XrayScanInterval != 30*time.Second {
		t.Errorf("expected 30s scan interval, got %s", cfg.XrayScanInterval)
	}
	if cfg.XrayStorageDir == "" {
		t.Errorf("expected a default storage dir")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestParseWatchDirs(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    []WatchDir
		wantErr bool
	}{
		{
			name:    "vendor prefixed",
			entries: []string{"triana:/mnt/triana/out", "carestream:/mnt/cs"},
			want: []WatchDir{
				{Vendor: "triana", Path: "/mnt/triana/out"},
				{Vendor: "carestream", Path: "/mnt/cs"},
			},
		},
		{
			name:    "bare path defaults to generic",
			entries: []string{"/mnt/xray"},
			want:    []WatchDir{{Vendor: "generic", Path: "/mnt/xray"}},
		},
		{
			name:    "empty path rejected",
			entries: []string{"triana:"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{XrayWatchDirs: tt.entries}
			got, err := cfg.ParseWatchDirs()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWatchDirs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d dirs, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("dir %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestValidate_ProductionRequiresAuth(t *testing.T) {
	cfg := &Config{
		Env:              "production",
		XrayStorageDir:   "/var/lib/clinic/xray",
		XrayScanInterval: time.Minute,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without auth configuration in production")
	}

	cfg.AuthSigningKey = "secret"
	cfg.DeviceAPIKeys = []string{"device-key"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_ScanInterval(t *testing.T) {
	cfg := &Config{
		Env:            "development",
		XrayStorageDir: "/tmp/xray",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive scan interval")
	}
}

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.API.Port)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Upload.Provider != ProviderHosted || cfg.Upload.Preset != "form_builder" {
		t.Fatalf("unexpected upload config %+v", cfg.Upload)
	}
	if cfg.Limits.MaxTemplates != 5 || cfg.Limits.MaxSections != 10 {
		t.Fatalf("unexpected limits %+v", cfg.Limits)
	}
	if cfg.RedisRequired() {
		t.Fatalf("redis should not be required by default")
	}
	if cfg.Runtime.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected session ttl %s", cfg.Runtime.SessionTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", " Memory ")
	t.Setenv("MAX_SECTIONS", "3")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("SESSION_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 9090 {
		t.Fatalf("unexpected port %d", cfg.API.Port)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Limits.MaxSections != 3 {
		t.Fatalf("unexpected max sections %d", cfg.Limits.MaxSections)
	}
	if !cfg.RedisRequired() || cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Runtime.SessionTTL != 5*time.Minute {
		t.Fatalf("unexpected session ttl %s", cfg.Runtime.SessionTTL)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"backend", map[string]string{"STORAGE_BACKEND": "s3"}, "unsupported storage backend"},
		{"provider", map[string]string{"STORAGE_BACKEND": "memory", "UPLOAD_PROVIDER": "ftp"}, "unsupported upload provider"},
		{"minio credentials", map[string]string{"STORAGE_BACKEND": "memory", "UPLOAD_PROVIDER": "minio"}, "minio access key id is required"},
		{"limits", map[string]string{"STORAGE_BACKEND": "memory", "MAX_TEMPLATES": "0"}, "max templates must be positive"},
		{"session ttl", map[string]string{"STORAGE_BACKEND": "memory", "SESSION_TTL": "-1m"}, "session ttl must not be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

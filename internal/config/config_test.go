package config

import (
	"errors"
	"testing"
	"time"

	"statusgate/internal/credential"
	"statusgate/internal/origin"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(envFrom(map[string]string{"API_KEY": "k"}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Server.Port)
	}
	if cfg.Gate.AllowedOrigins != origin.DefaultOrigin {
		t.Errorf("AllowedOrigins = %q, want %q", cfg.Gate.AllowedOrigins, origin.DefaultOrigin)
	}
	if cfg.Gate.TrustProxyHops != 1 {
		t.Errorf("TrustProxyHops = %d, want 1", cfg.Gate.TrustProxyHops)
	}
	if cfg.RateLimit.Max != 100 || cfg.RateLimit.Window != 15*time.Minute {
		t.Errorf("RateLimit = %+v, want 100 per 15m", cfg.RateLimit)
	}
	if cfg.Gate.StrictOrigin {
		t.Error("StrictOrigin should default to false")
	}
	if cfg.Gate.Credential == nil {
		t.Error("Credential not loaded")
	}
}

func TestLoad_MissingCredential(t *testing.T) {
	_, err := Load(envFrom(map[string]string{"PORT": "8080"}))
	if !errors.Is(err, credential.ErrMissing) {
		t.Fatalf("Load() error = %v, want credential.ErrMissing", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"Port Not Numeric", "PORT", "http"},
		{"Port Out Of Range", "PORT", "70000"},
		{"Max Not Numeric", "RATE_LIMIT_MAX", "many"},
		{"Max Zero", "RATE_LIMIT_MAX", "0"},
		{"Window Bad", "RATE_LIMIT_WINDOW", "15"},
		{"Window Negative", "RATE_LIMIT_WINDOW", "-1m"},
		{"Strict Bad", "STRICT_ORIGIN", "sometimes"},
		{"Hops Negative", "TRUST_PROXY_HOPS", "-1"},
		{"Max Connections Bad", "MAX_CONNECTIONS", "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(envFrom(map[string]string{"API_KEY": "k", tt.key: tt.val}))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(envFrom(map[string]string{
		"API_KEY":           "k",
		"PORT":              "8081",
		"ALLOWED_ORIGINS":   "https://a.example,https://b.example",
		"STRICT_ORIGIN":     "true",
		"RATE_LIMIT_MAX":    "5",
		"RATE_LIMIT_WINDOW": "1m",
		"SERVICE_NAME":      "MCP Docker Server",
		"REDIS_ADDR":        "redis:6379",
	}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8081" || cfg.Server.ServiceName != "MCP Docker Server" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Gate.StrictOrigin {
		t.Error("StrictOrigin not applied")
	}
	if cfg.RateLimit.Max != 5 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.Audit.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q", cfg.Audit.RedisAddr)
	}
}

func TestLoadWorker(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantRedis string
		wantErr   error
	}{
		{
			name:      "Defaults Redis",
			env:       map[string]string{"DB_URL": "postgres://u:p@db:5432/audit"},
			wantRedis: DefaultRedisAddr,
		},
		{
			name:      "Explicit Redis",
			env:       map[string]string{"DB_URL": "postgres://u:p@db:5432/audit", "REDIS_ADDR": "redis:6379"},
			wantRedis: "redis:6379",
		},
		{
			name:    "Missing DB URL",
			env:     map[string]string{"REDIS_ADDR": "redis:6379"},
			wantErr: ErrMissingDBURL,
		},
		{
			name:    "Blank DB URL",
			env:     map[string]string{"DB_URL": "  "},
			wantErr: ErrMissingDBURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWorker(envFrom(tt.env))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LoadWorker() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadWorker failed: %v", err)
			}
			if cfg.RedisAddr != tt.wantRedis {
				t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, tt.wantRedis)
			}
			if cfg.DBURL != tt.env["DB_URL"] {
				t.Errorf("DBURL = %q, want %q", cfg.DBURL, tt.env["DB_URL"])
			}
		})
	}
}

/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"postgres", func(c *Config) { c.databaseDriver = "postgres" }, false},
		{"tls pair", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, true},
		{"port zero", func(c *Config) { c.port = 0 }, true},
		{"port too high", func(c *Config) { c.port = 65536 }, true},
		{"unknown driver", func(c *Config) { c.databaseDriver = "mysql" }, true},
		{"empty url", func(c *Config) { c.databaseURL = "" }, true},
		{"zero interval", func(c *Config) { c.cleanupInterval = 0 }, true},
		{"negative timeout", func(c *Config) { c.storeTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.databaseURL = "songsleuth.db"
			tt.mutate(cfg)

			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheme(t *testing.T) {
	cfg := testConfig()
	if got := cfg.scheme(); got != "http" {
		t.Errorf("scheme = %q, want http", got)
	}

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	if got := cfg.scheme(); got != "https" {
		t.Errorf("scheme = %q, want https", got)
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	if cfg.databaseDriver != "sqlite" || cfg.databaseURL != "songsleuth.db" {
		t.Errorf("database = %s %s", cfg.databaseDriver, cfg.databaseURL)
	}
	if cfg.cleanupInterval != time.Minute {
		t.Errorf("cleanup interval = %s", cfg.cleanupInterval)
	}
	if cfg.storeTimeout != 5*time.Second {
		t.Errorf("store timeout = %s", cfg.storeTimeout)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SONGSLEUTH_PORT", "9090")
	t.Setenv("SONGSLEUTH_CLEANUP_INTERVAL", "30s")
	t.Setenv("SONGSLEUTH_DATABASE_DRIVER", "postgres")
	t.Setenv("SONGSLEUTH_VERBOSE", "true")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.port)
	}
	if cfg.cleanupInterval != 30*time.Second {
		t.Errorf("cleanup interval = %s, want 30s", cfg.cleanupInterval)
	}
	if cfg.databaseDriver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.databaseDriver)
	}
	if !cfg.verbose {
		t.Error("verbose not set from environment")
	}
}

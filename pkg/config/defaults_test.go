package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults %+v", cfg.Logging)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" || cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Unexpected telemetry defaults %+v", cfg.Telemetry)
	}
	if cfg.Metrics.Enabled || cfg.Metrics.Port != 9090 {
		t.Errorf("Unexpected metrics defaults %+v", cfg.Metrics)
	}
	if cfg.API.Port != 8085 || cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Unexpected API defaults %+v", cfg.API)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Expected default debounce 500ms, got %v", cfg.Watch.Debounce)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.PluginOptions == nil {
		t.Error("Expected plugin options map to be initialized")
	}
	if cfg.UsersFile != "" {
		t.Errorf("users_file must not be defaulted, got %q", cfg.UsersFile)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "debug", Format: "json", Output: "/var/log/yamlauth.log"},
		Watch:           WatchConfig{Debounce: time.Second},
		ShutdownTimeout: time.Minute,
	}
	cfg.API.Port = 9000
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Output != "/var/log/yamlauth.log" {
		t.Errorf("Explicit logging values overwritten: %+v", cfg.Logging)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
	if cfg.ShutdownTimeout != time.Minute {
		t.Errorf("Expected shutdown timeout 1m, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("Expected API port 9000, got %d", cfg.API.Port)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.UsersFile != DefaultUsersFile {
		t.Errorf("Expected users_file %q, got %q", DefaultUsersFile, cfg.UsersFile)
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Expected insecure telemetry by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

func TestWatchConfig_IsEnabled(t *testing.T) {
	var w WatchConfig
	if !w.IsEnabled() {
		t.Error("Expected watcher enabled when unset")
	}

	disabled := false
	w.Enabled = &disabled
	if w.IsEnabled() {
		t.Error("Expected watcher disabled")
	}
}

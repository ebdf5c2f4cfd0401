package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != ProviderGemini {
		t.Errorf("Expected default provider to be 'gemini', got '%s'", cfg.Provider)
	}

	if cfg.Model != DefaultModel {
		t.Errorf("Expected default model to be '%s', got '%s'", DefaultModel, cfg.Model)
	}

	if cfg.ResolveConcurrency != 4 {
		t.Errorf("Expected default concurrency to be 4, got %d", cfg.ResolveConcurrency)
	}

	if cfg.ResolveTimeout != 120*time.Second {
		t.Errorf("Expected default timeout to be 120s, got %s", cfg.ResolveTimeout)
	}

	if cfg.StoreBackend != StoreLocal {
		t.Errorf("Expected default store backend to be 'local', got '%s'", cfg.StoreBackend)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	// Default directories hang off the current working directory
	currentDir, _ := os.Getwd()
	if cfg.FormsDirectory != filepath.Join(currentDir, "forms") {
		t.Errorf("Expected default forms directory under the working directory, got '%s'", cfg.FormsDirectory)
	}
	if cfg.TemplatesDirectory != filepath.Join(currentDir, "templates") {
		t.Errorf("Expected default templates directory under the working directory, got '%s'", cfg.TemplatesDirectory)
	}
}

func validTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FormsDirectory = t.TempDir()
	cfg.TemplatesDirectory = t.TempDir()
	cfg.OutputDirectory = filepath.Join(t.TempDir(), "out")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config - local store",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid config - static provider",
			mutate: func(c *Config) {
				c.Provider = ProviderStatic
			},
			wantErr: false,
		},
		{
			name: "valid config - s3 store",
			mutate: func(c *Config) {
				c.StoreBackend = StoreS3
				c.S3Bucket = "filled-forms"
			},
			wantErr: false,
		},
		{
			name: "invalid provider",
			mutate: func(c *Config) {
				c.Provider = "openai"
			},
			wantErr: true,
		},
		{
			name: "invalid store backend",
			mutate: func(c *Config) {
				c.StoreBackend = "ftp"
			},
			wantErr: true,
		},
		{
			name: "s3 store without bucket",
			mutate: func(c *Config) {
				c.StoreBackend = StoreS3
			},
			wantErr: true,
		},
		{
			name: "empty forms directory",
			mutate: func(c *Config) {
				c.FormsDirectory = ""
			},
			wantErr: true,
		},
		{
			name: "nonexistent templates directory",
			mutate: func(c *Config) {
				c.TemplatesDirectory = "/nonexistent/templates"
			},
			wantErr: true,
		},
		{
			name: "zero concurrency",
			mutate: func(c *Config) {
				c.ResolveConcurrency = 0
			},
			wantErr: true,
		},
		{
			name: "negative timeout",
			mutate: func(c *Config) {
				c.ResolveTimeout = -time.Second
			},
			wantErr: true,
		},
		{
			name: "zero max file size",
			mutate: func(c *Config) {
				c.MaxFileSize = 0
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.LogLevel = "verbose"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCreatesOutputDirectory(t *testing.T) {
	cfg := validTestConfig(t)

	if _, err := os.Stat(cfg.OutputDirectory); !os.IsNotExist(err) {
		t.Fatalf("Expected output directory to not exist before validation")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if _, err := os.Stat(cfg.OutputDirectory); err != nil {
		t.Errorf("Expected output directory to be created by validation: %v", err)
	}
}

func TestIsDebug(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.IsDebug() {
		t.Error("Expected IsDebug to be false for info level")
	}
	cfg.LogLevel = "debug"
	if !cfg.IsDebug() {
		t.Error("Expected IsDebug to be true for debug level")
	}
}

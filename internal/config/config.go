package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Provider constants
	ProviderGemini = "gemini"
	ProviderStatic = "static"

	// Store backend constants
	StoreLocal = "local"
	StoreS3    = "s3"

	// Default values
	DefaultLogLevel           = "info"
	DefaultMaxFileSize        = 100 * 1024 * 1024 // 100MB
	DefaultModel              = "gemini-2.0-flash"
	DefaultResolveConcurrency = 4
	DefaultResolveTimeout     = 120 * time.Second

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the form fill pipeline
type Config struct {
	// Directory configuration
	FormsDirectory     string // blank form PDFs
	TemplatesDirectory string // field templates (one JSON per form)
	OutputDirectory    string // filled documents (local store backend)

	// Resolver configuration
	Provider           string // "gemini" or "static"
	Model              string
	ResolveConcurrency int
	ResolveTimeout     time.Duration

	// Document store configuration
	StoreBackend string // "local" or "s3"
	S3Endpoint   string
	S3Region     string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3UseSSL     bool

	// Application configuration
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		FormsDirectory:     filepath.Join(currentDir, "forms"),
		TemplatesDirectory: filepath.Join(currentDir, "templates"),
		OutputDirectory:    filepath.Join(currentDir, "output"),
		Provider:           ProviderGemini,
		Model:              DefaultModel,
		ResolveConcurrency: DefaultResolveConcurrency,
		ResolveTimeout:     DefaultResolveTimeout,
		StoreBackend:       StoreLocal,
		LogLevel:           DefaultLogLevel,
		MaxFileSize:        DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand directory paths
	for _, dir := range []*string{&cfg.FormsDirectory, &cfg.TemplatesDirectory, &cfg.OutputDirectory} {
		if *dir != "" {
			if expanded, err := filepath.Abs(*dir); err == nil {
				*dir = expanded
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("DOCTORFILL")
	viper.AutomaticEnv()

	viper.SetDefault("forms", cfg.FormsDirectory)
	viper.SetDefault("templates", cfg.TemplatesDirectory)
	viper.SetDefault("output", cfg.OutputDirectory)
	viper.SetDefault("provider", cfg.Provider)
	viper.SetDefault("model", cfg.Model)
	viper.SetDefault("concurrency", cfg.ResolveConcurrency)
	viper.SetDefault("timeout", cfg.ResolveTimeout)
	viper.SetDefault("store", cfg.StoreBackend)
	viper.SetDefault("s3_endpoint", cfg.S3Endpoint)
	viper.SetDefault("s3_region", cfg.S3Region)
	viper.SetDefault("s3_access_key", cfg.S3AccessKey)
	viper.SetDefault("s3_secret_key", cfg.S3SecretKey)
	viper.SetDefault("s3_bucket", cfg.S3Bucket)
	viper.SetDefault("s3_use_ssl", cfg.S3UseSSL)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("forms", cfg.FormsDirectory, "Directory containing blank form PDFs")
	pflag.String("templates", cfg.TemplatesDirectory, "Directory containing form field templates")
	pflag.String("output", cfg.OutputDirectory, "Directory for filled documents (local store)")
	pflag.String("provider", cfg.Provider, "Answer provider: 'gemini' or 'static'")
	pflag.String("model", cfg.Model, "Model name for the gemini provider")
	pflag.Int("concurrency", cfg.ResolveConcurrency, "Maximum concurrent answer requests")
	pflag.Duration("timeout", cfg.ResolveTimeout, "Timeout for the whole answer-resolution stage")
	pflag.String("store", cfg.StoreBackend, "Document store backend: 'local' or 's3'")
	pflag.String("s3_endpoint", cfg.S3Endpoint, "S3 endpoint (s3 store only)")
	pflag.String("s3_region", cfg.S3Region, "S3 region (s3 store only)")
	pflag.String("s3_access_key", cfg.S3AccessKey, "S3 access key (s3 store only)")
	pflag.String("s3_secret_key", cfg.S3SecretKey, "S3 secret key (s3 store only)")
	pflag.String("s3_bucket", cfg.S3Bucket, "S3 bucket (s3 store only)")
	pflag.Bool("s3_use_ssl", cfg.S3UseSSL, "Use TLS for S3 (s3 store only)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"forms", "templates", "output",
		"provider", "model", "concurrency", "timeout",
		"store", "s3_endpoint", "s3_region", "s3_access_key",
		"s3_secret_key", "s3_bucket", "s3_use_ssl",
		"loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndoctorfill - fills structured medical PDF forms from source reports\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --form=AI_Report --report=r1.pdf --report=r2.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --form=AI_Report --provider=static --templates=./templates\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DOCTORFILL_FORMS        Blank form directory\n")
		fmt.Fprintf(os.Stderr, "  DOCTORFILL_TEMPLATES    Template directory\n")
		fmt.Fprintf(os.Stderr, "  DOCTORFILL_OUTPUT       Output directory\n")
		fmt.Fprintf(os.Stderr, "  DOCTORFILL_PROVIDER     Answer provider\n")
		fmt.Fprintf(os.Stderr, "  DOCTORFILL_MODEL        Model name\n")
		fmt.Fprintf(os.Stderr, "  DOCTORFILL_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY          API key for the gemini provider\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.FormsDirectory = viper.GetString("forms")
	cfg.TemplatesDirectory = viper.GetString("templates")
	cfg.OutputDirectory = viper.GetString("output")
	cfg.Provider = viper.GetString("provider")
	cfg.Model = viper.GetString("model")
	cfg.ResolveConcurrency = viper.GetInt("concurrency")
	cfg.ResolveTimeout = viper.GetDuration("timeout")
	cfg.StoreBackend = viper.GetString("store")
	cfg.S3Endpoint = viper.GetString("s3_endpoint")
	cfg.S3Region = viper.GetString("s3_region")
	cfg.S3AccessKey = viper.GetString("s3_access_key")
	cfg.S3SecretKey = viper.GetString("s3_secret_key")
	cfg.S3Bucket = viper.GetString("s3_bucket")
	cfg.S3UseSSL = viper.GetBool("s3_use_ssl")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Provider != ProviderGemini && c.Provider != ProviderStatic {
		return errors.New("provider must be either 'gemini' or 'static'")
	}

	if c.StoreBackend != StoreLocal && c.StoreBackend != StoreS3 {
		return errors.New("store must be either 'local' or 's3'")
	}

	if c.StoreBackend == StoreS3 && c.S3Bucket == "" {
		return errors.New("s3 store requires a bucket")
	}

	if c.FormsDirectory == "" {
		return errors.New("forms directory cannot be empty")
	}
	if c.TemplatesDirectory == "" {
		return errors.New("templates directory cannot be empty")
	}

	// The output directory is created on demand; forms and templates
	// must already exist since the pipeline only reads them.
	for _, dir := range []string{c.FormsDirectory, c.TemplatesDirectory} {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("cannot access directory %s: %w", dir, err)
		}
	}
	if c.StoreBackend == StoreLocal {
		if _, err := os.Stat(c.OutputDirectory); os.IsNotExist(err) {
			if err := os.MkdirAll(c.OutputDirectory, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create output directory %s: %w", c.OutputDirectory, err)
			}
		}
	}

	if c.ResolveConcurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.ResolveTimeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

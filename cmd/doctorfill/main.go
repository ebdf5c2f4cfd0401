package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/doctorfill-dev/doctorfill/internal/config"
	"github.com/doctorfill-dev/doctorfill/internal/llm"
	"github.com/doctorfill-dev/doctorfill/internal/pipeline"
	"github.com/doctorfill-dev/doctorfill/internal/report"
	"github.com/doctorfill-dev/doctorfill/internal/resolve"
	"github.com/doctorfill-dev/doctorfill/internal/schema"
	"github.com/doctorfill-dev/doctorfill/internal/store"
)

var version = "dev" // set by build flags

func main() {
	// Local .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	formName := pflag.String("form", "", "Name of the registered form to fill")
	reports := pflag.StringSlice("report", nil, "Source report PDF (repeatable)")
	output := pflag.String("out", "", "Output key for the filled document")
	listForms := pflag.Bool("list", false, "List registered forms and exit")
	showVersion := pflag.Bool("version", false, "Print version and exit")

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "doctorfill: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("doctorfill %s\n", version)
		return
	}

	log := setupLogging(cfg)

	if *listForms {
		if err := printForms(cfg); err != nil {
			log.Fatal().Err(err).Msg("list forms failed")
		}
		return
	}

	if *formName == "" {
		fmt.Fprintln(os.Stderr, "doctorfill: --form is required")
		pflag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, err := buildOrchestrator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("setup failed")
	}

	res, err := orch.Run(ctx, pipeline.FillRequest{
		FormName:    *formName,
		ReportPaths: *reports,
		OutputKey:   *output,
	})
	if err != nil {
		log.Error().Err(err).Msg("fill run failed")
		os.Exit(1)
	}

	fmt.Printf("form:   %s\n", res.FormName)
	fmt.Printf("filled: %d/%d fields\n", res.FilledFields, res.TotalFields)
	for _, s := range res.Skipped {
		fmt.Printf("skipped: %s (%s)\n", s.ID, s.Reason)
	}
	fmt.Printf("output: %s\n", res.OutputKey)
}

func setupLogging(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func printForms(cfg *config.Config) error {
	registry, err := schema.NewRegistry(cfg.TemplatesDirectory, cfg.FormsDirectory)
	if err != nil {
		return err
	}
	forms, err := registry.List()
	if err != nil {
		return err
	}
	if len(forms) == 0 {
		fmt.Println("no forms registered")
		return nil
	}
	for _, f := range forms {
		fmt.Printf("%s  %s\n", f.ID, f.Name)
	}
	return nil
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Orchestrator, error) {
	registry, err := schema.NewRegistry(cfg.TemplatesDirectory, cfg.FormsDirectory)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	var documents store.Store
	switch cfg.StoreBackend {
	case config.StoreS3:
		documents, err = store.NewS3(store.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		documents, err = store.NewLocal(cfg.OutputDirectory, cfg.FormsDirectory)
	}
	if err != nil {
		return nil, fmt.Errorf("init document store: %w", err)
	}

	var resolver resolve.Resolver
	switch cfg.Provider {
	case config.ProviderGemini:
		resolver, err = llm.NewGemini(ctx, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("init resolver: %w", err)
		}
	default:
		// Static provider: only template-curated answers are used.
		resolver = llm.NewStatic(nil)
	}

	return pipeline.New(
		registry,
		resolver,
		documents,
		report.NewExtractor(cfg.MaxFileSize),
		resolve.FanOutConfig{Limit: cfg.ResolveConcurrency, Timeout: cfg.ResolveTimeout},
		log,
	), nil
}

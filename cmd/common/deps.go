// Package common wires configuration, logging and the pipeline components
// shared by the CLI commands.
package common

import (
	"context"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/product-detector/internal/artifact"
	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/export"
	"github.com/jonesrussell/north-cloud/product-detector/internal/extract"
	"github.com/jonesrussell/north-cloud/product-detector/internal/fetcher"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/report"
	"github.com/jonesrussell/north-cloud/product-detector/internal/service"
	"github.com/jonesrussell/north-cloud/product-detector/internal/telemetry"
)

// Persistent flag names registered on the root command.
const (
	FlagConfig = "config"
	FlagDebug  = "debug"
)

// CommandDeps holds the dependencies every command starts from.
type CommandDeps struct {
	Logger   logger.Logger
	Config   *config.Config
	Metrics  *telemetry.Metrics
	Registry *prometheus.Registry
}

func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// FromCommand loads config from the --config flag (or CONFIG_PATH) and
// builds the logger. Commands that print results on stdout get their logs
// on stderr unless output paths were configured explicitly.
func FromCommand(cmd *cobra.Command, stdoutIsOutput bool) (CommandDeps, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	if path == "" {
		path = config.GetConfigPath("config.yml")
	}
	return NewCommandDeps(path, debug, stdoutIsOutput)
}

func NewCommandDeps(path string, debug, stdoutIsOutput bool) (CommandDeps, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	if stdoutIsOutput && slices.Equal(cfg.Logging.OutputPaths, []string{"stdout"}) {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := CommandDeps{
		Logger: log.With(
			logger.String("service", cfg.Service.Name),
			logger.String("version", cfg.Service.Version),
		),
		Config:   cfg,
		Metrics:  telemetry.New(reg),
		Registry: reg,
	}
	if err := deps.Validate(); err != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", err)
	}
	return deps, nil
}

func (d CommandDeps) Extractor() extract.Extractor {
	return extract.New(d.Config.Detector.TextSelectors)
}

// NewService returns a service initialised from the artifacts directory.
// With requireModels unset a missing bundle is logged and the returned
// service can still detect.
func (d CommandDeps) NewService(requireModels bool) (*service.Service, error) {
	svc := service.New(d.Extractor(), d.Logger, d.Metrics)

	bundle, err := artifact.Load(d.Config.Artifacts.Dir)
	if err == nil {
		err = svc.Init(bundle)
	}
	if err != nil {
		if requireModels {
			return nil, fmt.Errorf("load classifiers from %s: %w", d.Config.Artifacts.Dir, err)
		}
		d.Logger.Warn("Classifiers unavailable, serving detection only",
			logger.String("artifacts_dir", d.Config.Artifacts.Dir),
			logger.Error(err),
		)
	}
	return svc, nil
}

// NewFetcher builds the configured fetcher, adding the Redis page cache
// when enabled. The caller must call the returned close function.
func (d CommandDeps) NewFetcher(ctx context.Context) (fetcher.Fetcher, func(), error) {
	f, err := fetcher.New(d.Config.Fetcher, d.Logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := fetcher.Close(f); err != nil {
			d.Logger.Warn("Closing fetcher failed", logger.Error(err))
		}
	}

	if !d.Config.Redis.Enabled {
		return f, closeFn, nil
	}
	client, err := fetcher.NewRedisClient(ctx, d.Config.Redis)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	cached := fetcher.NewCached(f, client, d.Config.Fetcher.CacheTTL, d.Logger)
	return cached, func() {
		closeFn()
		_ = client.Close()
	}, nil
}

// NewExporter returns nil when Elasticsearch export is disabled.
func (d CommandDeps) NewExporter(ctx context.Context) (*export.ElasticsearchSink, error) {
	if !d.Config.Elasticsearch.Enabled {
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	client, err := export.NewClient(ctx, d.Config.Elasticsearch, d.Logger)
	if err != nil {
		return nil, err
	}
	return export.NewElasticsearchSink(client, d.Config.Elasticsearch.Index, d.Logger), nil
}

func (d CommandDeps) ReportWriter() *report.Writer {
	return report.NewWriter(d.Config.Report.OutputDir)
}

// Package app wires configuration into a ready service for both the CLI
// and the Lambda entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/MimeLyc/seabridge/internal/batch"
	"github.com/MimeLyc/seabridge/internal/config"
	"github.com/MimeLyc/seabridge/internal/document"
	"github.com/MimeLyc/seabridge/internal/jobs"
	"github.com/MimeLyc/seabridge/internal/llm"
	"github.com/MimeLyc/seabridge/internal/persistence"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/internal/service"
	"github.com/MimeLyc/seabridge/internal/storage"
	"github.com/MimeLyc/seabridge/pkg/icron"
	"github.com/MimeLyc/seabridge/pkg/log"
)

type App struct {
	Config  *config.Config
	Service *service.Service

	closers []func() error
}

// LoadConfig reads the settings file named by SETTINGS_FILE and applies it
// over the environment.
func LoadConfig(opts ...config.Option) (*config.Config, *config.RuntimeSettingsStore, error) {
	path := config.RuntimeSettingsFilePath()
	settings, err := config.LoadRuntimeSettingsFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.NewFromEnv(append([]config.Option{config.WithRuntimeSettings(settings)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	store, err := config.NewRuntimeSettingsStore(path, settings)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// Build constructs every collaborator cfg enables. Document jobs are only
// wired when a batch provider URL is configured.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	selector, err := buildSelector(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pipeline := document.NewPipeline(selector,
		document.WithConcurrency(cfg.Translate.DocConcurrency),
		document.WithMaxChunkSize(cfg.Translate.DocMaxChunkSize),
	)

	deps := service.Deps{
		Selector:              selector,
		Pipeline:              pipeline,
		SMSMaxLength:          cfg.Translate.SMSMaxLength,
		DefaultTargetLanguage: cfg.Translate.DefaultTargetLanguage.String(),
	}

	if cfg.Jobs.Enabled() {
		manager, poller, err := a.buildJobs(ctx, cfg)
		if err != nil {
			_ = a.closeAll()
			return nil, err
		}
		deps.Jobs = manager
		deps.Poller = poller
	} else {
		log.Info("BATCH_API_URL not set, document jobs are disabled")
	}

	svc, err := service.New(deps)
	if err != nil {
		_ = a.closeAll()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func buildSelector(ctx context.Context, cfg *config.Config) (*provider.Selector, error) {
	var primary, fallback provider.TranslationProvider

	if strings.TrimSpace(cfg.Primary.APIURL) != "" {
		local, err := provider.NewLocalProvider(&llm.Config{
			APIKey:      cfg.Primary.APIKey,
			APIURL:      cfg.Primary.APIURL,
			Model:       cfg.Primary.Model,
			MaxTokens:   cfg.Primary.MaxTokens,
			Temperature: cfg.Primary.Temperature,
			Timeout:     cfg.Primary.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create primary provider: %w", err)
		}
		primary = local
	}

	if fn := strings.TrimSpace(cfg.Fallback.LambdaFunction); fn != "" {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Fallback.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Fallback.Region))
		}
		lambdaProvider, err := provider.NewLambdaProvider(ctx, fn, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback provider: %w", err)
		}
		fallback = lambdaProvider
	}

	if primary == nil && fallback == nil {
		return nil, errors.New("no translation provider configured")
	}

	opts := []provider.Option{provider.WithMaxPayload(cfg.Translate.MaxSyncChars)}
	if cfg.Primary.Timeout > 0 {
		opts = append(opts, provider.WithPrimaryTimeout(time.Duration(cfg.Primary.Timeout)*time.Second))
	}
	return provider.NewSelector(primary, fallback, opts...), nil
}

func (a *App) buildJobs(ctx context.Context, cfg *config.Config) (*jobs.Manager, *jobs.Poller, error) {
	client, err := batch.NewClient(batch.Config{
		BaseURL: cfg.Jobs.BatchAPIURL,
		APIKey:  cfg.Jobs.BatchAPIKey,
		Timeout: cfg.Jobs.BatchTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	var store jobs.Store
	if path := strings.TrimSpace(cfg.Jobs.DBPath); path != "" {
		sqliteStore, err := persistence.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open job store: %w", err)
		}
		a.closers = append(a.closers, sqliteStore.Close)
		store = sqliteStore
		log.Info("Document jobs persisted to %s", path)
	} else {
		store = jobs.NewMemoryStore()
		log.Warn("JOBS_DB_PATH is empty, document jobs are kept in memory")
	}

	var objects jobs.ObjectStore
	if cfg.Jobs.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.Config{
			Bucket:      cfg.Jobs.Bucket,
			Region:      cfg.Fallback.Region,
			EndpointURL: cfg.Jobs.EndpointURL,
			TTL:         cfg.Jobs.SignedURLTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		objects = s3Store
	}

	schedule, err := icron.ParseSchedule(cfg.Jobs.PollSchedule)
	if err != nil {
		return nil, nil, err
	}
	if info, err := icron.GetTriggerInfo(cfg.Jobs.PollSchedule, time.Now()); err == nil {
		log.Info("Polling document jobs %s, every %s", info.Expression, info.Interval)
	}

	manager := jobs.NewManager(client, store, objects, jobs.WithMaxDocumentBytes(cfg.Jobs.MaxDocumentBytes))
	poller := jobs.NewPoller(manager,
		jobs.WithSchedule(schedule),
		jobs.WithUpdateHook(func(job *jobs.DocumentJob) {
			log.Debug("Job %s is %s (%d%%)", job.ID, job.Status, job.ProgressPercent)
		}),
	)
	return manager, poller, nil
}

// Close stops polling and releases the job store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		errs = append(errs, a.Service.Close(ctx))
	}
	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

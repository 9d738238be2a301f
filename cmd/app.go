// Package cmd implements the minuted command-line interface.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minutedapp/minuted/config"
	"github.com/minutedapp/minuted/pkg/blob"
	"github.com/minutedapp/minuted/pkg/calendar"
	"github.com/minutedapp/minuted/pkg/db"
	"github.com/minutedapp/minuted/pkg/insight"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/meeting"
	"github.com/minutedapp/minuted/pkg/pipeline"
	"github.com/minutedapp/minuted/pkg/task"
	"github.com/minutedapp/minuted/pkg/transcribe"
)

// app bundles the wired dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	pool     *pgxpool.Pool
	meetings *meeting.Repository
	tasks    *task.Repository
}

// openApp loads configuration, connects the database, and builds the
// repositories. The caller must call close.
func openApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	pool, err := db.ConnectWithRetry(ctx, dbConfig(cfg), 5, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		meetings: meeting.NewRepository(pool, logger),
		tasks:    task.NewRepository(pool, logger),
	}, nil
}

func (a *app) close() {
	db.Close(a.pool)
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:       logging.Level(cfg.LogLevel),
		ServiceName: "minuted",
		Environment: cfg.Environment,
		JSONFormat:  cfg.LogJSON,
	})
}

func dbConfig(cfg *config.Config) *db.Config {
	dc := db.DefaultConfig()
	dc.URL = cfg.Database.URL
	dc.Host = cfg.Database.Host
	dc.Port = cfg.Database.Port
	dc.Database = cfg.Database.Name
	dc.User = cfg.Database.User
	dc.Password = cfg.Database.Password
	dc.SSLMode = cfg.Database.SSLMode
	return dc
}

// newTranscriber builds the configured provider wrapped in the retry policy.
func newTranscriber(cfg *config.Config, logger logging.Logger) (transcribe.Provider, error) {
	var inner transcribe.Provider
	switch cfg.Transcription.Provider {
	case "multipart":
		mc := transcribe.DefaultMultipartConfig()
		mc.Endpoint = cfg.Transcription.Endpoint
		mc.APIKey = cfg.Transcription.APIKey
		mc.APIHost = cfg.Transcription.APIHost
		if cfg.Transcription.Language != "" {
			mc.Language = cfg.Transcription.Language
		}
		inner = transcribe.NewMultipartProvider(mc, logger)
	case "polling":
		pc := transcribe.DefaultPollingConfig()
		pc.BaseURL = cfg.Transcription.BaseURL
		pc.APIKey = cfg.Transcription.APIKey
		inner = transcribe.NewPollingProvider(pc, logger)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Transcription.Provider)
	}
	return transcribe.NewRetryingProvider(inner, logger), nil
}

// newOrchestrator wires the full pipeline. metrics may be nil for one-shot
// commands.
func (a *app) newOrchestrator(metrics *pipeline.Metrics) (*pipeline.Orchestrator, error) {
	transcriber, err := newTranscriber(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	gc := insight.DefaultGeminiConfig()
	gc.APIKey = a.cfg.Insight.APIKey
	if a.cfg.Insight.Model != "" {
		gc.ModelName = a.cfg.Insight.Model
	}
	extractor := insight.NewExtractor(insight.NewGeminiModel(gc, a.logger), a.logger)

	var scheduler pipeline.TaskScheduler
	if a.cfg.Calendar.Enabled {
		cc := calendar.DefaultGoogleConfig()
		cc.AccessToken = a.cfg.Calendar.AccessToken
		cc.CalendarID = a.cfg.Calendar.CalendarID
		cc.Timezone = a.cfg.Calendar.Timezone
		scheduler = calendar.NewScheduler(calendar.NewGoogleCalendar(cc, a.logger), a.tasks, a.logger)
	}

	blobs := blob.NewFetcher(blob.DefaultFetcherConfig(), a.logger)

	return pipeline.New(
		a.meetings,
		a.tasks,
		blobs,
		transcriber,
		extractor,
		scheduler,
		pipeline.Config{Attendees: a.cfg.Calendar.Attendees},
		metrics,
		a.logger,
	), nil
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/minutedapp/minuted/config"
	"github.com/minutedapp/minuted/pkg/db"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/pipeline"
	"github.com/minutedapp/minuted/pkg/queue"
	"github.com/minutedapp/minuted/pkg/server"
	"github.com/minutedapp/minuted/pkg/workers"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the processing workers",
		Long: `Run the minuted service: the HTTP API that accepts processing triggers
and status probes, plus the worker pool that drains the job queue.

The queue is in-process by default; enable Redis in the configuration to
share the queue across instances.

Examples:
  minuted serve
  minuted serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return runServe(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if _, err := db.RegisterPoolStatsCollector(a.pool, "minuted", registry); err != nil {
		return err
	}

	orchestrator, err := a.newOrchestrator(pipeline.NewMetrics(registry))
	if err != nil {
		return err
	}

	jobs, err := newQueue(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer jobs.Close()

	wc := workers.DefaultConfig()
	wc.Count = a.cfg.Workers.Count
	if a.cfg.Workers.JobTimeout > 0 {
		wc.JobTimeout = a.cfg.Workers.JobTimeout
	}
	pool := workers.NewPool(wc, jobs, func(ctx context.Context, job queue.Job) error {
		_, err := orchestrator.Run(logging.WithMeetingID(ctx, job.MeetingID), job.MeetingID)
		return err
	}, a.logger)
	pool.Start()
	defer pool.Stop()

	// Redis deliveries abandoned by a dead worker come back after their
	// visibility timeout expires.
	if rq, ok := jobs.(*queue.RedisQueue); ok {
		go recoverStaleLoop(ctx, rq, a.logger)
	}

	sc := server.DefaultConfig()
	sc.Addr = a.cfg.Server.Addr
	if a.cfg.Server.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = a.cfg.Server.ShutdownTimeout
	}
	srv := server.New(sc, a.meetings, jobs, registry, a.logger).WithTaskCounter(a.tasks)

	return srv.ListenAndServe(ctx)
}

func recoverStaleLoop(ctx context.Context, rq *queue.RedisQueue, logger logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rq.RecoverStale(); err != nil {
				logger.Warn("Stale job recovery failed", logging.Err(err))
			}
		}
	}
}

// newQueue builds the configured queue backend.
func newQueue(ctx context.Context, cfg *config.Config, logger logging.Logger) (queue.Queue, error) {
	qc := queue.DefaultConfig()
	qc.Name = cfg.Queue.Name
	if cfg.Queue.MaxRetries > 0 {
		qc.MaxRetries = cfg.Queue.MaxRetries
	}

	if !cfg.Redis.Enabled {
		logger.Info("Using in-process queue", logging.F("queue", qc.Name))
		return queue.NewMemoryQueue(qc), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	logger.Info("Using Redis queue",
		logging.F("queue", qc.Name),
		logging.F("addr", cfg.Redis.Addr))
	return queue.NewRedisQueue(client, qc), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nulzo/model-bridge/internal/broker"
	"github.com/nulzo/model-bridge/internal/cli"
	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/internal/llm"
	"github.com/nulzo/model-bridge/internal/mailbox"
	"github.com/nulzo/model-bridge/internal/metrics"
	"github.com/nulzo/model-bridge/internal/platform/logger"
	"github.com/nulzo/model-bridge/internal/platform/otel"
	"github.com/nulzo/model-bridge/internal/ratelimit"
	"github.com/nulzo/model-bridge/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	// registers every provider adapter
	_ "github.com/nulzo/model-bridge/internal/llm/providers"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP intake and the mailbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Initialize(logger.DefaultConfig())
	if logLevel != "" {
		logger.SetLevel(logLevel)
	}
	log := logger.Get()
	defer logger.Sync()

	fmt.Println(cli.Banner("model-bridge " + AppVersion))

	if cfg.Tracing.Enabled {
		shutdown, err := otel.Setup(otel.Options{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: AppVersion,
			SampleRatio:    cfg.Tracing.SampleRatio,
		}, log, os.Stdout)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error("Failed to shut down tracer", zap.Error(err))
			}
		}()
	}

	registry := llm.Build(cfg.EnabledProviders(), log)

	limiter, closeLimiter, err := ratelimit.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}
	defer func() { _ = closeLimiter() }()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheusRecorder(promReg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	svc := broker.NewService(registry, limiter, log,
		broker.WithMetrics(recorder),
		broker.WithDefaultTimeout(cfg.Upstream.Timeout),
	)

	mb, err := mailbox.New(cfg.Mailbox.Dir, svc, log, mailbox.WithMetrics(recorder))
	if err != nil {
		return err
	}

	log.Info("Broker ready",
		zap.String("port", cfg.Server.Port),
		zap.String("mailbox", mb.Dir()),
		zap.Any("providers", registry.IDs()),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
	)

	srv := server.New(cfg, log, server.Deps{
		Dispatcher: svc,
		Registry:   registry,
		Limiter:    limiter,
		Mailbox:    mb,
		Metrics:    promReg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	var ready <-chan struct{}
	if cfg.Mailbox.Watch {
		watcher := mailbox.NewWatcher(mb, cfg.Mailbox.SettleDelay, log)
		ready = watcher.Ready()
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	if cfg.Mailbox.RecoverOnStart {
		g.Go(func() error {
			if err := mb.RecoverWhenReady(gctx, ready); err != nil {
				log.Warn("Mailbox recovery failed", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Broker stopped")
	return nil
}

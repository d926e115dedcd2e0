package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/member-locator/internal/adapter/export"
	"github.com/couchcryptid/member-locator/internal/adapter/forum"
	httpadapter "github.com/couchcryptid/member-locator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/member-locator/internal/adapter/kafka"
	"github.com/couchcryptid/member-locator/internal/adapter/nominatim"
	"github.com/couchcryptid/member-locator/internal/config"
	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/location"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/couchcryptid/member-locator/internal/pipeline"
	"github.com/couchcryptid/member-locator/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	configPath  string
	membersFile string
	fast        bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch: scrape, geocode and export all members.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.configPath, _ = cmd.Flags().GetString("config")
			return runBatch(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.fast, "fast", false, "skip cache thinning")
	cmd.Flags().StringVar(&opts.membersFile, "members-file", "", "read members from a JSON file instead of scraping the forum")
	return cmd
}

func runBatch(ctx context.Context, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format).With("run_id", uuid.New().String())
	metrics := observability.NewMetrics()

	cache, err := store.Open(cfg.Cache.Dir, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("cache close error", "error", err)
		}
	}()

	source, err := memberSource(cfg, opts.membersFile, cache, metrics, logger)
	if err != nil {
		return err
	}

	geocoder := nominatim.NewClient(nominatim.Options{
		BaseURL:         cfg.Nominatim.BaseURL,
		Email:           cfg.Nominatim.Email,
		UserAgent:       cfg.Nominatim.UserAgent,
		Timeout:         cfg.Nominatim.Timeout,
		Cooldown:        cfg.Nominatim.Cooldown,
		BreakerFailures: cfg.Nominatim.BreakerFailures,
		BreakerTimeout:  cfg.Nominatim.BreakerTimeout,
	}, clockwork.NewRealClock(), metrics, logger)
	locator := nominatim.NewCachedLocator(domain.NewBackendLocator(geocoder, logger), cache, metrics, logger)

	table := location.DefaultTable()
	enricher := pipeline.NewEnricher(
		location.NewNormalizer(table, location.DefaultRules()),
		location.NewClassifier(table),
		domain.NewResolver(locator, logger),
		logger,
	)

	sinks := []pipeline.Sink{export.NewFileSink(cfg.Export.Path, logger)}
	if cfg.Kafka.Enabled() {
		writer := kafkaadapter.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
		logger.Info("kafka sink enabled", "topic", cfg.Kafka.Topic)
	}

	var dumper pipeline.MemberDumper
	if cfg.Export.MembersDump != "" {
		dumper = export.MemberDump{Path: cfg.Export.MembersDump}
	}

	p := pipeline.New(source, enricher, sinks, cache, dumper, pipeline.Options{
		Fast:           opts.fast,
		ThinPercent:    cfg.Cache.ThinPercent,
		ThinNamespaces: cfg.Cache.ThinNamespaces,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTP.Addr == "" {
		return p.Run(ctx)
	}
	return runWithServer(ctx, p, cfg, logger)
}

// runWithServer runs the batch while serving health, status and metrics. The
// server is shut down once the batch ends.
func runWithServer(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger) error {
	srv := httpadapter.NewServer(cfg.HTTP.Addr, p, logger)

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer close(done)
		return p.Run(ctx)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func memberSource(cfg *config.Config, membersFile string, cache forum.Cache, metrics *observability.Metrics, logger *slog.Logger) (pipeline.MemberSource, error) {
	if membersFile != "" {
		if _, err := os.Stat(membersFile); err != nil {
			return nil, fmt.Errorf("members file: %w", err)
		}
		logger.Info("reading members from file", "path", membersFile)
		return forum.MemberFile{Path: membersFile}, nil
	}

	if err := cfg.RequireForumCredentials(); err != nil {
		return nil, err
	}
	return forum.NewClient(forum.Options{
		BaseURL:           cfg.Forum.BaseURL,
		Username:          cfg.Forum.Username,
		Password:          cfg.Forum.Password,
		Timeout:           cfg.Forum.Timeout,
		RequestsPerSecond: cfg.Forum.RequestsPerSecond,
	}, cache, metrics, logger)
}

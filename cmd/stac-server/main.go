package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/cache/redisstore"
	"github.com/mohammed-shakir/geodata-search/internal/core/config"
	"github.com/mohammed-shakir/geodata-search/internal/core/executor"
	"github.com/mohammed-shakir/geodata-search/internal/core/health"
	"github.com/mohammed-shakir/geodata-search/internal/core/httpclient"
	"github.com/mohammed-shakir/geodata-search/internal/core/observability"
	"github.com/mohammed-shakir/geodata-search/internal/core/server"
	"github.com/mohammed-shakir/geodata-search/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/geodata-search/internal/logger"
	"github.com/mohammed-shakir/geodata-search/internal/metrics"
	"github.com/mohammed-shakir/geodata-search/internal/resolveevents"
	"github.com/mohammed-shakir/geodata-search/internal/snapshot"
	"github.com/mohammed-shakir/geodata-search/internal/stac"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// overriding provider via flag
	providerFlag := flag.String("provider", "", "default STAC provider ("+strings.Join(stac.Providers(), ", ")+")")
	flag.Parse()

	cfg := config.FromEnv()
	if *providerFlag != "" {
		cfg.Provider = strings.TrimSpace(*providerFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Provider:  cfg.Provider,
		Component: "stac-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting stac-server",
		"addr", cfg.Addr,
		"version", Version,
		"provider", cfg.Provider,
		"snapshots", cfg.Snapshot.Enabled,
		"events", cfg.Events.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mp := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if err := observability.Init(mp.Registerer()); err != nil {
		appLog.Error("metrics registration failed", "err", err)
		return 1
	}
	go func() {
		if err := mp.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server exited", "err", err)
		}
	}()

	httpClient := httpclient.NewOutbound(cfg.UpstreamTimeout)

	dial := func(name string) (*stac.Client, error) {
		url := ""
		if strings.EqualFold(name, cfg.Provider) {
			url = cfg.ProviderURL
		}
		p, err := stac.ResolveProvider(name, url, appLog)
		if err != nil {
			return nil, err
		}
		opts := []stac.Option{
			stac.WithHTTPClient(httpClient),
			stac.WithLogger(appLog),
			stac.WithCollectionValidation(cfg.ValidateCollections),
			stac.WithCollectionCacheSize(cfg.CollectionCacheSize),
			stac.WithChunking(stac.ChunkConfig{
				Window:      cfg.Chunk.Window,
				MaxDepth:    cfg.Chunk.MaxDepth,
				H3Res:       cfg.Chunk.H3Res,
				PageLimit:   stac.MaxLimit,
				Concurrency: cfg.Chunk.Concurrency,
			}),
		}
		if cfg.PaginateMaxPages > 0 {
			opts = append(opts, stac.WithMaxPages(cfg.PaginateMaxPages))
		}
		return stac.New(p, opts...)
	}

	deps := server.Deps{Metrics: mp, Ready: map[string]health.Checker{}}
	execOpts := []executor.Option{
		executor.WithVerbose(cfg.Verbose),
		executor.WithDefaults(cfg.PageSize, cfg.MaxItems),
	}

	if cfg.Snapshot.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		rc, err := redisstore.New(pingCtx, cfg.Snapshot.RedisAddr)
		cancel()
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.Snapshot.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()

		store := snapshot.New(rc, cfg.Snapshot.TTL,
			snapshot.WithLogger(appLog),
			snapshot.WithOpTimeout(cfg.Snapshot.OpTimeout),
		)
		execOpts = append(execOpts, executor.WithSnapshots(store))
		deps.Snapshots = store
		deps.Ready["redis"] = rc.Ping

		if cfg.Invalidation.Enabled {
			cons := kafkaconsumer.New(
				kafkaconsumer.DefaultConfig(cfg.Events.BrokerList(), cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
				appLog, store,
			)
			go func() {
				if err := cons.Start(ctx); err != nil {
					appLog.Error("invalidation consumer stopped", "err", err)
				}
			}()
		}
	}

	if cfg.Events.Enabled {
		pub, err := resolveevents.NewPublisher(cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("kafka publisher setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("kafka publisher close", "err", err)
			}
		}()
		execOpts = append(execOpts, executor.WithEvents(pub))
	}

	deps.Search = executor.New(appLog, cfg.Provider, dial, execOpts...)

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"dev.helix.gateway/internal/admin"
	"dev.helix.gateway/internal/auth"
	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/connectors"
	"dev.helix.gateway/internal/connectors/cohere"
	"dev.helix.gateway/internal/connectors/openai"
	"dev.helix.gateway/internal/database"
	"dev.helix.gateway/internal/grpcserver"
	"dev.helix.gateway/internal/middleware"
	"dev.helix.gateway/internal/promptconfig"
	"dev.helix.gateway/internal/registry"
	"dev.helix.gateway/internal/service"
	"dev.helix.gateway/internal/streaming"
	"dev.helix.gateway/internal/usage"
	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
)

const (
	rateLimitEvictionInterval = time.Minute
	usageCleanupInterval      = time.Hour
)

// app holds every long-lived component of the gateway process.
type app struct {
	cfg *config.Config
	log *logrus.Logger

	db         *database.PostgresDB
	cache      *promptconfig.Cache
	fileStore  *promptconfig.FileRepository
	recorder   usage.Recorder
	pgRecorder *usage.PostgresRecorder
	limiter    *middleware.RateLimiter
	grpc       *grpcserver.Server
	admin      *admin.Server
	registry   *registry.EtcdRegistry
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.PromptStore.Backend == "postgres" || cfg.Usage.Postgres {
		db, err := database.NewPostgresDB(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		a.db = db

		if cfg.Database.RunMigrations {
			if err := database.RunMigration(ctx, db.Pool(), database.Migrations, log); err != nil {
				a.close()
				return nil, err
			}
		}
	}

	store, err := a.buildPromptStore()
	if err != nil {
		a.close()
		return nil, err
	}

	// A cache that could not reach redis is disabled, lookups go straight to the store.
	a.cache, _ = promptconfig.NewCache(cfg.Redis, log)
	repo := promptconfig.NewCachedRepository(store, a.cache, cfg.Redis.CacheTTL)

	if a.fileStore != nil && cfg.PromptStore.Watch {
		if err := a.fileStore.Watch(cfg.PromptStore.Debounce, func(previous map[string][]string) {
			invalidateFileStore(previous, a.fileStore, repo, log)
		}); err != nil {
			a.close()
			return nil, err
		}
	}

	recorder, err := a.buildRecorder()
	if err != nil {
		a.close()
		return nil, err
	}
	a.recorder = recorder

	streamConfig, err := streaming.FromConfig(cfg.Streaming)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid streaming configuration: %w", err)
	}

	svc := service.New(
		repo,
		buildConnectors(cfg.Providers, log),
		a.recorder,
		streaming.NewStreamer(streamConfig, log),
		log,
	)

	opts, err := a.serverOptions(reg)
	if err != nil {
		a.close()
		return nil, err
	}
	opts.ServiceRegistrars = []grpcserver.ServiceRegistrar{
		func(s grpc.ServiceRegistrar) {
			gatewayv1.RegisterAPIGatewayServiceServer(s, svc)
		},
	}

	a.grpc, err = grpcserver.New(opts, log)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Admin.Enabled {
		a.admin = a.buildAdmin(reg)
	}

	if cfg.Registry.Enabled {
		a.registry, err = registry.New(registry.Config{
			Endpoints:   cfg.Registry.Endpoints,
			DialTimeout: cfg.Registry.DialTimeout,
			TTL:         cfg.Registry.TTL,
		}, log)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) buildPromptStore() (promptconfig.Repository, error) {
	switch a.cfg.PromptStore.Backend {
	case "file":
		store, err := promptconfig.NewFileRepository(a.cfg.PromptStore.FilePath, a.log)
		if err != nil {
			return nil, err
		}
		a.fileStore = store
		return store, nil
	case "postgres":
		if a.db == nil {
			return nil, errors.New("postgres prompt store requires a database connection")
		}
		return promptconfig.NewPostgresRepository(a.db.Pool(), a.log), nil
	default:
		return nil, fmt.Errorf("unknown prompt store backend %q", a.cfg.PromptStore.Backend)
	}
}

// invalidateFileStore drops every cached config named before or after the
// reload, so removed configs stop resolving too.
func invalidateFileStore(previous map[string][]string, store *promptconfig.FileRepository, repo *promptconfig.CachedRepository, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repo.InvalidateIndex(ctx, previous, store.Index()); err != nil {
		log.WithError(err).Warn("Failed to invalidate cached prompt configs")
	}
}

func buildConnectors(providers config.ProvidersConfig, log *logrus.Logger) *connectors.Registry {
	registry := connectors.NewRegistry()
	for vendor, provider := range providers {
		switch provider.ConnectorType(vendor) {
		case "cohere":
			registry.Register(vendor, cohere.New(provider, log))
		default:
			registry.Register(vendor, openai.New(provider, log))
		}
	}
	log.WithField("vendors", registry.Vendors()).Info("Registered provider connectors")
	return registry
}

func (a *app) buildRecorder() (usage.Recorder, error) {
	cfg := a.cfg.Usage
	var recorders []usage.Recorder

	if cfg.Postgres && a.db != nil {
		policy := usage.DefaultRetentionPolicy()
		if cfg.RetentionDays > 0 {
			policy.RetentionDays = cfg.RetentionDays
		} else if cfg.RetentionDays < 0 {
			policy = usage.NoExpirationPolicy()
		}
		a.pgRecorder = usage.NewPostgresRecorder(a.db.Pool(), a.log, policy)
		recorders = append(recorders, a.pgRecorder)
	}

	if len(cfg.KafkaBrokers) > 0 {
		recorders = append(recorders, usage.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.PublishTimeout, a.log))
	}

	if cfg.AMQPURL != "" {
		publisher, err := usage.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.PublishTimeout, a.log)
		if err != nil {
			for _, r := range recorders {
				_ = r.Close()
			}
			return nil, err
		}
		recorders = append(recorders, publisher)
	}

	if len(recorders) == 0 {
		return usage.NopRecorder{}, nil
	}
	return usage.NewMultiRecorder(recorders...), nil
}

func (a *app) serverOptions(reg prometheus.Registerer) (grpcserver.Options, error) {
	cfg := a.cfg
	opts := grpcserver.Options{
		Environment:      cfg.Environment,
		ServiceName:      cfg.ServiceName,
		EnableReflection: cfg.Server.EnableReflection,
		TLSCertFile:      cfg.Server.TLSCertFile,
		TLSKeyFile:       cfg.Server.TLSKeyFile,
		MaxRecvMsgSize:   cfg.Server.MaxRecvMsgSize,
		Metrics:          middleware.NewMetrics(reg),
	}

	var issuer *auth.TokenIssuer
	if !cfg.Auth.Disabled {
		var err error
		issuer, err = auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return opts, fmt.Errorf("failed to create token issuer: %w", err)
		}
	} else {
		a.log.Warn("Authentication disabled, trusting the x-application-id header")
	}
	opts.Authenticator = middleware.NewAuthenticator(issuer, a.log)

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		}, a.log)
		opts.RateLimiter = a.limiter
	}

	return opts, nil
}

func (a *app) buildAdmin(reg prometheus.Registerer) *admin.Server {
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	srv := admin.New(admin.Config{
		Address:  a.cfg.Admin.Address(),
		Version:  version,
		Gatherer: gatherer,
	}, a.log)

	if a.db != nil {
		srv.AddCheck("database", a.db.HealthCheck)
	}
	if a.cache != nil && a.cache.IsEnabled() {
		srv.AddCheck("redis", a.cache.Ping)
	}
	srv.SetInfo(a.grpc.Info)
	if a.pgRecorder != nil {
		srv.SetUsageSummarizer(a.pgRecorder)
	}
	return srv
}

// Run serves until ctx is cancelled or a server fails, then shuts down.
func (a *app) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.Server.Address())
	if err != nil {
		a.close()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Address(), err)
	}
	return a.serve(ctx, lis)
}

func (a *app) serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- a.grpc.Serve(lis)
	}()
	if a.admin != nil {
		go func() {
			if err := a.admin.Start(); err != nil {
				errCh <- fmt.Errorf("admin server failed: %w", err)
			}
		}()
	}

	if a.limiter != nil {
		a.limiter.StartEvictionWorker(ctx, rateLimitEvictionInterval)
	}
	if a.pgRecorder != nil {
		a.pgRecorder.StartCleanupWorker(ctx, usageCleanupInterval)
	}

	if a.registry != nil {
		address := a.cfg.Server.AdvertiseAddress
		if address == "" {
			address = lis.Addr().String()
		}
		if _, err := a.registry.Register(ctx, registry.Instance{
			Name:    a.cfg.ServiceName,
			Address: address,
			Version: version,
		}); err != nil {
			a.log.WithError(err).Warn("Failed to register with etcd")
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")
	case runErr = <-errCh:
		a.log.WithError(runErr).Error("Server failed")
	}

	a.shutdown()
	return runErr
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Leave discovery first so no new clients arrive while draining.
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close registry")
		}
		a.registry = nil
	}

	a.grpc.Shutdown(ctx)

	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("Failed to shut down admin server")
		}
	}

	a.close()
}

// close releases stores and sinks. It is safe on a partially built app.
func (a *app) close() {
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close registry")
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close usage recorders")
		}
	}
	if a.fileStore != nil {
		if err := a.fileStore.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close prompt config watcher")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Debug("Failed to close redis client")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

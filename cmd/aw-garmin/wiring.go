package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndreyKarmanov/aw-garmin/internal/config"
	"github.com/AndreyKarmanov/aw-garmin/internal/sink/activitywatch"
	kafkasink "github.com/AndreyKarmanov/aw-garmin/internal/sink/kafka"
	pgsink "github.com/AndreyKarmanov/aw-garmin/internal/sink/postgres"
	"github.com/AndreyKarmanov/aw-garmin/internal/source/fixture"
	"github.com/AndreyKarmanov/aw-garmin/internal/source/garmin"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
	"github.com/AndreyKarmanov/aw-garmin/internal/watermark"
)

// app holds the collaborators selected by configuration.
type app struct {
	orchestrator *syncer.Orchestrator
	store        watermark.Store
	closers      []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newStore builds only the watermark store. The status command needs nothing else.
func newStore(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	var pool *pgxpool.Pool
	if cfg.StateBackend == config.StatePostgres {
		var err error
		if pool, err = a.postgres(ctx, cfg); err != nil {
			return nil, err
		}
	}
	store, err := buildStore(ctx, cfg, pool)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	return a, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	a := &app{}
	var pool *pgxpool.Pool
	if cfg.StateBackend == config.StatePostgres || cfg.Sink == config.SinkPostgres {
		var err error
		if pool, err = a.postgres(ctx, cfg); err != nil {
			return nil, err
		}
	}

	store, err := buildStore(ctx, cfg, pool)
	if err != nil {
		a.Close()
		return nil, err
	}
	sink, err := a.buildSink(ctx, cfg, pool)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store = store
	a.orchestrator = syncer.New(buildSource(cfg), sink, store,
		syncer.WithBucket(cfg.BucketName, cfg.BucketCategory),
	)
	return a, nil
}

func (a *app) postgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	return pool, nil
}

func buildSource(cfg config.Config) syncer.Source {
	if cfg.Source == config.SourceFixture {
		return fixture.New(cfg.FixtureDir)
	}
	return garmin.New(
		garmin.Credentials{Email: cfg.GarminEmail, Password: cfg.GarminPassword},
		cfg.GarminBaseURL,
		cfg.GarminAuthURL,
		garmin.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		garmin.WithRateLimit(cfg.GarminRateLimit),
	)
}

func (a *app) buildSink(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (syncer.Sink, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		producer := kafkasink.NewProducer(cfg.KafkaBrokers)
		a.closers = append(a.closers, func() { _ = producer.Close() })
		opts := []kafkasink.Option{kafkasink.WithTopicPrefix(cfg.KafkaTopicPrefix)}
		if cfg.SchemaRegistryURL != "" {
			opts = append(opts, kafkasink.WithSchemaRegistry(kafkasink.NewSchemaRegistryClient(cfg.SchemaRegistryURL)))
		}
		return kafkasink.New(producer, kafkasink.NewTopicAdmin(cfg.KafkaBrokers), opts...), nil
	case config.SinkPostgres:
		repo := pgsink.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("create event tables: %w", err)
		}
		return repo, nil
	default:
		return activitywatch.New(cfg.AWHost, cfg.AWPort, cfg.AWClientName,
			activitywatch.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		), nil
	}
}

func buildStore(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (watermark.Store, error) {
	if cfg.StateBackend == config.StatePostgres {
		store := watermark.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("create watermark table: %w", err)
		}
		return store, nil
	}
	return watermark.NewFileStore(cfg.StateFile), nil
}

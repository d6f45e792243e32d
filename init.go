package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/carrierbridge/internal/config"
	"github.com/tournevent/carrierbridge/internal/credentials"
	"github.com/tournevent/carrierbridge/internal/telemetry"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/colissimo"
	"github.com/tournevent/carrierbridge/pkg/shipper/laposte"
	"github.com/tournevent/carrierbridge/pkg/shipper/mondialrelay"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	return shutdown, err
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger) *shipper.Registry {
	registry := shipper.NewRegistry()

	// Falls back to a no-op tracer until InitTracer installs a provider.
	var tracer trace.Tracer = otel.Tracer(cfg.ServiceName)

	// Register enabled carriers
	if cfg.ColissimoEnabled {
		registry.Register(colissimo.New(colissimo.Config{
			BaseURL: cfg.ColissimoBaseURL,
			Timeout: cfg.CallTimeout,
			UseMock: cfg.ColissimoUseMock,
		}, logger, tracer))
	}

	if cfg.MondialRelayEnabled {
		registry.Register(mondialrelay.New(mondialrelay.Config{
			Endpoint:     cfg.MondialRelayEndpoint,
			LabelBaseURL: cfg.MondialRelayLabelBaseURL,
			Timeout:      cfg.CallTimeout,
			UseMock:      cfg.MondialRelayUseMock,
		}, logger, tracer))
	}

	if cfg.LaPosteEnabled {
		registry.Register(laposte.New(laposte.Config{
			BaseURL: cfg.LaPosteBaseURL,
			Timeout: cfg.CallTimeout,
			UseMock: cfg.LaPosteUseMock,
		}, logger, tracer))
	}

	return registry
}

// initResolver reads credentials from the site configuration in Redis when
// configured, then from the environment. The returned function closes the
// Redis connection.
func initResolver(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (shipper.CredentialResolver, func(), error) {
	env := credentials.NewStatic(cfg.Credentials())
	if cfg.RedisURL == "" {
		return env, func() {}, nil
	}

	client, err := credentials.Connect(ctx, credentials.RedisConfig{URL: cfg.RedisURL})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close redis", zap.Error(err))
		}
	}

	site := credentials.NewRedis(client, credentials.RedisConfig{
		Prefix: cfg.RedisPrefix,
		Key:    cfg.RedisConfigKey,
	})
	return credentials.Chain{site, env}, closeFn, nil
}

// app bundles what every command needs.
type app struct {
	cfg        *config.Config
	logger     *otelzap.Logger
	dispatcher *shipper.Dispatcher
	close      func()
}

func newApp(ctx context.Context, metrics shipper.Recorder) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	resolver, closeResolver, err := initResolver(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	registry := initShipperRegistry(cfg, logger)
	if registry.Count() == 0 {
		closeResolver()
		_ = logger.Sync()
		return nil, errors.New("no carrier enabled")
	}

	dispatcher := shipper.NewDispatcher(shipper.DispatcherConfig{Timeout: cfg.CallTimeout},
		registry, resolver, logger, metrics)

	return &app{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		close: func() {
			closeResolver()
			_ = logger.Sync()
		},
	}, nil
}

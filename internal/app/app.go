package app

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/internal/adapter/apiclient"
	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/adapter/render"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/sr"
)

const (
	connectAttempts = 5
	connectDelay    = 2 * time.Second
)

type App struct {
	ctx        context.Context
	cfg        config.Config
	sessions   port.SessionStorage
	purger     func(context.Context)
	producer   port.ClientEventsProducer
	service    port.Storefront
	httpServer httphandler.HTTPServer
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initSessionStorage()
	app.initProducer()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	level, err := app.cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initSessionStorage() {
	const op = "App.initSessionStorage"
	scfg := app.cfg.Session

	switch scfg.Backend {
	case config.BackendMemory:
		app.sessions = storage.NewMemoryStorage(scfg.TTL)
	case config.BackendRedis:
		var client *redis.Client
		err := connect(app.ctx, connectAttempts, connectDelay, func() (err error) {
			client, err = storage.NewRedisClient(
				app.ctx, storage.RedisConfig{URL: scfg.RedisURL},
			)
			return err
		})
		if err != nil {
			app.fallDown(op, err)
		}
		app.sessions = storage.NewRedisStorage(client, scfg.TTL)
	case config.BackendPostgres:
		var db *sql.DB
		err := connect(app.ctx, connectAttempts, connectDelay, func() (err error) {
			db, err = storage.OpenSQLDB(app.ctx, scfg.SQLDB)
			return err
		})
		if err != nil {
			app.fallDown(op, err)
		}
		s := storage.NewSQLStorage(db, scfg.TTL)
		app.sessions = s
		app.purger = func(ctx context.Context) {
			s.RunPurger(ctx, scfg.PurgeInterval)
		}
	default:
		app.fallDown(op, fmt.Errorf("unknown session backend %q", scfg.Backend))
	}
	slog.Info("session storage is ready", "op", op, "backend", scfg.Backend)
}

// initProducer falls back to a no-op producer when no brokers are
// configured.
func (app *App) initProducer() {
	const op = "App.initProducer"
	bcfg := app.cfg.Broker

	if len(bcfg.SeedBrokers) == 0 {
		slog.Info("client events are disabled", "op", op)
		app.producer = kafka.NopProducer{}
		return
	}

	srClient, err := sr.NewClient(sr.URLs(bcfg.SchemaRegistryURLs...))
	if err != nil {
		app.fallDown(op, err)
	}

	serde, err := schema.NewSerdeClientEventV1(
		app.ctx,
		schema.SubjectOpt(bcfg.ClientEventsTopic+"-value"),
		schema.SchemaIdentifierOpt(schema.NewRegistryIdentifier(srClient)),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	var tlsConfig *tls.Config
	if bcfg.TLS.Enabled() {
		tlsConfig, err = adapter.MakeTLSConfig(
			bcfg.TLS.CA, bcfg.TLS.Cert, bcfg.TLS.Key,
		)
		if err != nil {
			app.fallDown(op, err)
		}
	}

	producer, err := kafka.NewClientEventsProducer(
		kafka.ProducerClientOpt(app.ctx, kafka.ClientConfig{
			SeedBrokers: bcfg.SeedBrokers,
			Topic:       bcfg.ClientEventsTopic,
			TLS:         tlsConfig,
		}),
		kafka.ProducerEncoderOpt(serde),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.producer = producer
}

func (app *App) initCoreService() {
	const op = "App.initCoreService"
	ucfg := app.cfg.Upstream

	api, err := apiclient.New(apiclient.Config{
		BaseURL:      ucfg.BaseURL,
		ProductsPath: ucfg.ProductsPath,
		Timeout:      ucfg.Timeout,
		ReadAttempts: ucfg.ReadAttempts,
		Breaker: apiclient.BreakerConfig{
			Enabled:     ucfg.Breaker.Enabled,
			MaxFailures: ucfg.Breaker.MaxFailures,
			OpenTimeout: ucfg.Breaker.OpenTimeout,
		},
	})
	if err != nil {
		app.fallDown(op, err)
	}
	app.service = service.New(api, app.producer)
}

func (app *App) initInboundAdapters() {
	const op = "App.initInboundAdapters"

	renderer, err := render.New(app.cfg.HTMXSrc)
	if err != nil {
		app.fallDown(op, err)
	}
	catalog := render.NewCatalog(app.cfg.DefaultLocale)

	router := httphandler.NewRouter(
		httphandler.NewHandler(app.service, renderer, catalog),
		httphandler.NewSessions(app.sessions, catalog, httphandler.SessionConfig{
			CookieName: app.cfg.Session.CookieName,
			Secure:     app.cfg.Session.CookieSecure,
		}),
	)
	app.httpServer = httphandler.NewHTTPServer(
		app.cfg.HTTPServerAddr, router, app.cfg.HTTPHandlerTimeout,
	)
}

func (app *App) Run(stopFn context.CancelFunc) {
	go app.httpServer.Run(stopFn)
	if app.purger != nil {
		go app.purger(app.ctx)
	}

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.producer.Close()
	app.sessions.Close()

	slog.Info("application is closed")
}

// connect retries fn at a fixed pace while a backing service is still
// starting up.
func connect(
	ctx context.Context, attempts int, delay time.Duration, fn func() error,
) error {
	const op = "app.connect"

	return retry.Do(ctx, retry.RetryConfig{
		MaxAttempts: attempts,
		Backoff:     retry.LinearBackoff(delay),
		ShouldRetry: func(err error) bool {
			slog.Warn("backing service is unavailable, retrying", "op", op, "err", err)
			return true
		},
	}, fn)
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}

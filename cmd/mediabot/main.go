package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/adapters/ffmpeg"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/adapters/gallerydl"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/adapters/ytdlp"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/cache"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/classify"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/egress"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/opsserver"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/orchestrator"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/progress"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/sizing"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/transport"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/transport/botapi"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/workdir"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/worker"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore/memory"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore/s3store"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore/sqlstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/queue"
)

func main() {
	envFile := pflag.String("env-file", "", "extra .env file loaded after the standard ones")
	httpAddr := pflag.String("http-addr", "", "ops HTTP listen address (overrides HTTP_ADDR, \"off\" disables)")
	pflag.Parse()

	cfg := loadConfiguration(*envFile)
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := initializeDependencies(ctx, cfg)
	defer deps.close()

	app := buildApplication(cfg, deps)

	if err := startApplication(ctx, cfg, app); err != nil {
		app.logger.Error(ctx, "Application stopped with error", err, nil)
		deps.close()
		os.Exit(1)
	}
	app.logger.Info(ctx, "Application stopped", nil)
}

// Dependencies holds all initialized infrastructure components
type Dependencies struct {
	provider  observability.Provider
	store     kvstore.Store
	transport *transport.Guard
	hub       *progress.Hub
	closed    bool
}

func (d *Dependencies) close() {
	if d.closed {
		return
	}
	d.closed = true
	d.hub.Close()
	if err := d.store.Close(); err != nil {
		log.Printf("failed to close store: %v", err)
	}
	d.provider.Close()
}

// Application holds the complete application stack
type Application struct {
	dispatcher handler.Dispatcher
	cache      *cache.Cache
	provider   observability.Provider
	logger     observability.Logger
}

// loadConfiguration loads and validates the application configuration
func loadConfiguration(envFile string) *config.Config {
	cfgProvider := config.GetProvider()
	if envFile != "" {
		cfgProvider.SetEnvFile(envFile)
	}
	cfgProvider.MustLoad()
	return cfgProvider.MustGet()
}

// initializeDependencies sets up all infrastructure dependencies
func initializeDependencies(ctx context.Context, cfg *config.Config) *Dependencies {
	provider := observability.NewProvider(&observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		AdditionalFields: observability.Fields{
			"version": cfg.Version,
		},
		Secrets: secretsOf(cfg),
	})

	logStartup(ctx, cfg, provider)

	store := initializeStore(ctx, cfg, provider)
	guard := initializeTransport(ctx, cfg, store, provider)

	return &Dependencies{
		provider:  provider,
		store:     store,
		transport: guard,
		hub:       progress.NewHub(guard, provider.Logger("progress")),
	}
}

// secretsOf collects the configured values that must never reach a log line
func secretsOf(cfg *config.Config) []string {
	secrets := []string{
		cfg.Transport.Token,
		cfg.Store.Postgres.Password,
		cfg.Store.S3.SecretAccessKey,
	}
	proxies := append([]string(nil), cfg.Egress.Proxies...)
	for _, raw := range cfg.Egress.StaticProxies {
		proxies = append(proxies, raw)
	}
	for _, raw := range proxies {
		if u, err := url.Parse(raw); err == nil && u.User != nil {
			if pw, ok := u.User.Password(); ok {
				secrets = append(secrets, pw)
			}
		}
	}
	return secrets
}

// logStartup logs application startup information
func logStartup(ctx context.Context, cfg *config.Config, provider observability.Provider) {
	provider.Logger("main").Info(ctx, "Starting application", observability.Fields{
		"service":     cfg.ServiceName,
		"version":     cfg.Version,
		"environment": cfg.Environment,
		"store":       cfg.Store.Provider,
		"queue":       cfg.Queue.Provider,
	})
}

// initializeStore opens the key-value store behind the cache and the
// flood-wait record
func initializeStore(ctx context.Context, cfg *config.Config, provider observability.Provider) kvstore.Store {
	logger, metrics := provider.Logger("store"), provider.Metrics("store")

	var (
		store kvstore.Store
		err   error
	)
	switch cfg.Store.Provider {
	case "memory":
		store = memory.New()
	case "sqlite":
		store, err = sqlstore.OpenSQLite(ctx, cfg.Store.SQLitePath, cfg.Store.Table, logger, metrics)
	case "postgres":
		store, err = sqlstore.OpenPostgres(ctx, cfg.Store.Postgres, cfg.Store.Table, logger, metrics)
	case "s3":
		store, err = s3store.Open(ctx, cfg.Store.S3, logger, metrics)
	default:
		err = fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
	if err != nil {
		logger.Error(ctx, "Failed to initialize store", err, nil)
		log.Fatalf("Failed to initialize store: %v", err)
	}

	logger.Info(ctx, "Store initialized successfully", observability.Fields{"provider": cfg.Store.Provider})
	return store
}

// initializeTransport builds the Bot API client behind the flood-wait guard
// and restores a wait persisted by a previous run
func initializeTransport(ctx context.Context, cfg *config.Config, store kvstore.Store, provider observability.Provider) *transport.Guard {
	client := botapi.New(cfg.Transport, nil, provider.Logger("transport.botapi"), provider.Metrics("transport.botapi"))
	guard := transport.NewGuard(client, store, cfg.Transport, provider.Logger("transport"), provider.Metrics("transport"))

	if err := guard.Restore(ctx); err != nil {
		provider.Logger("transport").Warn(ctx, "Failed to restore flood wait", observability.Fields{"error": err.Error()})
	}
	return guard
}

// buildApplication assembles the application layers
func buildApplication(cfg *config.Config, deps *Dependencies) *Application {
	provider := deps.provider

	workdirs, err := workdir.New(cfg.Workdir, provider.Logger("workdir"))
	if err != nil {
		log.Fatalf("Failed to initialize workdir manager: %v", err)
	}

	mediaCache := cache.New(deps.store, provider.Logger("cache"), provider.Metrics("cache"))

	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Engine:     ytdlp.New(cfg.Engine, provider.Logger("engine.ytdlp"), provider.Metrics("engine.ytdlp")),
		Fallback:   gallerydl.New(cfg.Engine, provider.Logger("engine.gallerydl"), provider.Metrics("engine.gallerydl")),
		Transport:  deps.transport,
		Classifier: classify.New(cfg.Classifier),
		Media:      ffmpeg.New(cfg.Engine),
		Cache:      mediaCache,
		Selector:   egress.NewSelector(cfg.Egress),
		Estimator:  sizing.NewEstimator(sizing.HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}),
		Workdirs:   workdirs,
		Hub:        deps.hub,
		FormatFor:  ytdlp.FormatFor,
		Logger:     provider.Logger("orchestrator"),
		Metrics:    provider.Metrics("orchestrator"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}

	taskWorker := worker.NewTaskWorker(orch, cfg.Queue.Concurrency,
		provider.Logger("worker"), provider.Metrics("worker"),
		toolCheck("yt-dlp", cfg.Engine.YtDlpPath),
		toolCheck("gallery-dl", cfg.Engine.GalleryDlPath),
		toolCheck("ffmpeg", cfg.Engine.FFmpegPath),
		toolCheck("ffprobe", cfg.Engine.FFprobePath),
	)

	return &Application{
		dispatcher: handler.NewFactory(taskWorker, provider).Create(),
		cache:      mediaCache,
		provider:   provider,
		logger:     provider.Logger("main"),
	}
}

func toolCheck(name, path string) worker.Check {
	return worker.Check{
		Name: name,
		Probe: func(context.Context) error {
			_, err := exec.LookPath(path)
			return err
		},
	}
}

// startApplication runs the intake queue and the ops server until ctx is
// cancelled or one of them fails
func startApplication(ctx context.Context, cfg *config.Config, app *Application) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	running := 0

	consumer, err := queue.Open(ctx, cfg.Queue, app.dispatcher, app.provider)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	if consumer != nil {
		defer consumer.Close()
		running++
		go func() { errCh <- consumer.Run(ctx) }()
	}

	if cfg.HTTP.Addr != "" && cfg.HTTP.Addr != "off" {
		server := opsserver.New(cfg.HTTP, app.dispatcher, app.cache,
			app.provider.Logger("opsserver"), app.provider.Metrics("opsserver"))
		running++
		go func() { errCh <- server.Run(ctx) }()
	}

	if running == 0 {
		return errors.New("nothing to run: set QUEUE_PROVIDER or HTTP_ADDR")
	}

	app.logger.Info(ctx, "Application started", observability.Fields{"queue": cfg.Queue.Provider, "http": cfg.HTTP.Addr})

	// the first component to stop stops the others
	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	return firstErr
}

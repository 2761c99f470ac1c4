// Package server initializes and runs the application: configuration,
// logging, storage backends, the authentication stack, and the HTTP
// server, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/lettera/lettera/internal/dbx"
	"github.com/lettera/lettera/internal/email"
	"github.com/lettera/lettera/internal/logging"
	"github.com/lettera/lettera/internal/server/auth"
	"github.com/lettera/lettera/internal/server/config"
	"github.com/lettera/lettera/internal/server/httpapi"
	"github.com/lettera/lettera/internal/server/newsletters"
	"github.com/lettera/lettera/internal/server/sessions"
	db "github.com/lettera/lettera/internal/server/shared/db"
	"github.com/lettera/lettera/internal/server/subscriptions"
	"github.com/lettera/lettera/internal/server/users"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	manager    db.RepositoryManager
	hasher     *auth.Hasher
	httpServer *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout)

	manager, err := db.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store := sessions.NewRedisStore(redisClient)

	codec, err := auth.NewTokenCodec([]byte(cfg.HMACKey), cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("token codec init error: %w", err)
	}

	hasher := auth.NewHasher(cfg.HashWorkers)
	authenticator := auth.NewAuthenticator(codec, store)

	mailer, err := buildMailer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("email init error: %w", err)
	}

	us := users.NewService(manager.Users(), hasher, codec, store, cfg.SessionTTL)
	ss := subscriptions.NewService(manager.Conn(),
		func(tx dbx.DBTX) subscriptions.Repository { return manager.Subscriptions(tx) },
		mailer, cfg.BaseURL)
	ns := newsletters.NewService(ss, mailer, logger)

	httpServer := httpapi.NewServer(
		cfg.EndpointAddrHTTP, logger, authenticator,
		us, ss, ns,
		cfg.SessionTTL, cfg.CookieSecure,
	)

	return &App{
		config:     cfg,
		logger:     logger,
		manager:    manager,
		hasher:     hasher,
		httpServer: httpServer,
	}, nil
}

func buildMailer(cfg *config.Config, logger logging.Logger) (email.Client, error) {
	switch cfg.EmailProvider {
	case "mailgun":
		return email.NewMailgunClient(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.EmailSender, cfg.EmailTimeout)
	case "log", "":
		return email.NewLogClient(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "HTTP server error", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	app.hasher.Close()
	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"procurement/internal/auth"
	"procurement/internal/config"
	"procurement/internal/controller"
	"procurement/internal/logging"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/internal/router"
	"procurement/internal/service"
	"procurement/internal/sla"
	"procurement/internal/token"

	redisdb "procurement/internal/repository/db"
)

type App struct {
	repo       *repository.Repository
	redis      *redis.Client
	sender     notify.Sender
	service    *service.Service
	auth       *auth.Authenticator
	controller *controller.Controller
	stopSig    chan os.Signal
	cfg        *config.Config
	log        *logrus.Logger

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

// WithSender replaces the configured mail transport.
func WithSender(sender notify.Sender) option {
	return func(app *App) {
		app.sender = sender
	}
}

func NewApp(opts ...option) (*App, error) {
	var err error

	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
		log:     logging.GetLogger(),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return nil, err
		}
		app.cfg = cfg
	}
	logging.Setup(app.cfg.LogLevel)

	codec, err := NewCodec(app.cfg)
	if err != nil {
		return nil, fmt.Errorf("app.NewApp: %w", err)
	}

	app.repo, err = repository.NewRepository(nil, &app.cfg.PostgresConfig)
	if err != nil {
		return nil, err
	}

	svcOpts := service.Options{
		Sender:  app.sender,
		Codec:   codec,
		BaseURL: app.cfg.BaseURL,
		Log:     app.log,
	}
	if svcOpts.Sender == nil {
		svcOpts.Sender = notify.NewSender(app.cfg.SMTPConfig, app.log)
	}

	if app.cfg.RedisConfig.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.redis, err = redisdb.NewRedisClient(ctx, app.cfg.RedisConfig)
		if err != nil {
			app.repo.Close()
			return nil, fmt.Errorf("app.NewApp: %w", err)
		}
		svcOpts.Guard = token.NewRedisGuard(app.redis)
		svcOpts.Queue = sla.NewRedisQueue(app.redis)
	} else {
		app.log.Info("Redis is not configured, SLA checks scan the database and approval links are not single-use")
	}

	app.service = service.NewService(service.NewRepositoryStore(app.repo), svcOpts)
	app.auth = auth.NewAuthenticator(app.cfg.JWTSecret)
	app.controller = controller.NewController(app.service, app.auth)

	return app, nil
}

// NewCodec builds the approval link codec for the configured mode.
// Signed tokens use APPROVAL_TOKEN_SECRET, falling back to JWT_SECRET.
func NewCodec(cfg *config.Config) (token.Codec, error) {
	switch cfg.TokenConfig.Mode {
	case config.TokenModePlain:
		return token.Plain{}, nil
	case config.TokenModeSigned, "":
		secret := cfg.TokenConfig.Secret
		if secret == "" {
			secret = cfg.JWTSecret
		}
		if secret == "" {
			return nil, errors.New("signed approval tokens require APPROVAL_TOKEN_SECRET or JWT_SECRET")
		}
		signed, err := token.NewSigned(secret, cfg.TokenConfig.TTL)
		if err != nil {
			return nil, err
		}
		return signed, nil
	default:
		return nil, fmt.Errorf("unknown approval token mode: %s", cfg.TokenConfig.Mode)
	}
}

func (app *App) Service() *service.Service {
	return app.service
}

func (app *App) Auth() *auth.Authenticator {
	return app.auth
}

func (app *App) Handler() http.Handler {
	return router.NewRouter(app.controller)
}

func (app *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signal.Notify(app.stopSig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		sig := <-app.stopSig
		app.log.Infof("Received signal: %s", sig)
		cancel()
	}()

	server := http.Server{
		Addr:         app.cfg.ServerAddress,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			app.log.Errorf("Http server error: %s", err)
		}
	}()

	escalator := make(chan struct{})
	go func() {
		defer close(escalator)
		app.service.RunEscalator(ctx, app.cfg.EscalationInterval)
	}()

	app.log.Infof("Server started at %s, listening for connections...", app.cfg.ServerAddress)
	<-ctx.Done()

	timeout, tcancel := context.WithTimeout(context.Background(), time.Second*10)
	defer tcancel()
	app.log.Info("Shutting down http server...")
	server.Shutdown(timeout)
	<-escalator

	app.log.Info("Closing repository...")
	if err := app.Close(); err != nil {
		app.log.Errorf("Closing error: %s", err)
	}

	close(app.Done)
	app.log.Info("Exiting app.")
}

// Close releases the database and redis connections.
func (app *App) Close() error {
	err := app.repo.Close()
	if app.redis != nil {
		err = errors.Join(err, app.redis.Close())
	}
	return err
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"dispatch/internal/config"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	"dispatch/internal/messaging"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

const connectTimeout = 10 * time.Second

// Module wires storage, services, handlers and the HTTP server.
var Module = fx.Options(
	fx.Provide(
		newNewRelic,
		newRedisClient,
		newStore,
		newSessionStore,
		newLocker,
		newChannel,
		newAddressValidator,
		newLockManager,
		newAdminRegistry,
		newNotificationService,
		newUserService,
		service.NewSessionService,
		service.NewOrderService,
		service.NewDriverService,
		service.NewReviewService,
		service.NewConversationService,
		handler.NewUserHandler,
		handler.NewOrderHandler,
		handler.NewDriverHandler,
		handler.NewAdminHandler,
		handler.NewConversationHandler,
		NewRouter,
		newHTTPServer,
	),
	fx.Invoke(registerLifecycle),
)

// Options composes the full application graph. Extra options such as
// fx.Replace let tests swap components.
func Options(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}

func newNewRelic(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) *newrelic.Application {
	if !cfg.NewRelic.Enabled {
		return nil
	}
	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.NewRelic.AppName),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.Error("failed to initialize New Relic", slog.Any("error", err))
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			nrApp.Shutdown(5 * time.Second)
			return nil
		},
	})
	logger.Info("New Relic enabled", slog.String("app", cfg.NewRelic.AppName))
	return nrApp
}

// newRedisClient returns nil when no backend is configured to use Redis.
func newRedisClient(lc fx.Lifecycle, cfg *config.Config, nrApp *newrelic.Application) (*redis.Client, error) {
	if !cfg.NeedsRedis() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})
	return client, nil
}

type storeParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      *config.Config
	Logger      *slog.Logger
	NewRelicApp *newrelic.Application
}

func newStore(p storeParams) (repository.Store, error) {
	if p.Config.Database.Backend == config.BackendMemory {
		p.Logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := NewDatabase(ctx, p.Config.Database, p.NewRelicApp)
	if err != nil {
		return nil, err
	}
	storage, err := postgres.NewStorage(ctx, db, p.Logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return storage, nil
}

func newSessionStore(cfg *config.Config, client *redis.Client) repository.SessionStore {
	if cfg.Session.Backend == config.BackendRedis {
		return internalRedis.NewSessionStore(client, cfg.Session.TTL)
	}
	return memory.NewSessionStore(cfg.Session.TTL)
}

func newLocker(cfg *config.Config, client *redis.Client) service.Locker {
	if cfg.Lock.Backend == config.BackendRedis {
		return internalRedis.NewLockStore(client, cfg.Lock.TTL)
	}
	return service.NewLocalLocker()
}

func newChannel(cfg *config.Config, client *redis.Client, logger *slog.Logger) messaging.Channel {
	if cfg.Messaging.Backend == config.BackendRedis {
		return messaging.NewRedisChannel(client, cfg.Messaging.Stream, cfg.Messaging.StreamLen)
	}
	return messaging.NewLogChannel(logger)
}

func newAddressValidator(cfg *config.Config) service.AddressValidator {
	return service.NewCityAddressValidator(cfg.Dispatch.ServiceCity)
}

func newLockManager(locker service.Locker, cfg *config.Config) *service.LockManager {
	return service.NewLockManager(locker, cfg.Lock.Wait)
}

func newAdminRegistry(cfg *config.Config, store repository.Store, logger *slog.Logger) *service.AdminRegistry {
	return service.NewAdminRegistry(cfg.Dispatch.AdminIDs, store.Admins(), logger)
}

func newNotificationService(
	channel messaging.Channel,
	store repository.Store,
	admins *service.AdminRegistry,
	logger *slog.Logger,
) *service.NotificationService {
	return service.NewNotificationService(channel, store.Users(), store.Drivers(), admins, logger)
}

func newUserService(store repository.Store) *service.UserService {
	return service.NewUserService(store.Users())
}

func newHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Admins     *service.AdminRegistry
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Admins.Load(ctx); err != nil {
				return err
			}
			p.Logger.Info("starting dispatch",
				slog.String("addr", p.Server.Addr),
				slog.Int("admins", len(p.Admins.AllAdminIDs())),
			)
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.Server.ShutdownTimeout)
			}
			defer cancel()

			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("dispatch stopped")
			return nil
		},
	})
}

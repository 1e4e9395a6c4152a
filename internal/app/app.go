// Package app wires configuration, connections, repositories and services
// shared by the API server and the worker.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"imagehub/internal/cache"
	"imagehub/internal/config"
	"imagehub/internal/database"
	"imagehub/internal/media/preview"
	"imagehub/internal/queue"
	"imagehub/internal/repository"
	"imagehub/internal/service"
	"imagehub/internal/storage"
)

type App struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Store    storage.Provider
	Producer *queue.Producer

	Images  *service.ImageService
	Catalog *service.CatalogService
	Auth    *service.AuthService
	Users   *service.UserService
}

// New opens every backing service. On error anything already opened is
// closed again.
func New(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*App, error) {
	if cfg.Security.JWTAccessSecret == "" || cfg.Security.CSRFSecret == "" {
		return nil, errors.New("security.jwtaccesssecret and security.csrfsecret must be set")
	}

	a := &App{Config: cfg, Log: log}

	db, err := database.Open(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.DB = db

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = redisClient

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Store = store
	a.Producer = queue.NewProducer(redisClient, cfg.Redis.Stream)

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	tags := repository.NewTagRepository(db)
	authors := repository.NewAuthorRepository(db)
	images := repository.NewImageRepository(db)

	generator := preview.NewGenerator(
		preview.Box{Width: cfg.Preview.Tag.Width, Height: cfg.Preview.Tag.Height},
		preview.Box{Width: cfg.Preview.Search.Width, Height: cfg.Preview.Search.Height},
		cfg.Preview.Quality,
	)

	a.Catalog = service.NewCatalogService(tags, authors, log.With().Str("component", "catalog").Logger())
	a.Images = service.NewImageService(images, a.Catalog, store, generator, a.Producer, cfg.Preview, log.With().Str("component", "images").Logger())
	a.Auth = service.NewAuthService(users, sessions, cache.NewStore(redisClient, "imagehub:"), cfg.Security, log.With().Str("component", "auth").Logger())
	a.Users = service.NewUserService(users, sessions, service.NewLogNotifier(log), cfg.Security, log.With().Str("component", "users").Logger())

	return a, nil
}

func (a *App) Ping(ctx context.Context) error {
	return a.DB.Ping(ctx)
}

func (a *App) PingRedis(ctx context.Context) error {
	return a.Redis.Ping(ctx).Err()
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Error().Err(err).Msg("redis close error")
		}
	}
}

package app

import (
	"fmt"

	"github.com/fitcheckhq/fitcheck/internal/config"
	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/quota"
	"github.com/fitcheckhq/fitcheck/internal/service"
	"github.com/fitcheckhq/fitcheck/internal/session"
	"github.com/fitcheckhq/fitcheck/internal/storage"
)

type App struct {
	Cfg         *config.Config
	Store       *storage.S3Store
	Counter     *quota.RedisCounter
	Generator   *genimage.Client
	AuthService *service.AuthService
	Sessions    *session.Manager
}

func New(cfg *config.Config) (*App, error) {
	// Remote asset store: the only durable copy of user assets.
	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Remote quota counter.
	counter, err := quota.NewRedisCounter(quota.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quota counter: %v", err)
	}

	generator := genimage.NewClient(genimage.Config{
		BaseURL: cfg.GenAPIBaseURL,
		APIKey:  cfg.GenAPIKey,
		Model:   cfg.GenModel,
		Timeout: cfg.GenTimeout,
	})

	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())

	sessions := session.NewManager(session.Deps{
		Store:      store,
		Counter:    counter,
		Generator:  generator,
		QuotaLimit: cfg.DailyGenerationLimit,
	})

	return &App{
		Cfg:         cfg,
		Store:       store,
		Counter:     counter,
		Generator:   generator,
		AuthService: authService,
		Sessions:    sessions,
	}, nil
}

func (a *App) Close() error {
	if a.Counter != nil {
		return a.Counter.Close()
	}
	return nil
}

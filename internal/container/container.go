package container

import (
	"debatelive/internal/config"
	"debatelive/internal/gateway"
	"debatelive/internal/service"
	"debatelive/pkg/logger"
	"debatelive/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	Gateway     *gateway.Client
	Sync        service.DebateSyncService
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *logger.Logger) (*Container, error) {
	// Initialize Redis client if Redis URL is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching")
	}

	gatewayClient := gateway.NewClient(cfg.BackendBaseURL, cfg.SessionCookieName, logger)
	syncService := service.NewDebateSyncService(gatewayClient, redisClient, cfg, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		RedisClient: redisClient,
		Gateway:     gatewayClient,
		Sync:        syncService,
	}, nil
}

// GetSyncService returns the debate sync engine
func (c *Container) GetSyncService() service.DebateSyncService {
	return c.Sync
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

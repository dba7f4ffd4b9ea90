package main

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/mvexel/nostalgickr/internal/config"
	"github.com/mvexel/nostalgickr/internal/flickr"
	"github.com/mvexel/nostalgickr/internal/gallery"
	"github.com/mvexel/nostalgickr/internal/handlers"
	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/monitoring"
	"github.com/mvexel/nostalgickr/internal/server"
	"github.com/mvexel/nostalgickr/internal/session"
	"github.com/mvexel/nostalgickr/internal/version"
)

func main() {
	logger := logging.NewLoggerWithService("nostalgickr")
	config.LoadEnv(logger)
	cfg := config.Load()

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Fatal("Invalid redis URL")
	}
	redisClient := goredis.NewClient(opts)
	defer redisClient.Close()

	flickrClient := flickr.NewClient(flickr.Config{
		APIKey:      cfg.FlickrAPIKey,
		APISecret:   cfg.FlickrAPISecret,
		CallbackURL: cfg.CallbackURL,
		Logger:      logger,
	})

	sessions := session.NewManager(redisClient, cfg.SessionTTL)
	cache := gallery.NewCache(redisClient)

	info := version.GetInfo()
	metrics := monitoring.NewMetricsCollector("nostalgickr", info.Version, info.GitCommit)

	svc := gallery.NewService(flickrClient, cache, gallery.TTLConfig{
		PhotoDetails: cfg.PhotoDetailsTTL,
		PhotoSizes:   cfg.PhotoSizesTTL,
		FriendPhoto:  cfg.FriendPhotoTTL,
		Negative:     cfg.NegativeTTL,
	}, gallery.NewMetrics(metrics), logger)

	h := handlers.New(svc, sessions, flickrClient, logger)

	health := monitoring.NewHealthChecker("nostalgickr", info.Version)
	health.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	health.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"FLICKR_API_KEY":    cfg.FlickrAPIKey,
		"FLICKR_API_SECRET": cfg.FlickrAPISecret,
		"CALLBACK_URL":      cfg.CallbackURL,
	}))

	srvCfg := server.DefaultConfig(cfg.Port, int(cfg.SessionTTL.Seconds()))
	srvCfg.Mode = cfg.GinMode
	router := server.NewRouter(srvCfg, h, sessions, metrics, health, logger)

	if err := server.Start(srvCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("Server exited with error")
	}
}

package config

import "time"

// Config holds all runtime configuration for the service.
// It is built once in main and passed to constructors; request
// handling code never reads the environment directly.
type Config struct {
	Port    string
	GinMode string

	FlickrAPIKey    string
	FlickrAPISecret string
	CallbackURL     string

	RedisURL string

	// Cache TTL policy. Photo sizes never change once published, details
	// rarely do, a contact's "latest photo" changes often, and negative
	// results are kept just long enough to avoid hammering upstream.
	SessionTTL      time.Duration
	PhotoDetailsTTL time.Duration
	PhotoSizesTTL   time.Duration
	FriendPhotoTTL  time.Duration
	NegativeTTL     time.Duration
}

// Load builds a Config from the process environment.
func Load() Config {
	return Config{
		Port:            GetEnv("PORT", "8000"),
		GinMode:         GetEnv("GIN_MODE", "debug"),
		FlickrAPIKey:    RequireEnv("FLICKR_API_KEY"),
		FlickrAPISecret: RequireEnv("FLICKR_API_SECRET"),
		CallbackURL:     GetEnv("CALLBACK_URL", "http://localhost:8000/callback"),
		RedisURL:        GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL:      24 * time.Hour,
		PhotoDetailsTTL: time.Duration(GetEnvInt("PHOTO_DETAILS_CACHE_TTL", 172800)) * time.Second,
		PhotoSizesTTL:   7 * 24 * time.Hour,
		FriendPhotoTTL:  time.Duration(GetEnvInt("REDIS_FRIENDS_CACHE_TTL", 7200)) * time.Second,
		NegativeTTL:     120 * time.Second,
	}
}

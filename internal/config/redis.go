package config

// This file defines the Redis settings shared by the rate limiter, the
// response cache and the asynq task queue.  The parameters are loaded from
// environment variables.  If connection fails during startup,
// NewRedisClient returns nil and callers degrade gracefully by disabling
// caching and rate limiting.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      *tls.Config
}

// LoadRedisConfig reads the Redis settings.  Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (used when host/port are not both set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
func LoadRedisConfig() RedisConfig {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	return RedisConfig{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: dbNum, TLS: tlsConf}
}

// NewRedisClient instantiates a Redis client from LoadRedisConfig.  The
// returned client is nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	rc := LoadRedisConfig()
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: rc.TLS,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

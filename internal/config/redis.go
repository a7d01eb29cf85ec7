// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/kbengine/internal/logger"
)

// NewRedisClient builds a client from the loaded Env and verifies
// connectivity with a ping, so callers can fall back to a disabled job
// queue rather than fail startup (ingestion still works synchronously
// without Redis; only background/watched ingestion needs it).
func NewRedisClient(ctx context.Context, env Env) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     env.RedisAddr,
		DB:       env.RedisDB,
		Password: env.RedisPassword,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("redis ping failed at %s: %v", env.RedisAddr, err)
		return nil, err
	}

	logger.Printf("connected to redis at %s db=%d", env.RedisAddr, env.RedisDB)
	return client, nil
}

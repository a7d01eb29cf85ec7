// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package config loads process-level settings — data directory, ports,
// worker pool size, Redis connection — from the environment, .env file,
// and flags, the way the teacher's cmd/hive-server/main.go and
// internal/config/redis.go do.
package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Env holds process-level settings, distinct from appconfig.Config (the
// user-facing data_dir/config.json contract).
type Env struct {
	DataDir       string
	HTTPPort      int
	BridgeBinary  string
	WorkerCount   int
	RedisAddr     string
	RedisDB       int
	RedisPassword string
}

// Load reads .env (if present, ignoring its absence) then environment
// variables via viper, applying the same defaults the teacher's wiring
// code uses for Redis.
func Load() Env {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("HTTP_PORT", 8085)
	v.SetDefault("BRIDGE_BINARY", "./kb-bridge")
	v.SetDefault("WORKER_COUNT", 5)
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")

	return Env{
		DataDir:       v.GetString("DATA_DIR"),
		HTTPPort:      v.GetInt("HTTP_PORT"),
		BridgeBinary:  v.GetString("BRIDGE_BINARY"),
		WorkerCount:   v.GetInt("WORKER_COUNT"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
	}
}

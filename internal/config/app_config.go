package config

import (
	"time"
)

type AppConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout" env-default:"10s"`
	UpsertRetries  int           `yaml:"upsert_retries" env-default:"5"`
}

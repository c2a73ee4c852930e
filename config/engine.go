package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lspecian/chain-of-experts/batcher"
	"github.com/lspecian/chain-of-experts/cache"
	"github.com/lspecian/chain-of-experts/chain"
	"github.com/lspecian/chain-of-experts/logger"
	"github.com/lspecian/chain-of-experts/redis"
	"github.com/lspecian/chain-of-experts/resilience"
)

var validate = validator.New()

// EngineConfig is the root configuration for the chain engine. Embed it
// in an application config struct or load it directly with Load.
type EngineConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging    logger.Config      `yaml:"logging" mapstructure:"logging"`
	Cache      cache.Config       `yaml:"cache" mapstructure:"cache"`
	Redis      redis.Config       `yaml:"redis" mapstructure:"redis"`
	Resilience ResilienceSettings `yaml:"resilience" mapstructure:"resilience"`
	Batch      BatchSettings      `yaml:"batch" mapstructure:"batch"`
}

// ResilienceSettings carries the per-stage resilience tuning knobs.
type ResilienceSettings struct {
	MaxAttempts         int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1"`
	InitialDelay        time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	BackoffFactor       float64       `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"omitempty,gte=1"`
	CircuitThreshold    int           `yaml:"circuit_threshold" mapstructure:"circuit_threshold" validate:"omitempty,min=1"`
	CircuitResetTimeout time.Duration `yaml:"circuit_reset_timeout" mapstructure:"circuit_reset_timeout"`
	RateLimit           int           `yaml:"rate_limit" mapstructure:"rate_limit" validate:"omitempty,min=0"`
	RateInterval        time.Duration `yaml:"rate_interval" mapstructure:"rate_interval"`
}

// BatchSettings carries the request batcher tuning knobs.
type BatchSettings struct {
	Size           int           `yaml:"size" mapstructure:"size" validate:"omitempty,min=1"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"omitempty,min=1"`
}

// ApplyDefaults fills in defaults across all sections.
func (c *EngineConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Redis.ApplyDefaults()

	d := chain.DefaultResilienceConfig()
	if c.Resilience.MaxAttempts <= 0 {
		c.Resilience.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Resilience.InitialDelay <= 0 {
		c.Resilience.InitialDelay = d.Retry.InitialDelay
	}
	if c.Resilience.BackoffFactor <= 0 {
		c.Resilience.BackoffFactor = d.Retry.BackoffFactor
	}
	if c.Resilience.CircuitThreshold <= 0 {
		c.Resilience.CircuitThreshold = d.CircuitThreshold
	}
	if c.Resilience.CircuitResetTimeout <= 0 {
		c.Resilience.CircuitResetTimeout = d.CircuitResetTimeout
	}
	if c.Resilience.RateInterval <= 0 {
		c.Resilience.RateInterval = d.RateInterval
	}

	b := batcher.Config{}
	b.ApplyDefaults()
	if c.Batch.Size <= 0 {
		c.Batch.Size = b.BatchSize
	}
	if c.Batch.Timeout <= 0 {
		c.Batch.Timeout = b.BatchTimeout
	}
	if c.Batch.MaxConcurrency <= 0 {
		c.Batch.MaxConcurrency = c.Batch.Size
	}
}

// Validate checks all sections. Call after ApplyDefaults.
func (c *EngineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if c.Cache.Backend != "local" && c.Cache.Backend != "redis" {
		return fmt.Errorf("config.cache.backend must be local or redis (got: %s)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("config.redis: %w", err)
		}
	}
	return nil
}

// ChainResilience converts the settings into the executor's resilience
// configuration.
func (c *ResilienceSettings) ChainResilience() chain.ResilienceConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.MaxAttempts
	retry.InitialDelay = c.InitialDelay
	retry.BackoffFactor = c.BackoffFactor
	return chain.ResilienceConfig{
		Retry:               retry,
		CircuitThreshold:    c.CircuitThreshold,
		CircuitResetTimeout: c.CircuitResetTimeout,
		RateLimit:           c.RateLimit,
		RateInterval:        c.RateInterval,
	}
}

// BatcherConfig converts the settings into the batcher's configuration.
func (c *BatchSettings) BatcherConfig() batcher.Config {
	return batcher.Config{
		BatchSize:      c.Size,
		BatchTimeout:   c.Timeout,
		MaxConcurrency: c.MaxConcurrency,
	}
}

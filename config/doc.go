// Package config loads and validates the chain engine's configuration.
//
// It uses Viper to load configuration from a config.yml file and
// environment variables, with .env support for development. Environment
// variables override file values using underscore-separated paths
// (e.g., CACHE_BACKEND, REDIS_ADDR).
package config

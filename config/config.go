// Package config loads the engine configuration from a YAML file. Values
// support environment expansion via the loader, so endpoints and secrets can
// be injected per deployment.
package config

import (
	"time"

	"github.com/effective-security/x/configloader"
)

// Config is the top-level engine configuration.
type Config struct {
	// GraphQL specifies the fixed GraphQL endpoint.
	GraphQL GraphQLConfig `json:"graphql" yaml:"graphql"`
	// GRPC specifies the dial targets per registered gRPC service.
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`
	// Recovery specifies the retry budget and backoff.
	Recovery RecoveryConfig `json:"recovery" yaml:"recovery"`
	// Redis enables the Redis-backed result store. Empty Addr keeps results
	// in memory.
	Redis RedisConfig `json:"redis" yaml:"redis"`
	// LLMConfig is the path to the LLM provider configuration consumed by
	// the model factory.
	LLMConfig string `json:"llm_config" yaml:"llm_config"`
	// Oracles maps each oracle to its preferred models, in order.
	// Use `default: [<model>]` as the fallback.
	Oracles map[string][]string `json:"oracles" yaml:"oracles"`
}

// GraphQLConfig names the GraphQL service endpoint.
type GraphQLConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// GRPCConfig maps registered gRPC service names to dial targets.
type GRPCConfig struct {
	Targets map[string]string `json:"targets" yaml:"targets"`
}

// RecoveryConfig tunes the recovery loop.
type RecoveryConfig struct {
	// MaxRetries is the attempt budget per step. Zero keeps the default.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// BackoffSeconds is the time unit of the exponential backoff, in
	// seconds. Zero keeps one second.
	BackoffSeconds int `json:"backoff_seconds" yaml:"backoff_seconds"`
}

// BackoffUnit returns the configured backoff unit.
func (c *RecoveryConfig) BackoffUnit() time.Duration {
	if c.BackoffSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.BackoffSeconds) * time.Second
}

// RedisConfig connects the result store.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	// Prefix namespaces the keys of this deployment.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Load reads the configuration from file.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

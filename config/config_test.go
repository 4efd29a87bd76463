package config_test

import (
	"testing"
	"time"

	"github.com/effective-security/apibridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := config.Load("testdata/engine.yaml")
	require.NoError(t, err)

	assert.Equal(t, "http://graphql_server:8002/graphql", cfg.GraphQL.Endpoint)
	assert.Equal(t, "grpc_server:50051", cfg.GRPC.Targets["UserService"])
	assert.Equal(t, 3, cfg.Recovery.MaxRetries)
	assert.Equal(t, time.Second, cfg.Recovery.BackoffUnit())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "apibridge", cfg.Redis.Prefix)
	assert.Equal(t, "testdata/llm.yaml", cfg.LLMConfig)
	assert.Equal(t, []string{"gpt-4o"}, cfg.Oracles["planner"])
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.GraphQL.Endpoint)
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load("testdata/missing.yaml")
	assert.Error(t, err)
}

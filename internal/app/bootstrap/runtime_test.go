package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/suze-ad/finetech/internal/config"
	"github.com/suze-ad/finetech/internal/leads"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, false))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, false))
}

func TestBuildRedisClientVerify(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, nil, true)
	require.NotNil(t, client)
	defer client.Close()

	// Unreachable address with verification enabled yields nil.
	bad := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	assert.Nil(t, BuildRedisClient(context.Background(), bad, nil, true))
}

func TestBuildTranscriptStoreWithoutRedis(t *testing.T) {
	assert.Nil(t, BuildTranscriptStore(nil, &appconfig.Config{}))
}

func TestBuildLeadsRepositoryFallsBackToMemory(t *testing.T) {
	repo, pool := BuildLeadsRepository(context.Background(), &appconfig.Config{}, nil)
	assert.Nil(t, pool)
	_, ok := repo.(*leads.InMemoryRepository)
	assert.True(t, ok)
}

package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.FromEnv()
	cfg.DBType = "sqlite"
	cfg.SQLitePath = filepath.Join(dir, "timeline.db")
	cfg.LockBackend = "memory"
	return cfg
}

func TestNewRuntime(t *testing.T) {
	rt, err := New(context.Background(), testConfig(t), internal.NopLogger())
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, []string{"GitHub", "Notion"}, rt.Orchestrator.Providers())
	created, err := rt.Orchestrator.RunSync(context.Background(), "nobody", "notion")
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestNewRuntimeRejectsUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.LockBackend = "redis"
	cfg.RedisAddr = "127.0.0.1:1"
	_, err := New(context.Background(), cfg, internal.NopLogger())
	assert.Error(t, err)
}

func TestCheckShared(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, CheckShared(cfg, false))
	assert.ErrorIs(t, CheckShared(cfg, true), ErrProcessLocal)

	cfg.LockBackend = "redis"
	assert.NoError(t, CheckShared(cfg, true))

	cfg.DBType = "file"
	assert.ErrorIs(t, CheckShared(cfg, false), ErrProcessLocal)
	assert.ErrorIs(t, CheckShared(cfg, true), ErrProcessLocal)
}

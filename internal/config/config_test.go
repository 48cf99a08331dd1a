package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SYNC_HTTP_TIMEOUT", "not-a-duration")
	c := FromEnv()
	assert.Equal(t, "file", c.DBType)
	assert.Equal(t, "2022-06-28", c.NotionVersion)
	assert.Equal(t, 30*time.Second, c.SyncHTTPTimeout)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	c := FromEnv()
	c.DBType = "postgres"
	c.DBDSN = ""
	assert.Error(t, c.Validate())

	c = FromEnv()
	c.AuthMode = "jwt"
	c.JWTSecret = ""
	assert.Error(t, c.Validate())

	c = FromEnv()
	c.Env = "production"
	c.AuthMode = "local"
	assert.Error(t, c.Validate())

	c = FromEnv()
	c.LockBackend = "redis"
	c.RedisAddr = ""
	assert.Error(t, c.Validate())

	c = FromEnv()
	c.DBType = "mongo"
	assert.Error(t, c.Validate())
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nTL_TEST_A=from-file\nTL_TEST_B=\"quoted\"\ngarbage\n"), 0644))
	t.Setenv("TL_TEST_A", "from-env")
	os.Unsetenv("TL_TEST_B")
	t.Cleanup(func() { os.Unsetenv("TL_TEST_B") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("TL_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("TL_TEST_B"))
}

func TestLoadCheckedReportsInvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "mongo")
	_, err := LoadChecked()
	assert.Error(t, err)

	t.Setenv("STORAGE_BACKEND", "sqlite")
	c, err := LoadChecked()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBType)
}

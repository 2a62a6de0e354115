package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	customConfigPath := filepath.Join(tempDir, "custom", "path", "config.toml")

	require.NoError(t, Init(customConfigPath))

	assert.Equal(t, filepath.Join(tempDir, "custom", "path"), GetConfigDir())
	assert.Equal(t, customConfigPath, GetConfigFilePath())
	assert.Equal(t, filepath.Join(tempDir, "custom", "path", "credentials"), GetCredentialsPath())

	_, err := os.Stat(GetConfigDir())
	assert.NoError(t, err, "config directory should be created")
}

func TestDefaults(t *testing.T) {
	require.NoError(t, Init(filepath.Join(t.TempDir(), "config.toml")))

	assert.Equal(t, "http://localhost:4000/api", GetString("api.base_url"))
	assert.Equal(t, 10, GetInt("feed.page_size"))
	assert.Equal(t, 3, GetInt("comments.page_size"))
	assert.Equal(t, 3*time.Second, GetSeconds("messages.poll_interval"))
	assert.Equal(t, 500*time.Millisecond, GetMillis("messages.retry_base_delay_ms"))
	assert.Equal(t, 3, GetInt("messages.max_send_attempts"))
	assert.True(t, GetBool("mutations.reconcile_likes"))
	assert.False(t, GetBool("realtime.enabled"))
}

func TestUserConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[api]\nbase_url = \"https://feed.example.com/api\"\n\n[messages]\npoll_interval = 7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, Init(path))

	assert.Equal(t, "https://feed.example.com/api", GetString("api.base_url"))
	assert.Equal(t, 7*time.Second, GetSeconds("messages.poll_interval"))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs/feedsync.log"), expandHome("~/logs/feedsync.log"))
	assert.Equal(t, "/var/log/feedsync.log", expandHome("/var/log/feedsync.log"))
	assert.Equal(t, "", expandHome(""))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FEEDSYNC_FEED_PAGE_SIZE", "17")
	require.NoError(t, Init(filepath.Join(t.TempDir(), "config.toml")))

	assert.Equal(t, 17, GetInt("feed.page_size"))
}

func TestSetStringPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Init(path))
	require.NoError(t, SetString("api.base_url", "https://persisted.example.com/api"))

	require.NoError(t, Init(path))
	assert.Equal(t, "https://persisted.example.com/api", GetString("api.base_url"))
}

func TestInitResetsProcessOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Init(path))
	Set("output.format", "json")

	require.NoError(t, Init(path))
	assert.Equal(t, "text", GetString("output.format"))
}

func TestSetOverridesForProcess(t *testing.T) {
	require.NoError(t, Init(filepath.Join(t.TempDir(), "config.toml")))

	Set("feed.page_size", 25)
	assert.Equal(t, 25, GetInt("feed.page_size"))
}

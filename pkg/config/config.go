// Package config loads feedsync settings from TOML files and FEEDSYNC_*
// environment variables. The user file overrides the system file.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "feedsync"

var (
	v = viper.New()

	dir         string
	filePath    string
	credentials string
)

// path-valued keys get ~ expanded on read
var pathKeys = map[string]bool{
	"log.file":        true,
	"server.log_file": true,
}

func defaults(dir string) map[string]any {
	return map[string]any{
		"api.base_url": "http://localhost:4000/api",
		"api.timeout":  30,

		"feed.page_size":        10,
		"feed.refresh_schedule": "@every 30s",
		"comments.page_size":    3,

		"messages.poll_interval":       3,
		"messages.max_send_attempts":   3,
		"messages.retry_base_delay_ms": 500,

		"mutations.reconcile_likes": true,
		"profile.cache_ttl":         60,

		"realtime.enabled": false,
		"realtime.url":     "ws://localhost:4000/api/ws",

		"output.format": "text",
		"log.level":     "info",
		"log.file":      filepath.Join(dir, appName+".log"),

		"server.addr":       ":4000",
		"server.jwt_secret": "feedsync-dev-secret",
		"server.log_file":   filepath.Join(dir, "devserver.log"),
		"server.log_level":  "info",
	}
}

// userDir is ~/.config/feedsync, or %LOCALAPPDATA%\feedsync on Windows
func userDir() (string, error) {
	if runtime.GOOS == "windows" {
		for _, env := range []string{"LOCALAPPDATA", "APPDATA"} {
			if base := os.Getenv(env); base != "" {
				return filepath.Join(base, appName), nil
			}
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, appName), nil
	}
	return filepath.Join(home, ".config", appName), nil
}

func systemFiles() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), appName, "config.toml")}
	}
	return []string{
		"/etc/" + appName + "/config.toml",
		"/usr/local/etc/" + appName + "/config.toml",
	}
}

// Init loads configuration. An empty configPath uses the user config
// directory. Calling Init again starts from a clean slate.
func Init(configPath string) error {
	if configPath == "" {
		d, err := userDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(d, "config.toml")
	}
	dir = filepath.Dir(configPath)
	filePath = configPath
	credentials = filepath.Join(dir, "credentials")

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	next := viper.New()
	next.SetConfigType("toml")
	next.SetEnvPrefix(strings.ToUpper(appName))
	next.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	next.AutomaticEnv()
	for key, value := range defaults(dir) {
		next.SetDefault(key, value)
	}

	for _, sys := range systemFiles() {
		if _, err := os.Stat(sys); err == nil {
			next.SetConfigFile(sys)
			_ = next.ReadInConfig()
			break
		}
	}
	next.SetConfigFile(filePath)
	_ = next.MergeInConfig()

	v = next
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func GetString(key string) string {
	s := v.GetString(key)
	if pathKeys[key] {
		return expandHome(s)
	}
	return s
}

func GetInt(key string) int {
	return v.GetInt(key)
}

func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetSeconds reads an integer number of seconds
func GetSeconds(key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

// GetMillis reads an integer number of milliseconds
func GetMillis(key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Millisecond
}

// Set overrides key for this process only
func Set(key string, value interface{}) {
	v.Set(key, value)
}

// SetString sets key and writes the user config file
func SetString(key string, value string) error {
	v.Set(key, value)
	return v.WriteConfigAs(filePath)
}

func GetConfigDir() string {
	return dir
}

func GetConfigFilePath() string {
	return filePath
}

func GetCredentialsPath() string {
	return credentials
}

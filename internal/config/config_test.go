package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "ops@example.org"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NOMINATIM_EMAIL", testEmail)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.velomobilforum.de", cfg.Forum.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Forum.Timeout)
	assert.InDelta(t, 2.0, cfg.Forum.RequestsPerSecond, 0)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Nominatim.BaseURL)
	assert.Equal(t, testEmail, cfg.Nominatim.Email)
	assert.NotEmpty(t, cfg.Nominatim.UserAgent)
	assert.Equal(t, time.Second, cfg.Nominatim.Cooldown)
	assert.Equal(t, uint32(5), cfg.Nominatim.BreakerFailures)
	assert.Equal(t, "cache", cfg.Cache.Dir)
	assert.InDelta(t, 1.0, cfg.Cache.ThinPercent, 0)
	assert.Equal(t, []string{"user_details", "nominatim"}, cfg.Cache.ThinNamespaces)
	assert.Equal(t, "shared/vmforum_members.json", cfg.Export.Path)
	assert.Empty(t, cfg.Export.MembersDump)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Empty(t, cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("NOMINATIM_EMAIL", testEmail)
	t.Setenv("NOMINATIM_COOLDOWN", "2s")
	t.Setenv("NOMINATIM_BREAKER_FAILURES", "3")
	t.Setenv("FORUM_USERNAME", "tester")
	t.Setenv("FORUM_PASSWORD", "secret")
	t.Setenv("FORUM_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("CACHE_DIR", "/var/cache/locator")
	t.Setenv("CACHE_THIN_PERCENT", "2.5")
	t.Setenv("CACHE_THIN_NAMESPACES", "nominatim, member_page")
	t.Setenv("EXPORT_MEMBERS_DUMP", "shared/members.json")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "locations")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Nominatim.Cooldown)
	assert.Equal(t, uint32(3), cfg.Nominatim.BreakerFailures)
	assert.Equal(t, "tester", cfg.Forum.Username)
	assert.Equal(t, "secret", cfg.Forum.Password)
	assert.InDelta(t, 0.5, cfg.Forum.RequestsPerSecond, 0)
	assert.Equal(t, "/var/cache/locator", cfg.Cache.Dir)
	assert.InDelta(t, 2.5, cfg.Cache.ThinPercent, 0)
	assert.Equal(t, []string{"nominatim", "member_page"}, cfg.Cache.ThinNamespaces)
	assert.Equal(t, "shared/members.json", cfg.Export.MembersDump)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "locations", cfg.Kafka.Topic)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.RequireForumCredentials())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
nominatim:
  email: file@example.org
  cooldown: 1500ms
cache:
  dir: /tmp/locator-cache
  thin_namespaces: [nominatim]
kafka:
  brokers: [kafka:9092]
log:
  level: warn
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file@example.org", cfg.Nominatim.Email)
	assert.Equal(t, 1500*time.Millisecond, cfg.Nominatim.Cooldown)
	assert.Equal(t, "/tmp/locator-cache", cfg.Cache.Dir)
	assert.Equal(t, []string{"nominatim"}, cfg.Cache.ThinNamespaces)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "member-locations", cfg.Kafka.Topic)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "https://www.velomobilforum.de", cfg.Forum.BaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
nominatim:
  email: file@example.org
log:
  level: warn
`)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file@example.org", cfg.Nominatim.Email)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	path := writeConfig(t, "nominatim:\n  email: env-path@example.org\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-path@example.org", cfg.Nominatim.Email)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("NOMINATIM_EMAIL", testEmail)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_MissingEmail(t *testing.T) {
	t.Setenv("NOMINATIM_EMAIL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nominatim.email")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad email", "NOMINATIM_EMAIL", "not-an-email", "nominatim.email"},
		{"thin percent above 100", "CACHE_THIN_PERCENT", "150", "cache.thin_percent"},
		{"negative thin percent", "CACHE_THIN_PERCENT", "-1", "cache.thin_percent"},
		{"unknown namespace", "CACHE_THIN_NAMESPACES", "nominatim,sessions", "cache.thin_namespaces[1]"},
		{"zero timeout", "NOMINATIM_TIMEOUT", "0s", "nominatim.timeout"},
		{"bad log format", "LOG_FORMAT", "xml", "log.format"},
		{"bad base url", "FORUM_BASE_URL", "not a url", "forum.base_url"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-1s", "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NOMINATIM_EMAIL", testEmail)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("NOMINATIM_EMAIL", testEmail)
	t.Setenv("NOMINATIM_COOLDOWN", "not-a-duration")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_KafkaTopicRequiredWithBrokers(t *testing.T) {
	path := writeConfig(t, `
nominatim:
  email: ops@example.org
kafka:
  brokers: [kafka:9092]
  topic: ""
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.topic")
}

func TestRequireForumCredentials(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.RequireForumCredentials())

	cfg.Forum.Username = "tester"
	assert.Error(t, cfg.RequireForumCredentials())

	cfg.Forum.Password = "secret"
	assert.NoError(t, cfg.RequireForumCredentials())
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, 10*time.Second, cfg.HTTP.ShutdownGracePeriod)
	require.Equal(t, 5, cfg.Invites.DailyQuota)
	require.Equal(t, 720*time.Hour, cfg.Invites.TTL)
	require.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	require.Equal(t, 3, cfg.Webhook.MaxAttempts)
	require.Equal(t, time.Second, cfg.Webhook.BaseDelay)
	require.Equal(t, 10*time.Minute, cfg.AuthCodes.TTL)
	require.Equal(t, 5, cfg.AuthCodes.MaxAttempts)

	require.Equal(t, 5, cfg.RateLimit.Invite.Burst.Limit)
	require.Equal(t, time.Minute, cfg.RateLimit.Invite.Burst.Period)
	require.Len(t, cfg.RateLimit.Auth.Windows(), 2)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	content := `
env: prod
http:
  port: 9090
database:
  driver: postgres
  dsn: postgres://tokens@db/tokens
invites:
  daily_quota: 10
  timezone: Australia/Sydney
webhook:
  url: https://hooks.example.com/tokens
  secret: file-secret
ratelimit:
  invite:
    burst:
      limit: 2
      period: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("TOKENS_HTTP__PORT", "7070")
	t.Setenv("TOKENS_WEBHOOK__SECRET", "env-secret")
	t.Setenv("TOKENS_API_TOKENS__DAILY_QUOTA", "3")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 10, cfg.Invites.DailyQuota)
	require.Equal(t, "https://hooks.example.com/tokens", cfg.Webhook.URL)
	require.Equal(t, 2, cfg.RateLimit.Invite.Burst.Limit)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Invite.Burst.Period)
	// Untouched sibling keys keep their defaults.
	require.Equal(t, 30, cfg.RateLimit.Invite.Sustained.Limit)

	// Environment beats the file.
	require.Equal(t, 7070, cfg.HTTP.Port)
	require.Equal(t, "env-secret", cfg.Webhook.Secret)
	require.Equal(t, 3, cfg.APITokens.DailyQuota)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Australia/Sydney", loc.String())
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "TOKENS_DATABASE__DRIVER",
		"port":     "TOKENS_HTTP__PORT",
		"timezone": "TOKENS_INVITES__TIMEZONE",
	}
	values := map[string]string{
		"driver":   "mysql",
		"port":     "70000",
		"timezone": "Mars/Olympus_Mons",
	}

	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(key, values[name])
			_, err := LoadConfig("")
			require.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "log.level", envKey("TOKENS_LOG__LEVEL"))
	require.Equal(t, "invites.daily_quota", envKey("TOKENS_INVITES__DAILY_QUOTA"))
	require.Equal(t, "ratelimit.auth.sustained.period", envKey("TOKENS_RATELIMIT__AUTH__SUSTAINED__PERIOD"))
}

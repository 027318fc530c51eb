package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
)

var _ accounts.Config = (*config.Config)(nil)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, config.EnvDevelopment, cfg.App.Env)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.GetTokenExpiration())
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 256, cfg.Realtime.SendBuffer)
	assert.Equal(t, 12, cfg.GetBcryptCost())
	assert.NotEqual(t, cfg.GetUserSigningKey(), cfg.GetAdminSigningKey())
}

func TestLoadEnvironmentUsesServiceVariableNames(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("JWT_USER_SECRET", "user-secret-from-env")
	t.Setenv("JWT_ADMIN_SECRET", "admin-secret-from-env")
	t.Setenv("JWT_EXPIRES_IN", "2d")
	t.Setenv("ADMIN_EMAIL", "root@example.com")
	t.Setenv("UNRELATED_SETTING", "ignored")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "user-secret-from-env", cfg.GetUserSigningKey())
	assert.Equal(t, "admin-secret-from-env", cfg.GetAdminSigningKey())
	assert.Equal(t, 48*time.Hour, cfg.GetTokenExpiration())
	assert.Equal(t, "root@example.com", cfg.Admin.Email)
}

func TestLoadFileThenFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
log:
  level: debug
database:
  driver: postgres
  dsn: postgres://localhost/accounts?sslmode=disable
`), 0o600))

	flags := config.Flags("test")
	require.NoError(t, flags.Parse([]string{"--config", path, "--server.port", "9000"}))

	cfg, err := config.Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port, "flags win over the file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":9000", cfg.Addr())
}

func TestProductionRejectsDefaultSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := config.Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_USER_SECRET")
}

func TestValidateRejectsSharedSecrets(t *testing.T) {
	t.Setenv("JWT_USER_SECRET", "same-secret-value")
	t.Setenv("JWT_ADMIN_SECRET", "same-secret-value")

	_, err := config.Load("", nil)
	require.Error(t, err)
}

func TestParseExpiry(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":   7 * 24 * time.Hour,
		"168h": 168 * time.Hour,
		"90m":  90 * time.Minute,
	}
	for in, want := range cases {
		got, err := config.ParseExpiry(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "0d", "xd", "-1h", "soon"} {
		_, err := config.ParseExpiry(bad)
		assert.Error(t, err, bad)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.dsn", config.EnvKey("DATABASE_URL"))
	assert.Equal(t, "", config.EnvKey("HOME"))
}

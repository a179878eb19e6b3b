package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socialhub-lab/socialhub/internal/events"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "socialhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 3002
  mode: "debug"
auth:
  jwt_secret: "test-secret"
  access_ttl: "10m"
gateway:
  rate_limit: 200
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3002, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, 200, cfg.Gateway.RateLimit)

	// Unset sections keep their defaults; the exchange default is the
	// shared constant the publishers and consumers use.
	require.Equal(t, events.Exchange, cfg.Bus.Exchange)
	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	require.Equal(t, 50, cfg.Gateway.AuthRateLimit)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 3000
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 3000
auth:
  jwt_secret: "file-secret"
`)
	t.Setenv("SOCIALHUB_SERVER__PORT", "4000")
	t.Setenv("SOCIALHUB_AUTH__JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4000, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad port": `
server:
  port: 99999
auth:
  jwt_secret: "s"
`,
		"bad mode": `
server:
  mode: "production"
auth:
  jwt_secret: "s"
`,
		"bad duration": `
auth:
  jwt_secret: "s"
  access_ttl: "soon"
`,
		"bad rate limit": `
auth:
  jwt_secret: "s"
gateway:
  rate_limit: 0
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	t.Setenv("SOCIALHUB_AUTH__JWT_SECRET", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "release", cfg.Server.Mode)
}

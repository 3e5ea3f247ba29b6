package global

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, 25*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	assert.True(t, cfg.UsingDevSecret())
	assert.False(t, cfg.Google.Enabled())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7000"
  allowedOrigins: ["https://a.example", "https://b.example"]
redis:
  addr: "redis:6379"
  probeTimeout: 250ms
realtime:
  pingInterval: 10s
  pongWait: 30s
log:
  level: debug
`), 0o600))

	t.Setenv("PORT", "8081")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.ProbeTimeout)
	assert.Equal(t, 10*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.UsingDevSecret())
	assert.True(t, cfg.Google.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())

	opts := JWTOptions(cfg.JWT)
	assert.Equal(t, []byte("prod-secret"), opts.Secret)
	assert.Equal(t, 7*24*time.Hour, opts.TTL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Realtime.PingInterval = time.Minute
	assert.True(t, errors.Is(cfg.Validate(), errs.ErrArgs))

	cfg = Default()
	cfg.JWT.Secret = ""
	assert.True(t, errors.Is(cfg.Validate(), errs.ErrArgs))

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOnlineConfig(t *testing.T) {
	oc := OnlineConfig(Default().Redis)
	assert.Equal(t, "onlineUsers", oc.Key)
	assert.Equal(t, 500*time.Millisecond, oc.ProbeTimeout)
}

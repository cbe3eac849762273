package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/internal/app"
	iauth "github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "notifystream.sqlite")
	cfg.Auth.JWT.Secret = "bootstrap-secret"
	cfg.Auth.JWT.Issuer = "notifystream"
	cfg.Auth.JWT.TTL = time.Minute
	cfg.Notifications.ResyncSchedule = "off"
	cfg.Monitoring.Prometheus.Enabled = true
	return cfg
}

func TestBootstrapRuntimeServesHealth(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, stack.Redis)
	require.False(t, stack.Resyncer.Enabled())

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"database"`)

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications/counts", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stack.Shutdown(ctx, zap.NewNop()))
}

func TestBootstrapRuntimeFailsWhenRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = "127.0.0.1:1"
	cfg.Cache.Redis.Timeout = 100 * time.Millisecond
	cfg.Cache.Redis.RetryAttempts = 1

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect redis")
}

func TestRunIssuesToken(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "notifystream.sqlite")
	config := strings.Join([]string{
		"database:",
		"  driver: sqlite",
		"  path: " + dbPath,
		"auth:",
		"  jwt:",
		"    secret: issue-secret",
		"    issuer: notifystream",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o600))

	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", dir, "-issue-token", "user-1", "-issue-username", "alice"}, &out)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "issue-secret", Issuer: "notifystream"})
	require.NoError(t, err)
	identity, err := jwtSvc.Verify(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "user-1", identity.UserID)
	require.Equal(t, "alice", identity.Username)

	cfg, err := app.LoadConfig(dir)
	require.NoError(t, err)
	db, err := initialiseDatabase(cfg)
	require.NoError(t, err)
	defer func() { _ = closeDatabase(db) }()

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "user-1").Error)
	require.Equal(t, "alice", user.Username)
}

func TestRunRejectsIssueTokenWithoutSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database:\n  path: "+filepath.Join(dir, "db.sqlite")+"\n"), 0o600))

	err := run(context.Background(), []string{"-config", dir, "-issue-token", "user-1"}, &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth.jwt.secret")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

// Package apptest starts in-memory API servers for tests.
package apptest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/app"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// Admin credentials seeded into every test server.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin-password"
)

// Config returns a configuration with in-memory repositories, the in-process
// dispatcher and attachments under a temporary directory.
func Config(t testing.TB) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "helpdesk-test", Version: "test", RequestTimeoutSeconds: 5},
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 5,
			BcryptCost:            bcrypt.MinCost,
			AdminEmail:            AdminEmail,
			AdminPassword:         AdminPassword,
		},
		Storage: config.StorageConfig{
			Dir:            t.TempDir(),
			PublicBaseURL:  "http://files.test/files",
			MaxUploadBytes: 1 << 20,
		},
		Realtime: config.RealtimeConfig{
			Driver:           config.RealtimeDriverMemory,
			SubscriberBuffer: 16,
			Heartbeat:        200 * time.Millisecond,
		},
		Tags: config.TagsConfig{DefaultColor: "#3b82f6", CacheTTL: time.Minute},
	}
}

// New builds a server from Config and closes it when the test ends.
func New(t testing.TB) *app.Server {
	t.Helper()
	srv, err := app.New(context.Background(), Config(t), zap.NewNop(), observability.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

// Serve listens on a loopback port and returns the base URL.
func Serve(t testing.TB, srv *app.Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.App.Listener(ln) }()
	t.Cleanup(func() { _ = srv.App.ShutdownWithTimeout(time.Second) })
	return "http://" + ln.Addr().String()
}

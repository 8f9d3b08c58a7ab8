package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/savvyindians/go-lms-auth/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:       config.EnvTest,
		SecretKey: "a-test-secret-that-is-long-enough-for-hmac",
		Site:      config.SiteConfig{URL: "http://lms.example.com"},
		Server:    config.ServerConfig{Addr: ":0"},
		Database:  config.DatabaseConfig{URL: "file:" + t.Name() + "?mode=memory&cache=shared"},
		Session: config.SessionConfig{
			Store:       config.SessionStoreSQL,
			TTL:         24 * time.Hour,
			RememberTTL: 14 * 24 * time.Hour,
			CookieName:  "lms_session",
			SameSite:    "Lax",
		},
		Auth: config.AuthConfig{
			PhoneRegion:        "IN",
			BcryptCost:         4,
			ResetTimeout:       72 * time.Hour,
			MaxLoginAttempts:   5,
			LoginCoolDown:      24 * time.Hour,
			MaxUsernameRetries: 20,
		},
		Mail:  config.MailConfig{From: "noreply@example.com"},
		Media: config.MediaConfig{Root: t.TempDir(), URL: "/media/", StaticURL: "/static/"},
	}
}

func newTestCLI(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	app, err := NewApp(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	out := new(bytes.Buffer)
	return &commandLine{app: app, out: out}, out
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	cli, out := newTestCLI(t)

	err := cli.run(context.Background(), []string{"lms-auth"})
	assert.ErrorIs(t, err, errHelp)
	assert.Contains(t, out.String(), "Usage:")

	err = cli.run(context.Background(), []string{"lms-auth", "nope"})
	assert.ErrorIs(t, err, errHelp)
}

func TestEnsureSuperuserCommand(t *testing.T) {
	cli, out := newTestCLI(t)
	ctx := context.Background()

	err := cli.run(ctx, []string{"lms-auth", "ensure-superuser", "-username", "admin", "-email", "admin@example.com"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "superuser admin: created")
	assert.Contains(t, out.String(), "generated password:")

	out.Reset()
	err = cli.run(ctx, []string{"lms-auth", "ensure-superuser", "-username", "admin", "-email", "root@example.com"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "superuser admin: updated")

	user, err := cli.app.repo.Users().GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", user.Email)
	assert.True(t, user.IsSuperuser())
}

func TestEnsureSuperuserRequiresUsername(t *testing.T) {
	cli, _ := newTestCLI(t)
	err := cli.run(context.Background(), []string{"lms-auth", "ensure-superuser", "-email", "admin@example.com"})
	assert.ErrorIs(t, err, errHelp)
}

func TestCreateAndDeleteAccountCommands(t *testing.T) {
	cli, out := newTestCLI(t)
	ctx := context.Background()

	err := cli.run(ctx, []string{"lms-auth", "create-account", "-email", "grace@example.com", "-role", "lecturer"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "created Lecturer user_grace")

	user, err := cli.app.repo.Users().GetByUsername(ctx, "user_grace")
	require.NoError(t, err)
	assert.False(t, user.HasUsablePassword())

	out.Reset()
	err = cli.run(ctx, []string{"lms-auth", "delete-user", "-id", user.ID.String()})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "deleted "+user.ID.String())

	_, err = cli.app.repo.Users().GetByUsername(ctx, "user_grace")
	assert.True(t, auth.IsNotFound(err))
}

func TestPurgeSessionsCommand(t *testing.T) {
	cli, out := newTestCLI(t)

	require.NoError(t, cli.run(context.Background(), []string{"lms-auth", "purge-sessions"}))
	assert.Contains(t, out.String(), "purged 0 expired sessions")
}

func TestHTTPServerServesLoginPage(t *testing.T) {
	cli, _ := newTestCLI(t)
	require.NoError(t, WithHTTPServer(cli.app))

	resp, err := cli.app.fiberApp.Test(httptest.NewRequest("GET", "/accounts/student/login/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), `name="csrf_token"`)
	assert.True(t, strings.Contains(string(body), "Student login"))
}

func TestHTTPServerRejectsPostWithoutCSRFToken(t *testing.T) {
	cli, _ := newTestCLI(t)
	require.NoError(t, WithHTTPServer(cli.app))

	req := httptest.NewRequest("POST", "/accounts/student/login/", strings.NewReader("username=a%40b.com&password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := cli.app.fiberApp.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

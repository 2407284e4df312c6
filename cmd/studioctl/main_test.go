package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/app"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/config"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/store/memory"
)

type cliTestEnv struct {
	ctx      *commandContext
	services *app.Services
	cfg      *config.Config
	store    *countingCloser
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

type fakeFeed struct {
	events.Recorder
	closed int
}

func (f *fakeFeed) Close() error {
	f.closed++
	return nil
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTIssuer = "voicestudio"
	cfg.Import.TimeZone = "UTC"

	store := memory.New()
	closer := &countingCloser{}

	ctx := newCommandContext()
	ctx.loadConfig = func() (*config.Config, error) { return cfg, nil }
	ctx.openStore = func(*config.Config) (app.Store, io.Closer, error) { return store, closer, nil }
	ctx.dialRedis = func(context.Context, string, string) (feedPublisher, error) {
		return nil, errors.New("redis is not configured in tests")
	}

	return &cliTestEnv{
		ctx:      ctx,
		services: app.NewServices(store, app.Options{}),
		cfg:      cfg,
		store:    closer,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand(e.ctx)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func writeExport(t *testing.T, rows string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vendas.csv")
	content := "Data;ID do pagamento;ID do cliente;Créditos;Tipo;Valor\n" + rows
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestTokenCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	id := uuid.New()

	out, err := env.run(t, "token", id.String(), "--role", "admin")
	require.NoError(t, err)

	actor, err := auth.NewVerifier("test-secret", "voicestudio").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, account.Actor{AccountID: id, Role: account.RoleAdmin}, actor)

	_, err = env.run(t, "token", id.String(), "--role", "system")
	assert.ErrorContains(t, err, "role must be")

	_, err = env.run(t, "token", "nope")
	assert.ErrorContains(t, err, "invalid account id")
}

func TestImportCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	client := uuid.New()

	first := writeExport(t, fmt.Sprintf("10/03/2026;PAY-1;%s;3;gravação;30,00\n", client))

	out, err := env.run(t, "import", first)
	require.NoError(t, err)
	assert.Contains(t, out, "Granted 1 purchase(s)")
	assert.Contains(t, out, "PAY-1")
	assert.Contains(t, out, "R$ 30,00")

	second := writeExport(t, fmt.Sprintf(
		"10/03/2026;PAY-1;%[1]s;3;gravação;30,00\n11/03/2026;PAY-2;%[1]s;7;ia;19,90\n", client))

	out, err = env.run(t, "import", second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-run with --confirm")
	assert.Contains(t, out, "1 reference(s) already granted")

	bal, err := env.services.Credits.Balance(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.AI)

	out, err = env.run(t, "import", second, "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "Granted 1 new purchase(s)")

	bal, err = env.services.Credits.Balance(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Recording)
	assert.Equal(t, int64(7), bal.AI)
}

func TestImportCommand_PublishesToRedisFeed(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Redis.URL = "redis://feed.internal:6379/0"
	env.cfg.Redis.Channel = "studio.events"

	feed := &fakeFeed{}
	env.ctx.dialRedis = func(_ context.Context, url, channel string) (feedPublisher, error) {
		assert.Equal(t, "redis://feed.internal:6379/0", url)
		assert.Equal(t, "studio.events", channel)

		return feed, nil
	}

	client := uuid.New()

	_, err := env.run(t, "import", writeExport(t, fmt.Sprintf("10/03/2026;PAY-1;%s;3;gravação;30,00\n", client)))
	require.NoError(t, err)

	require.Len(t, feed.Events(), 1)
	assert.Equal(t, events.KindCreditsChanged, feed.Events()[0].Kind)
	assert.Equal(t, client, feed.Events()[0].AccountID)

	assert.Equal(t, 1, feed.closed)
	assert.Equal(t, 1, env.store.closed)
}

func TestServices_RedisUnavailable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Redis.URL = "redis://feed.internal:6379/0"

	_, err := env.run(t, "stats")
	assert.ErrorContains(t, err, "connecting to redis")
	assert.Equal(t, 1, env.store.closed)
}

func TestCommandsCloseStore(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "stats")
	require.NoError(t, err)

	_, err = env.run(t, "history", uuid.New().String())
	require.NoError(t, err)

	assert.Equal(t, 2, env.store.closed)
}

func TestImportCommand_BadFile(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "import", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "open export")

	_, err = env.run(t, "import", writeExport(t, "10/03/2026;PAY-1;nobody;3;ia;1,00\n"))
	assert.ErrorContains(t, err, "invalid account id")
}

func TestHistoryAndStatsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	client := uuid.New()

	_, err := env.run(t, "import", writeExport(t, fmt.Sprintf("10/03/2026;PAY-1;%s;3;gravação;30,00\n", client)))
	require.NoError(t, err)

	out, err := env.run(t, "history", client.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 3 recording, 0 AI")
	assert.Contains(t, out, "purchase")
	assert.Contains(t, out, "never")

	out, err = env.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Active clients")
	assert.Contains(t, out, "Outstanding recording credits")
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "R$ 0,05", formatCents(5))
	assert.Equal(t, "R$ 1234,56", formatCents(123456))
	assert.Equal(t, "-R$ 2,00", formatCents(-200))
}

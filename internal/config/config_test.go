package config_test

import (
	"os"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "voicestudio", cfg.DB.Name)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.Equal(t, "voicestudio.events", cfg.Redis.Channel)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, time.Duration(0), cfg.DefaultValidity())
	assert.Equal(t, "postgres://postgres:@localhost:5432/voicestudio?sslmode=disable", cfg.ConnectionString())
	assert.Equal(t, "voicestudio", cfg.Auth.JWTIssuer)

	loc, err := cfg.ImportLocation()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestLoad_BadTimeZone(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("IMPORT_TIMEZONE", "Mars/Olympus_Mons")

	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = cfg.ImportLocation()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("CREDITS_DEFAULT_VALIDITY_DAYS", "90")
	t.Setenv("CORS_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 90*24*time.Hour, cfg.DefaultValidity())
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := config.Load()
	assert.Error(t, err)
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test in an empty directory so a developer's .env
// does not leak into Load.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOMLThenEnv(t *testing.T) {
	dir := chdirTemp(t)

	path := filepath.Join(dir, "recipe.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000
trust_proxy = true
cors_origins = ["https://app.example.com"]

[db]
path = "/var/lib/recipes.db"

[storage]
backend = "s3"

[s3]
bucket = "recipes"
region = "eu-west-1"

[log]
level = "debug"
format = "json"
`), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("S3_BUCKET", "other-bucket")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env beats file")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, "/var/lib/recipes.db", cfg.DB.Path)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "other-bucket", cfg.S3.Bucket)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("JWT_SECRET=from-dotenv\nCORS_ORIGINS=http://a.test, http://b.test\n"), 0o644))

	t.Setenv("JWT_SECRET", "") // registers cleanup; then unset for the test
	os.Unsetenv("JWT_SECRET")
	t.Setenv("CORS_ORIGINS", "http://c.test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"http://c.test"}, cfg.Server.CORSOrigins, "process env beats .env")
}

func TestLoad_BadValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestLoad_MissingFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load("does-not-exist.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no db path", func(c *Config) { c.DB.Path = "" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }},
		{"zero upload size", func(c *Config) { c.Storage.MaxUploadMB = 0 }},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGitHubEnabled(t *testing.T) {
	assert.False(t, GitHubConfig{}.Enabled())
	assert.False(t, GitHubConfig{ClientID: "id"}.Enabled())
	assert.True(t, GitHubConfig{ClientID: "id", ClientSecret: "secret"}.Enabled())
}

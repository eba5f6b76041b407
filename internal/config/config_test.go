package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	flags.Bool("serve", false, "unrelated action flag")
	require.NoError(t, flags.Parse(args))
	return Load(flags)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "knolshare.db", cfg.DB.DSN)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "repos", cfg.Repos.Dir)
	assert.Empty(t, cfg.Repos.LocalRoot)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "knolshare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  driver: pgx
  dsn: postgres://file
http:
  addr: ":9000"
  read_timeout: 30s
log:
  level: debug
`), 0o644))

	t.Setenv("KNOLSHARE_DB_DSN", "postgres://env")
	t.Setenv("KNOLSHARE_HTTP_READ_TIMEOUT", "45s")
	t.Setenv("KNOLSHARE_REPOS_LOCAL_ROOT", "/srv/shared-decks")

	cfg, err := load(t, "--config", path, "--http-addr", ":7000")
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DB.Driver, "file beats defaults")
	assert.Equal(t, "postgres://env", cfg.DB.DSN, "env beats file")
	assert.Equal(t, 45*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, ":7000", cfg.HTTP.Addr, "set flags beat everything")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "untouched defaults survive")
	assert.Equal(t, "/srv/shared-decks", cfg.Repos.LocalRoot)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KNOLSHARE_REPOS_DIR=/srv/decks\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("KNOLSHARE_REPOS_DIR") })

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "/srv/decks", cfg.Repos.Dir)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	testCases := []struct {
		name string
		args []string
	}{
		{"unknown driver", []string{"--db-driver", "mysql"}},
		{"empty dsn", []string{"--db-dsn", ""}},
		{"bad log format", []string{"--log-format", "xml"}},
		{"bad timezone", []string{"--timezone", "Mars/Olympus"}},
		{"zero timeout", []string{"--http-read-timeout", "0s"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.args...)
			assert.ErrorContains(t, err, "invalid config")
		})
	}

	_, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "card_id", "abc")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"card_id":"abc"`)
}

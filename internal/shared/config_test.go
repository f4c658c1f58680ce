package shared

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pylift/internal/rules"
)

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pylift.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
analysis:
  enabled: [empty_catch, nullable_access]
  severity_override: {empty_catch: error}
  nullable_calls: [cache.lookup]
  jobs: 2
logging: {format: json, level: debug}
`), 0o644))
	t.Setenv("PYLIFT_JOBS", "7")
	t.Setenv("PYLIFT_DB_DSN", "file:test.db")

	c, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Analysis.Jobs)
	assert.Equal(t, "file:test.db", c.Database.DSN)
	assert.Equal(t, "json", c.Logging.Format)
	assert.Equal(t, []string{"*.py"}, c.Analysis.Include)
	assert.Equal(t, "./reports", c.Reporting.OutDir)

	s := c.Settings()
	assert.Equal(t, []string{"empty_catch", "nullable_access"}, s.Enabled)
	assert.Equal(t, []string{"cache.lookup"}, s.NullableCalls)
	descs, err := s.Select(rules.Builtin())
	require.NoError(t, err)
	require.Len(t, descs, 2)
}

func TestLoadConfigMissingAndMalformed(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Database.DSN, c.Database.DSN)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("analysis: [\n"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestUnknownPatternIsConfigurationError(t *testing.T) {
	t.Setenv("PYLIFT_ENABLED", "empty_catch, no_such_rule")
	c, err := LoadConfig("")
	require.NoError(t, err)
	_, err = c.Settings().Select(rules.Builtin())
	var ce *rules.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "no_such_rule", ce.Value)
}

func TestInitLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := InitLoggerTo(&buf, "json", "warn")
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

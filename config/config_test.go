package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/ledger-engine/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "./data/fintrack.db", cfg.Database.Path)
	assert.Equal(t, 180, cfg.Archive.MinAgeDays)
	assert.Equal(t, 2, cfg.Lineage.CCPaymentWindowDays)
	assert.Equal(t, 30, cfg.Lineage.RefundWindowDays)
	assert.Equal(t, 0.7, cfg.Lineage.SimilarityThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_AbsentKeysKeepDefaults(t *testing.T) {
	// GIVEN: a config file that only overrides the database path
	// THEN: every other field keeps its default

	path := filepath.Join(t.TempDir(), "fintrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/other.db\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 180, cfg.Archive.MinAgeDays)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FullFile(t *testing.T) {
	content := `database:
  path: ./test.db
archive:
  dir: ./cold
  min_age_days: 90
lineage:
  cc_payment_window_days: 3
  refund_window_days: 45
  similarity_threshold: 0.8
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "fintrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./cold", cfg.Archive.Dir)
	assert.Equal(t, 90, cfg.Archive.MinAgeDays)
	assert.Equal(t, 3, cfg.Lineage.CCPaymentWindowDays)
	assert.Equal(t, 45, cfg.Lineage.RefundWindowDays)
	assert.Equal(t, 0.8, cfg.Lineage.SimilarityThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not a map"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

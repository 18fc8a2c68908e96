package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("indexer")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, "munin", cfg.Container.Root)
	assert.False(t, cfg.ForceMerge.Enabled)
	assert.Equal(t, 1, cfg.ForceMerge.MaxNumberSegments)
	assert.False(t, cfg.Publication.Lock.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Publication.Lock.TTL)
	assert.Equal(t, 30*time.Second, cfg.Bulk.FlushInterval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	content := `
elasticsearch:
  addresses:
    - http://es-1:9200
    - http://es-2:9200
container:
  root: mimir
  updatable_fields: [population, weight]
force_merge:
  enabled: true
  max_number_segments: 2
bulk:
  flush_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://es-1:9200", "http://es-2:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, "mimir", cfg.Container.Root)
	assert.Equal(t, []string{"population", "weight"}, cfg.Container.UpdatableFields)
	assert.True(t, cfg.ForceMerge.Enabled)
	assert.Equal(t, 2, cfg.ForceMerge.MaxNumberSegments)
	assert.Equal(t, 5*time.Second, cfg.Bulk.FlushInterval)
	assert.Equal(t, 2, cfg.Bulk.Workers)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MIMIR_CONTAINER_ROOT", "envroot")
	t.Setenv("MIMIR_FORCE_MERGE_ENABLED", "true")

	chdir(t, t.TempDir())

	cfg, err := Load("indexer")
	require.NoError(t, err)
	assert.Equal(t, "envroot", cfg.Container.Root)
	assert.True(t, cfg.ForceMerge.Enabled)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Elasticsearch: ElasticsearchConfig{Addresses: []string{"http://localhost:9200"}},
		Bulk:          BulkConfig{Workers: 1},
	}
	assert.NoError(t, valid.Validate())

	noAddr := valid
	noAddr.Elasticsearch.Addresses = nil
	assert.Error(t, noAddr.Validate())

	badMerge := valid
	badMerge.ForceMerge = ForceMergeConfig{Enabled: true}
	assert.Error(t, badMerge.Validate())

	badCleanup := valid
	badCleanup.Cleanup = CleanupConfig{Enabled: true}
	assert.Error(t, badCleanup.Validate())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

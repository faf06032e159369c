package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Overrides(t *testing.T) {
	yamlContent := `
compaction:
  strategy: day_based
  target_partitions_per_day_based: 3
storage:
  backend: s3
  s3_prefix: warehouse
metastore:
  backend: redis
`
	cfg, err := Load(strings.NewReader(yamlContent))
	require.NoError(t, err)

	assert.Equal(t, StrategyDayBased, cfg.Compaction.Strategy)
	assert.Equal(t, 3, cfg.Compaction.TargetPartitionsPerDayBased)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "warehouse", cfg.Storage.S3Prefix)
	assert.Equal(t, MetaStoreRedis, cfg.MetaStore.Backend)

	// untouched defaults
	assert.Equal(t, int64(500*1024), cfg.Compaction.TargetIOPerCompactionMB)
	assert.Equal(t, 4, cfg.Compaction.PlanningParallelism)
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	for _, y := range []string{
		"compaction:\n  strategy: nope\n",
		"compaction:\n  target_io_per_compaction_mb: -1\n",
		"storage:\n  backend: ftp\n",
		"metastore:\n  backend: etcd\n",
	} {
		_, err := Load(strings.NewReader(y))
		assert.ErrorIs(t, err, ErrInvalidConfig, y)
	}

	_, err := Load(strings.NewReader("compaction: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, StrategyLogFileSize, cfg.Compaction.Strategy)

	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("compaction:\n  strategy: unbounded\n"), 0o644))
	cfg, err = LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, StrategyUnbounded, cfg.Compaction.Strategy)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

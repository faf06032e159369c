package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	StrategyUnbounded   = "unbounded"
	StrategyBoundedIO   = "bounded_io"
	StrategyLogFileSize = "log_file_size"
	StrategyDayBased    = "day_based"

	BackendDisk = "disk"
	BackendS3   = "s3"

	MetaStoreMemory = "memory"
	MetaStoreRedis  = "redis"
	MetaStoreCRDB   = "crdb"
)

var ErrInvalidConfig = errors.New("invalid config")

// CompactionConfig controls how the planner picks and orders file groups.
type CompactionConfig struct {
	Strategy string `yaml:"strategy"`
	// TargetIOPerCompactionMB bounds the read+write IO of one plan for the bounded strategies
	TargetIOPerCompactionMB int64 `yaml:"target_io_per_compaction_mb"`
	// TargetPartitionsPerDayBased is how many of the newest partitions day_based keeps
	TargetPartitionsPerDayBased int `yaml:"target_partitions_per_day_based"`
	PlanningParallelism         int `yaml:"planning_parallelism"`
}

// StorageConfig says where table files and compaction plans live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
	PlanDir string `yaml:"plan_dir"`
	// S3Prefix is prepended to table paths in the bucket for the s3 backend
	S3Prefix string `yaml:"s3_prefix"`
}

type MetaStoreConfig struct {
	Backend string `yaml:"backend"`
}

type Config struct {
	Compaction CompactionConfig `yaml:"compaction"`
	Storage    StorageConfig    `yaml:"storage"`
	MetaStore  MetaStoreConfig  `yaml:"metastore"`
}

func Default() *Config {
	return &Config{
		Compaction: CompactionConfig{
			Strategy:                    StrategyLogFileSize,
			TargetIOPerCompactionMB:     500 * 1024,
			TargetPartitionsPerDayBased: 10,
			PlanningParallelism:         4,
		},
		Storage: StorageConfig{
			Backend: BackendDisk,
			DataDir: "./data",
			PlanDir: "./data/.plans",
		},
		MetaStore: MetaStoreConfig{
			Backend: MetaStoreMemory,
		},
	}
}

// Load overlays YAML from r on the defaults
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if r != nil {
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error in yaml Decode: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the config at path, or the defaults when path is empty
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load(nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error in os.Open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c *Config) Validate() error {
	switch c.Compaction.Strategy {
	case StrategyUnbounded, StrategyBoundedIO, StrategyLogFileSize, StrategyDayBased:
	default:
		return fmt.Errorf("%w: unknown compaction strategy %q", ErrInvalidConfig, c.Compaction.Strategy)
	}
	if c.Compaction.TargetIOPerCompactionMB <= 0 {
		return fmt.Errorf("%w: target_io_per_compaction_mb must be positive", ErrInvalidConfig)
	}
	if c.Compaction.TargetPartitionsPerDayBased <= 0 {
		return fmt.Errorf("%w: target_partitions_per_day_based must be positive", ErrInvalidConfig)
	}
	if c.Compaction.PlanningParallelism <= 0 {
		return fmt.Errorf("%w: planning_parallelism must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Backend {
	case BackendDisk, BackendS3:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	switch c.MetaStore.Backend {
	case MetaStoreMemory, MetaStoreRedis, MetaStoreCRDB:
	default:
		return fmt.Errorf("%w: unknown metastore backend %q", ErrInvalidConfig, c.MetaStore.Backend)
	}
	return nil
}

package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danthegoodman1/icemor/compaction"
	"github.com/danthegoodman1/icemor/config"
	"github.com/danthegoodman1/icemor/metrics"
	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/partition"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Metric keys attached to every planned operation
const (
	MetricTotalLogFiles     = "TOTAL_LOG_FILES"
	MetricTotalLogFilesSize = "TOTAL_LOG_FILES_SIZE"
	MetricTotalIOReadMB     = "TOTAL_IO_READ_MB"
	MetricTotalIOWriteMB    = "TOTAL_IO_WRITE_MB"
	MetricTotalIOMB         = "TOTAL_IO_MB"
)

const bytesPerMB = 1024 * 1024

type Planner struct {
	cfg  config.CompactionConfig
	conv compaction.PathConvention
}

func New(cfg config.CompactionConfig, conv compaction.PathConvention) *Planner {
	return &Planner{cfg: cfg, conv: conv}
}

// Plan picks the file groups to compact out of slicesByPartition and returns
// their operations in priority order. File groups present in pending already
// belong to a scheduled compaction and are left out, as are slices with no log
// files since there is nothing to merge.
func (p *Planner) Plan(ctx context.Context, slicesByPartition map[string][]model.FileSlice, pending map[model.FileGroupID]string) ([]*compaction.Operation, error) {
	logger := zerolog.Ctx(ctx)
	start := time.Now()
	defer func() {
		metrics.PlanningDuration.Observe(time.Since(start).Seconds())
	}()

	partitions := p.selectPartitions(utils.SortedKeys(slicesByPartition))
	logger.Debug().Str("strategy", p.cfg.Strategy).Int("partitions", len(partitions)).Msg("planning compaction")

	perPartition := make([][]*compaction.Operation, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.PlanningParallelism)
	for i, part := range partitions {
		i, part := i, part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ops, err := p.partitionOperations(part, slicesByPartition[part], pending)
			if err != nil {
				return fmt.Errorf("error planning partition %s: %w", part, err)
			}
			perPartition[i] = ops
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[model.FileGroupID]struct{})
	var ops []*compaction.Operation
	for _, partOps := range perPartition {
		for _, op := range partOps {
			if _, exists := seen[op.FileGroupID()]; exists {
				metrics.FileGroupsSkippedTotal.WithLabelValues("duplicate").Inc()
				continue
			}
			seen[op.FileGroupID()] = struct{}{}
			ops = append(ops, op)
		}
	}

	ops = p.orderAndFilter(ops)
	for _, op := range ops {
		metrics.PlannedLogBytes.Observe(op.Metric(MetricTotalLogFilesSize))
	}
	metrics.OperationsPlannedTotal.WithLabelValues(p.cfg.Strategy).Add(float64(len(ops)))
	logger.Debug().Int("operations", len(ops)).Str("duration", time.Since(start).String()).Msg("planned compaction")
	return ops, nil
}

func (p *Planner) selectPartitions(partitions []string) []string {
	if p.cfg.Strategy != config.StrategyDayBased {
		return partitions
	}
	partition.SortByDateDesc(partitions)
	if len(partitions) > p.cfg.TargetPartitionsPerDayBased {
		partitions = partitions[:p.cfg.TargetPartitionsPerDayBased]
	}
	return partitions
}

func (p *Planner) partitionOperations(partitionPath string, slices []model.FileSlice, pending map[model.FileGroupID]string) ([]*compaction.Operation, error) {
	var ops []*compaction.Operation
	for _, slice := range slices {
		if _, isPending := pending[slice.ID]; isPending {
			metrics.FileGroupsSkippedTotal.WithLabelValues("pending").Inc()
			continue
		}
		if len(slice.LogFiles) == 0 {
			metrics.FileGroupsSkippedTotal.WithLabelValues("no_logs").Inc()
			continue
		}

		// avoid handing a typed nil to the interface
		var base compaction.BaseFile
		if slice.BaseFile != nil {
			base = slice.BaseFile
		}
		op, err := compaction.NewOperation(p.conv, base, partitionPath, slice.LogFiles, SliceMetrics(slice))
		if err != nil {
			return nil, fmt.Errorf("error in NewOperation for %s: %w", slice.ID, err)
		}
		ops = append(ops, op)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].FileID() < ops[j].FileID()
	})
	return ops, nil
}

// SliceMetrics computes the planner metrics of a file slice. Compaction reads
// the base file and every log, and writes roughly the base file again, or the
// logs' worth of data when there is no base yet.
func SliceMetrics(slice model.FileSlice) map[string]float64 {
	logSize := float64(slice.LogFilesSize())
	baseSize := float64(slice.BaseFileSize())

	readMB := (baseSize + logSize) / bytesPerMB
	writeMB := baseSize / bytesPerMB
	if slice.BaseFile == nil {
		writeMB = logSize / bytesPerMB
	}

	return map[string]float64{
		MetricTotalLogFiles:     float64(len(slice.LogFiles)),
		MetricTotalLogFilesSize: logSize,
		MetricTotalIOReadMB:     readMB,
		MetricTotalIOWriteMB:    writeMB,
		MetricTotalIOMB:         readMB + writeMB,
	}
}

func (p *Planner) orderAndFilter(ops []*compaction.Operation) []*compaction.Operation {
	switch p.cfg.Strategy {
	case config.StrategyBoundedIO:
		return p.boundIO(ops)
	case config.StrategyLogFileSize:
		sort.SliceStable(ops, func(i, j int) bool {
			return ops[i].Metric(MetricTotalLogFilesSize) > ops[j].Metric(MetricTotalLogFilesSize)
		})
		return p.boundIO(ops)
	default:
		return ops
	}
}

// boundIO keeps operations in order until the IO budget is spent. The
// operation that crosses the budget is still included.
func (p *Planner) boundIO(ops []*compaction.Operation) []*compaction.Operation {
	remaining := float64(p.cfg.TargetIOPerCompactionMB)
	var out []*compaction.Operation
	for _, op := range ops {
		if remaining <= 0 {
			metrics.FileGroupsSkippedTotal.WithLabelValues("io_budget").Inc()
			continue
		}
		out = append(out, op)
		remaining -= op.Metric(MetricTotalIOMB)
	}
	return out
}

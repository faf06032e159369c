// Package compaction describes the unit of work that merges one file group's
// base file and delta logs into a new base file.
package compaction

import (
	"fmt"

	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/record"
	"github.com/danthegoodman1/icemor/utils"
)

var ErrInvalidOperationState = utils.PermError("invalid compaction operation state: no base file and no log files")

type (
	// BaseFile is the current base file version of a file group
	BaseFile interface {
		CommitTime() string
		Path() string
		FileID() string
	}

	LogFile interface {
		Path() string
	}

	// PathConvention derives file group identity from a log file path
	PathConvention interface {
		BaseCommitTimeFromLogPath(path string) (string, error)
		FileIDFromLogPath(path string) (string, error)
	}

	// Operation is immutable once built. dataFilePath and dataFileCommitTime are
	// both set when built from a base file, and both nil for a log-only file
	// group. FromRecord sets dataFilePath without dataFileCommitTime since the
	// record carries no commit time.
	Operation struct {
		baseInstantTime    string
		dataFileCommitTime *string
		dataFilePath       *string
		deltaFilePaths     []string
		id                 model.FileGroupID
		metrics            map[string]float64
	}
)

// NewOperation builds an operation from live file handles. base may be nil, in
// which case logs must be non-empty and the first log's path provides the base
// instant and file id.
func NewOperation[L LogFile](conv PathConvention, base BaseFile, partitionPath string, logs []L, metrics map[string]float64) (*Operation, error) {
	op := &Operation{
		deltaFilePaths: make([]string, len(logs)),
		metrics:        utils.MapOrEmpty(metrics),
	}
	for i, l := range logs {
		op.deltaFilePaths[i] = l.Path()
	}

	if base != nil {
		commitTime := base.CommitTime()
		op.baseInstantTime = commitTime
		op.dataFileCommitTime = &commitTime
		op.dataFilePath = utils.Ptr(base.Path())
		op.id = model.NewFileGroupID(partitionPath, base.FileID())
		return op, nil
	}

	if len(logs) == 0 {
		return nil, ErrInvalidOperationState
	}
	first := logs[0].Path()
	baseInstant, err := conv.BaseCommitTimeFromLogPath(first)
	if err != nil {
		return nil, fmt.Errorf("error in BaseCommitTimeFromLogPath: %w", err)
	}
	fileID, err := conv.FileIDFromLogPath(first)
	if err != nil {
		return nil, fmt.Errorf("error in FileIDFromLogPath: %w", err)
	}
	op.baseInstantTime = baseInstant
	op.id = model.NewFileGroupID(partitionPath, fileID)
	return op, nil
}

// FromRecord rebuilds an operation from a persisted plan row. It does not
// validate paths and never sets the data file commit time.
func FromRecord(r record.CompactionOperationRecord) *Operation {
	op := &Operation{
		baseInstantTime: r.BaseInstantTime,
		deltaFilePaths:  append(make([]string, 0, len(r.DeltaFilePaths)), r.DeltaFilePaths...),
		id:              model.NewFileGroupID(r.PartitionPath, r.FileID),
		metrics:         utils.MapOrEmpty(r.Metrics),
	}
	if r.DataFilePath != nil {
		op.dataFilePath = utils.Ptr(*r.DataFilePath)
	}
	return op
}

func (op *Operation) BaseInstantTime() string {
	return op.baseInstantTime
}

func (op *Operation) DataFileCommitTime() (string, bool) {
	if op.dataFileCommitTime == nil {
		return "", false
	}
	return *op.dataFileCommitTime, true
}

func (op *Operation) DataFilePath() (string, bool) {
	if op.dataFilePath == nil {
		return "", false
	}
	return *op.dataFilePath, true
}

// DeltaFilePaths returns a copy of the log paths in merge replay order
func (op *Operation) DeltaFilePaths() []string {
	return append(make([]string, 0, len(op.deltaFilePaths)), op.deltaFilePaths...)
}

func (op *Operation) FileID() string {
	return op.id.FileID
}

func (op *Operation) PartitionPath() string {
	return op.id.PartitionPath
}

// Metrics returns a copy of the planner metrics
func (op *Operation) Metrics() map[string]float64 {
	return utils.MapOrEmpty(op.metrics)
}

// Metric returns a single planner metric, 0 when unset
func (op *Operation) Metric(name string) float64 {
	return op.metrics[name]
}

func (op *Operation) FileGroupID() model.FileGroupID {
	return op.id
}

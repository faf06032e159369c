// Package plan serializes compaction plans: the set of operations scheduled
// together at one instant.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danthegoodman1/icemor/compaction"
	"github.com/danthegoodman1/icemor/record"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

var ErrPlanNotFound = errors.New("compaction plan not found")

type Plan struct {
	InstantTime string
	Operations  []*compaction.Operation
}

// OperationToRecord is the inverse of compaction.FromRecord. The data file
// commit time has no column in the record and is dropped.
func OperationToRecord(op *compaction.Operation) record.CompactionOperationRecord {
	r := record.CompactionOperationRecord{
		BaseInstantTime: op.BaseInstantTime(),
		DeltaFilePaths:  op.DeltaFilePaths(),
		PartitionPath:   op.PartitionPath(),
		FileID:          op.FileID(),
		Metrics:         op.Metrics(),
	}
	if p, ok := op.DataFilePath(); ok {
		r.DataFilePath = utils.Ptr(p)
	}
	return r
}

func (p *Plan) ToRecords() []record.CompactionOperationRecord {
	records := make([]record.CompactionOperationRecord, len(p.Operations))
	for i, op := range p.Operations {
		records[i] = OperationToRecord(op)
	}
	return records
}

func FromRecords(instant string, records []record.CompactionOperationRecord) *Plan {
	p := &Plan{
		InstantTime: instant,
		Operations:  make([]*compaction.Operation, len(records)),
	}
	for i, r := range records {
		p.Operations[i] = compaction.FromRecord(r)
	}
	return p
}

func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		InstantTime string                             `json:"instantTime"`
		Operations  []record.CompactionOperationRecord `json:"operations"`
	}{
		InstantTime: p.InstantTime,
		Operations:  p.ToRecords(),
	})
}

// Encode writes the plan's operations as parquet rows, one row per operation
func Encode(w io.Writer, p *Plan) error {
	pw, err := writer.NewParquetWriterFromWriter(w, new(record.CompactionOperationRecord), 4)
	if err != nil {
		return fmt.Errorf("error in NewParquetWriterFromWriter: %w", err)
	}
	for _, r := range p.ToRecords() {
		if err = pw.Write(r); err != nil {
			return fmt.Errorf("error in pw.Write for file group %s/%s: %w", r.PartitionPath, r.FileID, err)
		}
	}
	if err = pw.WriteStop(); err != nil {
		return fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return nil
}

// Decode reads a plan written by Encode. The instant is not stored in the file.
func Decode(instant string, f source.ParquetFile) (*Plan, error) {
	pr, err := reader.NewParquetReader(f, new(record.CompactionOperationRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("error in NewParquetReader: %w", err)
	}
	defer pr.ReadStop()

	records := make([]record.CompactionOperationRecord, pr.GetNumRows())
	if err = pr.Read(&records); err != nil {
		return nil, fmt.Errorf("error in pr.Read: %w", err)
	}
	return FromRecords(instant, records), nil
}

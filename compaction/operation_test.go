package compaction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/record"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	stubBase struct {
		commitTime, path, fileID string
	}

	stubLog string

	// stubConvention treats the log path as "{fileId}@{baseInstant}" and counts calls
	stubConvention struct {
		calls []string
	}
)

func (b stubBase) CommitTime() string { return b.commitTime }
func (b stubBase) Path() string       { return b.path }
func (b stubBase) FileID() string     { return b.fileID }

func (l stubLog) Path() string { return string(l) }

var errUnparsable = errors.New("unparsable log path")

func (c *stubConvention) split(p string) (string, string, error) {
	c.calls = append(c.calls, p)
	for i := range p {
		if p[i] == '@' {
			return p[:i], p[i+1:], nil
		}
	}
	return "", "", errUnparsable
}

func (c *stubConvention) BaseCommitTimeFromLogPath(p string) (string, error) {
	_, inst, err := c.split(p)
	return inst, err
}

func (c *stubConvention) FileIDFromLogPath(p string) (string, error) {
	fid, _, err := c.split(p)
	return fid, err
}

func TestScenarioBaseFile(t *testing.T) {
	conv := &stubConvention{}
	base := stubBase{commitTime: "20230101010101", path: "f1_20230101010101.parquet", fileID: "f1"}
	logs := []stubLog{"f1.log.1", "f1.log.2"}

	op, err := NewOperation(conv, base, "2023/01/01", logs, map[string]float64{"total_log_size": 1024.0})
	require.NoError(t, err)

	assert.Equal(t, "20230101010101", op.BaseInstantTime())
	ct, ok := op.DataFileCommitTime()
	assert.True(t, ok)
	assert.Equal(t, "20230101010101", ct)
	dp, ok := op.DataFilePath()
	assert.True(t, ok)
	assert.Equal(t, "f1_20230101010101.parquet", dp)
	assert.Equal(t, []string{"f1.log.1", "f1.log.2"}, op.DeltaFilePaths())
	assert.Equal(t, model.FileGroupID{PartitionPath: "2023/01/01", FileID: "f1"}, op.FileGroupID())
	assert.Equal(t, "f1", op.FileID())
	assert.Equal(t, "2023/01/01", op.PartitionPath())
	assert.Equal(t, map[string]float64{"total_log_size": 1024.0}, op.Metrics())

	// the convention is never consulted when a base file exists
	assert.Empty(t, conv.calls)
}

func TestBaseFileWithoutLogs(t *testing.T) {
	op, err := NewOperation[stubLog](&stubConvention{}, stubBase{"5", "p", "f"}, "d", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, op.DeltaFilePaths())
	assert.NotNil(t, op.Metrics())
}

func TestLogOnlyUsesFirstLog(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			conv := &stubConvention{}
			logs := []stubLog{"fidA@100"}
			for i := 1; i < n; i++ {
				logs = append(logs, stubLog(fmt.Sprintf("fidB@%d", 200+i)))
			}

			op, err := NewOperation(conv, nil, "part", logs, nil)
			require.NoError(t, err)

			_, ok := op.DataFilePath()
			assert.False(t, ok)
			_, ok = op.DataFileCommitTime()
			assert.False(t, ok)
			assert.Equal(t, "100", op.BaseInstantTime())
			assert.Equal(t, model.NewFileGroupID("part", "fidA"), op.FileGroupID())
			for _, c := range conv.calls {
				assert.Equal(t, "fidA@100", c)
			}
		})
	}
}

func TestLogOnlyWithRealConvention(t *testing.T) {
	var logs []model.LogFile
	for v := 1; v <= 3; v++ {
		lf, err := model.NewLogFile("tbl/2023/01/01/"+fsutils.MakeLogFileName("f9", "20230101000000", v, ""), 1)
		require.NoError(t, err)
		logs = append(logs, lf)
	}

	op, err := NewOperation(fsutils.Convention{}, nil, "2023/01/01", logs, nil)
	require.NoError(t, err)
	assert.Equal(t, "20230101000000", op.BaseInstantTime())
	assert.Equal(t, "f9", op.FileID())
	assert.Len(t, op.DeltaFilePaths(), 3)
}

func TestOrderPreserved(t *testing.T) {
	cases := [][]stubLog{
		{"a@1"},
		{"a@1", "a@1"},
		{"a@1", "b@2", "a@1", "c@0", "b@2"},
	}
	for _, logs := range cases {
		op, err := NewOperation(&stubConvention{}, nil, "p", logs, nil)
		require.NoError(t, err)
		want := make([]string, len(logs))
		for i, l := range logs {
			want[i] = string(l)
		}
		assert.Equal(t, want, op.DeltaFilePaths())
	}
}

func TestNoBaseNoLogs(t *testing.T) {
	conv := &stubConvention{}
	op, err := NewOperation[stubLog](conv, nil, "p", nil, nil)
	assert.Nil(t, op)
	assert.ErrorIs(t, err, ErrInvalidOperationState)
	assert.True(t, utils.IsPermanent(err))

	op, err = NewOperation(conv, nil, "p", []stubLog{}, map[string]float64{"x": 1})
	assert.Nil(t, op)
	assert.ErrorIs(t, err, ErrInvalidOperationState)
	assert.Empty(t, conv.calls)
}

func TestConventionErrorPropagates(t *testing.T) {
	op, err := NewOperation(&stubConvention{}, nil, "p", []stubLog{"no-separator"}, nil)
	assert.Nil(t, op)
	assert.ErrorIs(t, err, errUnparsable)
	assert.NotErrorIs(t, err, ErrInvalidOperationState)
}

func TestImmutableViews(t *testing.T) {
	metrics := map[string]float64{"m": 1}
	logs := []stubLog{"a@1", "a@1"}
	op, err := NewOperation(&stubConvention{}, nil, "p", logs, metrics)
	require.NoError(t, err)

	metrics["m"] = 2
	logs[0] = "mutated@9"
	paths := op.DeltaFilePaths()
	paths[1] = "mutated"
	m := op.Metrics()
	m["m"] = 3

	assert.Equal(t, []string{"a@1", "a@1"}, op.DeltaFilePaths())
	assert.Equal(t, 1.0, op.Metric("m"))
}

func TestFromRecord(t *testing.T) {
	r := record.CompactionOperationRecord{
		BaseInstantTime: "300",
		DataFilePath:    utils.Ptr("2023/01/01/f1_0-0-0_300.parquet"),
		DeltaFilePaths:  []string{"l1", "l2"},
		PartitionPath:   "2023/01/01",
		FileID:          "f1",
		Metrics:         map[string]float64{"TOTAL_LOG_FILES": 2},
	}
	op := FromRecord(r)

	assert.Equal(t, "300", op.BaseInstantTime())
	dp, ok := op.DataFilePath()
	assert.True(t, ok)
	assert.Equal(t, "2023/01/01/f1_0-0-0_300.parquet", dp)
	// commit time is not part of the record
	_, ok = op.DataFileCommitTime()
	assert.False(t, ok)
	assert.Equal(t, []string{"l1", "l2"}, op.DeltaFilePaths())
	assert.Equal(t, model.NewFileGroupID("2023/01/01", "f1"), op.FileGroupID())
	assert.Equal(t, 2.0, op.Metric("TOTAL_LOG_FILES"))

	r.DeltaFilePaths[0] = "changed"
	assert.Equal(t, "l1", op.DeltaFilePaths()[0])
}

func TestFromRecordUnsetFields(t *testing.T) {
	op := FromRecord(record.CompactionOperationRecord{
		BaseInstantTime: "1",
		DeltaFilePaths:  []string{"l"},
		PartitionPath:   "p",
		FileID:          "f",
	})
	_, ok := op.DataFilePath()
	assert.False(t, ok)
	assert.NotNil(t, op.Metrics())
	assert.Len(t, op.Metrics(), 0)
}

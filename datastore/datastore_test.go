package datastore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

func TestBuildFileSlicesLatestSlice(t *testing.T) {
	files := []FileInfo{
		{Path: fsutils.MakeDataFileName("100", "0-0-0", "a"), Size: 50},
		{Path: fsutils.MakeDataFileName("200", "0-0-0", "a"), Size: 60},
		{Path: fsutils.MakeLogFileName("a", "100", 1, ""), Size: 1},
		{Path: fsutils.MakeLogFileName("a", "200", 2, ""), Size: 2},
		{Path: fsutils.MakeLogFileName("a", "200", 1, ""), Size: 3},
		// log-only group
		{Path: fsutils.MakeLogFileName("b", "150", 1, ""), Size: 4},
		// compaction scheduled at 300, new logs land before the base file exists
		{Path: fsutils.MakeDataFileName("100", "0-0-0", "c"), Size: 5},
		{Path: fsutils.MakeLogFileName("c", "300", 1, ""), Size: 6},
		{Path: "README.md", Size: 1},
	}

	slices, err := BuildFileSlices(context.Background(), "p", files)
	require.NoError(t, err)
	require.Len(t, slices, 3)

	a := slices[0]
	assert.Equal(t, "a", a.ID.FileID)
	assert.Equal(t, "p", a.ID.PartitionPath)
	assert.Equal(t, "200", a.BaseInstant)
	require.NotNil(t, a.BaseFile)
	assert.Equal(t, "200", a.BaseFile.CommitTime())
	require.Len(t, a.LogFiles, 2)
	assert.Equal(t, 1, a.LogFiles[0].Version())
	assert.Equal(t, 2, a.LogFiles[1].Version())

	b := slices[1]
	assert.Nil(t, b.BaseFile)
	assert.Equal(t, "150", b.BaseInstant)
	assert.Len(t, b.LogFiles, 1)

	c := slices[2]
	assert.Nil(t, c.BaseFile)
	assert.Equal(t, "300", c.BaseInstant)
	assert.Len(t, c.LogFiles, 1)
}

func TestBuildFileSlicesUnderscoreFileID(t *testing.T) {
	files := []FileInfo{
		{Path: "p/" + fsutils.MakeDataFileName("100", "0-0-0", "f_1"), Size: 10},
		{Path: "p/" + fsutils.MakeLogFileName("f_1", "100", 1, ""), Size: 1},
	}

	slices, err := BuildFileSlices(context.Background(), "p", files)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, "f_1", slices[0].ID.FileID)
	assert.Equal(t, "100", slices[0].BaseInstant)
	require.NotNil(t, slices[0].BaseFile)
	assert.Equal(t, "f_1", slices[0].BaseFile.FileID())
	assert.Len(t, slices[0].LogFiles, 1)
}

func TestDiskView(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	part := filepath.Join(root, "events", "2023", "01", "01")
	writeFile(t, part, fsutils.MakeDataFileName("100", "0-0-0", "f1"), 10)
	writeFile(t, part, fsutils.MakeLogFileName("f1", "100", 1, ""), 7)
	writeFile(t, filepath.Join(root, "events", "2023", "01", "02"), fsutils.MakeLogFileName("f2", "100", 1, ""), 3)
	writeFile(t, filepath.Join(root, "events", "empty"), "notes.txt", 1)

	dv, err := NewDiskView(root)
	require.NoError(t, err)

	partitions, err := dv.ListPartitions(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, []string{"2023/01/01", "2023/01/02"}, partitions)

	slices, err := dv.ListFileSlices(ctx, "events", "2023/01/01")
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, int64(10), slices[0].BaseFileSize())
	assert.Equal(t, int64(7), slices[0].LogFilesSize())
	assert.Equal(t, filepath.Join(part, fsutils.MakeLogFileName("f1", "100", 1, "")), slices[0].LogFiles[0].Path())

	_, err = dv.ListFileSlices(ctx, "events", "2099/01/01")
	assert.ErrorIs(t, err, ErrPartitionNotFound)

	partitions, err = dv.ListPartitions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, partitions)
}

func TestDiskViewRejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "outside"), fsutils.MakeLogFileName("f1", "100", 1, ""), 1)
	root := filepath.Join(base, "data")
	writeFile(t, filepath.Join(root, "events"), fsutils.MakeLogFileName("f1", "100", 1, ""), 1)

	dv, err := NewDiskView(root)
	require.NoError(t, err)

	_, err = dv.ListPartitions(ctx, "..")
	assert.ErrorIs(t, err, fsutils.ErrUnsafePath)
	_, err = dv.ListFileSlices(ctx, "..", "outside")
	assert.ErrorIs(t, err, fsutils.ErrUnsafePath)
	for _, part := range []string{"../outside", "/outside", "a//b", "./x"} {
		_, err = dv.ListFileSlices(ctx, "events", part)
		assert.ErrorIs(t, err, fsutils.ErrUnsafePath, part)
	}

	// the table root of a non-partitioned table is still reachable
	slices, err := dv.ListFileSlices(ctx, "events", "")
	require.NoError(t, err)
	assert.Len(t, slices, 1)
}

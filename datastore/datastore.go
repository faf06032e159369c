package datastore

import (
	"context"
	"fmt"
	"sort"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/model"
	"github.com/rs/zerolog"
)

type (
	// FileSystemView exposes the current file slices of a table's partitions
	FileSystemView interface {
		// ListPartitions returns every partition path of the table holding data or log files
		ListPartitions(ctx context.Context, table string) ([]string, error)
		// ListFileSlices returns the latest file slice of each file group in the partition, ordered by file id
		ListFileSlices(ctx context.Context, table, partition string) ([]model.FileSlice, error)
	}

	FileInfo struct {
		Path string
		Size int64
	}
)

// checkLocation keeps table and partition inside the view's root
func checkLocation(table, partition string) error {
	if err := fsutils.CheckTableName(table); err != nil {
		return err
	}
	return fsutils.CheckPartitionPath(partition)
}

// BuildFileSlices groups files by file group and keeps each group's latest
// slice: the newest instant across base files and log base instants, the base
// file committed at that instant if there is one, and the logs written against
// it in version order. Files that are neither data nor log files are ignored.
func BuildFileSlices(ctx context.Context, partition string, files []FileInfo) ([]model.FileSlice, error) {
	logger := zerolog.Ctx(ctx)

	type group struct {
		bases map[string]*model.DataFile
		logs  []model.LogFile
	}
	groups := make(map[string]*group)
	getGroup := func(fileID string) *group {
		g, ok := groups[fileID]
		if !ok {
			g = &group{bases: make(map[string]*model.DataFile)}
			groups[fileID] = g
		}
		return g
	}

	for _, f := range files {
		switch {
		case fsutils.IsDataFile(f.Path):
			df, err := model.NewDataFile(f.Path, f.Size)
			if err != nil {
				return nil, fmt.Errorf("error in NewDataFile: %w", err)
			}
			getGroup(df.FileID()).bases[df.CommitTime()] = df
		case fsutils.IsLogFile(f.Path):
			lf, err := model.NewLogFile(f.Path, f.Size)
			if err != nil {
				return nil, fmt.Errorf("error in NewLogFile: %w", err)
			}
			g := getGroup(lf.FileID())
			g.logs = append(g.logs, lf)
		default:
			logger.Debug().Str("path", f.Path).Msg("skipping unrecognized file")
		}
	}

	slices := make([]model.FileSlice, 0, len(groups))
	for fileID, g := range groups {
		latest := ""
		for instant := range g.bases {
			if instant > latest {
				latest = instant
			}
		}
		for _, l := range g.logs {
			if l.BaseCommitTime() > latest {
				latest = l.BaseCommitTime()
			}
		}

		slice := model.FileSlice{
			ID:          model.NewFileGroupID(partition, fileID),
			BaseInstant: latest,
			BaseFile:    g.bases[latest],
		}
		for _, l := range g.logs {
			if l.BaseCommitTime() == latest {
				slice.LogFiles = append(slice.LogFiles, l)
			}
		}
		model.SortLogFiles(slice.LogFiles)
		slices = append(slices, slice)
	}

	sort.Slice(slices, func(i, j int) bool {
		return slices[i].ID.FileID < slices[j].ID.FileID
	})
	return slices, nil
}

package datastore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/model"
)

var ErrPartitionNotFound = errors.New("partition not found")

type (
	// DiskView reads table files laid out as {root}/{table}/{partition}/{file}
	DiskView struct {
		rootPath string
	}
)

func NewDiskView(rootPath string) (*DiskView, error) {
	dv := &DiskView{
		rootPath: rootPath,
	}

	return dv, nil
}

func (dv *DiskView) ListPartitions(_ context.Context, table string) ([]string, error) {
	if err := fsutils.CheckTableName(table); err != nil {
		return nil, err
	}
	tableRoot := filepath.Join(dv.rootPath, table)
	found := make(map[string]struct{})
	err := filepath.WalkDir(tableRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(fsutils.IsDataFile(d.Name()) || fsutils.IsLogFile(d.Name())) {
			return nil
		}
		rel, err := filepath.Rel(tableRoot, filepath.Dir(path))
		if err != nil {
			return fmt.Errorf("error in filepath.Rel: %w", err)
		}
		if rel == "." {
			// non-partitioned table
			rel = ""
		}
		found[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error in filepath.WalkDir: %w", err)
	}

	partitions := make([]string, 0, len(found))
	for p := range found {
		partitions = append(partitions, p)
	}
	sort.Strings(partitions)
	return partitions, nil
}

func (dv *DiskView) ListFileSlices(ctx context.Context, table, partition string) ([]model.FileSlice, error) {
	if err := checkLocation(table, partition); err != nil {
		return nil, err
	}
	dir := filepath.Join(dv.rootPath, table, filepath.FromSlash(partition))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrPartitionNotFound, table, partition)
	}
	if err != nil {
		return nil, fmt.Errorf("error in os.ReadDir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("error in DirEntry.Info: %w", err)
		}
		files = append(files, FileInfo{Path: filepath.Join(dir, e.Name()), Size: info.Size()})
	}
	return BuildFileSlices(ctx, partition, files)
}

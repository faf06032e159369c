package datastore

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/s3_helper"
)

type (
	// S3View reads table files from keys shaped {prefix}/{table}/{partition}/{file}
	S3View struct {
		client *s3.S3
		prefix string
	}
)

func NewS3View(client *s3.S3, prefix string) *S3View {
	return &S3View{client: client, prefix: prefix}
}

func (sv *S3View) tablePrefix(table string) string {
	return path.Join(sv.prefix, table) + "/"
}

func (sv *S3View) ListPartitions(ctx context.Context, table string) ([]string, error) {
	if err := fsutils.CheckTableName(table); err != nil {
		return nil, err
	}
	tp := sv.tablePrefix(table)
	objects, err := s3_helper.ListObjects(ctx, sv.client, tp)
	if err != nil {
		return nil, fmt.Errorf("error in ListObjects: %w", err)
	}
	found := make(map[string]struct{})
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !(fsutils.IsDataFile(name) || fsutils.IsLogFile(name)) {
			continue
		}
		// "" is the table root of a non-partitioned table
		rel := strings.TrimPrefix(path.Dir(obj.Key)+"/", tp)
		found[strings.TrimSuffix(rel, "/")] = struct{}{}
	}
	partitions := make([]string, 0, len(found))
	for p := range found {
		partitions = append(partitions, p)
	}
	sort.Strings(partitions)
	return partitions, nil
}

func (sv *S3View) ListFileSlices(ctx context.Context, table, partition string) ([]model.FileSlice, error) {
	if err := checkLocation(table, partition); err != nil {
		return nil, err
	}
	dir := path.Join(sv.prefix, table, partition) + "/"
	objects, err := s3_helper.ListObjects(ctx, sv.client, dir)
	if err != nil {
		return nil, fmt.Errorf("error in ListObjects: %w", err)
	}
	var files []FileInfo
	for _, obj := range objects {
		// only direct children belong to this partition
		if strings.Contains(strings.TrimPrefix(obj.Key, dir), "/") {
			continue
		}
		files = append(files, FileInfo{Path: obj.Key, Size: obj.Size})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrPartitionNotFound, table, partition)
	}
	return BuildFileSlices(ctx, partition, files)
}

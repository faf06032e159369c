package plan

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/s3_helper"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/rs/zerolog"
	s3_pq "github.com/xitongsys/parquet-go-source/s3"
)

// S3Store keeps plans under {prefix}/{table}/ in the configured bucket
type S3Store struct {
	client *s3.S3
	prefix string
}

func NewS3Store(client *s3.S3, prefix string) *S3Store {
	return &S3Store{client: client, prefix: prefix}
}

func (ss *S3Store) key(table, instant string) (string, error) {
	if err := fsutils.CheckTableName(table); err != nil {
		return "", err
	}
	if err := fsutils.CheckInstant(instant); err != nil {
		return "", err
	}
	return path.Join(ss.prefix, table, fsutils.MakePlanFileName(instant)), nil
}

func (ss *S3Store) Save(ctx context.Context, table string, p *Plan) error {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return fmt.Errorf("error in Encode: %w", err)
	}
	key, err := ss.key(table, p.InstantTime)
	if err != nil {
		return err
	}
	_, err = s3_helper.WriteBytesToS3(ctx, key, &buf, nil)
	if err != nil {
		return fmt.Errorf("error in WriteBytesToS3: %w", err)
	}
	return nil
}

func (ss *S3Store) Load(ctx context.Context, table, instant string) (*Plan, error) {
	key, err := ss.key(table, instant)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("key", key).Msg("reading plan from s3")
	r, err := s3_pq.NewS3FileReaderWithParams(ctx, s3_pq.S3FileReaderParams{
		Bucket:   utils.S3_BUCKET_NAME,
		Key:      key,
		S3Client: ss.client,
	})
	if s3_helper.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s/%s", ErrPlanNotFound, table, instant)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating new s3 file reader: %w", err)
	}
	defer r.Close()
	return Decode(instant, r)
}

func (ss *S3Store) List(ctx context.Context, table string) ([]string, error) {
	if err := fsutils.CheckTableName(table); err != nil {
		return nil, err
	}
	objects, err := s3_helper.ListObjects(ctx, ss.client, path.Join(ss.prefix, table)+"/")
	if err != nil {
		return nil, err
	}
	var instants []string
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if strings.HasSuffix(name, fsutils.CompactionPlanExtension) {
			instants = append(instants, strings.TrimSuffix(name, fsutils.CompactionPlanExtension))
		}
	}
	sort.Strings(instants)
	return instants, nil
}

// Delete checks for the plan first since S3 deletes of missing keys succeed
func (ss *S3Store) Delete(ctx context.Context, table, instant string) error {
	key, err := ss.key(table, instant)
	if err != nil {
		return err
	}
	exists, err := s3_helper.ObjectExists(ctx, ss.client, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s/%s", ErrPlanNotFound, table, instant)
	}
	return s3_helper.DeleteObject(ctx, ss.client, key)
}

package s3_helper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/icemor/gologger"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.Component("s3")
)

type ObjectInfo struct {
	Key  string
	Size int64
}

func NewSession() (*session.Session, error) {
	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}
	return s3Session, nil
}

// NewClient builds an S3 client from the environment credentials
func NewClient() (*s3.S3, error) {
	sess, err := NewSession()
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

func WriteBytesToS3(ctx context.Context, fileName string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {

	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	s3Session, err := NewSession()
	if err != nil {
		return nil, err
	}

	uploader := s3manager.NewUploader(s3Session)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(utils.S3_BUCKET_NAME),
		Key:         aws.String(fileName),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")

	return output, nil
}

// ListObjects lists every object under prefix, following continuation tokens
func ListObjects(ctx context.Context, client *s3.S3, prefix string) ([]ObjectInfo, error) {
	logger := zerolog.Ctx(ctx)
	var objects []ObjectInfo
	s := time.Now()
	err := client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(utils.S3_BUCKET_NAME),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:  aws.StringValue(obj.Key),
				Size: aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("error in ListObjectsV2PagesWithContext: %w", err)
	}
	logger.Debug().Str("prefix", prefix).Int("objects", len(objects)).Str("durationHuman", time.Since(s).String()).Msg("listed s3 prefix")
	return objects, nil
}

// ObjectExists issues a HEAD for key
func ObjectExists(ctx context.Context, client *s3.S3, key string) (bool, error) {
	_, err := client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(utils.S3_BUCKET_NAME),
		Key:    aws.String(key),
	})
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error in HeadObjectWithContext: %w", err)
	}
	return true, nil
}

func DeleteObject(ctx context.Context, client *s3.S3, key string) error {
	_, err := client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(utils.S3_BUCKET_NAME),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("error in DeleteObjectWithContext: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is an S3 404
func IsNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode() == 404
	}
	return false
}

package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
)

// PutObjectAPI is the part of *s3.Client the uploader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures NewS3Uploader. Empty credentials fall back to the
// default AWS chain.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Uploader copies run directories to <Prefix>/<simID>/ in a bucket.
type S3Uploader struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	metrics *metrics.Registry
	logger  logging.Logger
}

// NewS3Uploader builds an uploader backed by an S3 client.
func NewS3Uploader(ctx context.Context, opts S3Options, m *metrics.Registry, logger logging.Logger) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3UploaderWithClient(client, opts.Bucket, opts.Prefix, m, logger), nil
}

// NewS3UploaderWithClient builds an uploader on an existing client.
func NewS3UploaderWithClient(client PutObjectAPI, bucket, prefix string, m *metrics.Registry, logger logging.Logger) *S3Uploader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		metrics: m,
		logger:  logger.With(logging.Component("s3_upload")),
	}
}

// Key returns the object key of a run file.
func (u *S3Uploader) Key(simID, name string) string {
	return path.Join(u.prefix, simID, name)
}

// UploadRun uploads every regular file in runDir, in name order, and
// returns the keys.
func (u *S3Uploader) UploadRun(ctx context.Context, runDir, simID string) ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list run directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(runDir, e.Name()))
		if err != nil {
			return keys, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}

		key := u.Key(simID, e.Name())
		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(u.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/octet-stream"),
		})
		u.metrics.RecordResults("s3", len(data), err)
		if err != nil {
			return keys, fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
		}
		keys = append(keys, key)
	}

	u.logger.Info("run uploaded",
		logging.SimID(simID),
		logging.String("bucket", u.bucket),
		logging.Count(len(keys)),
	)
	return keys, nil
}

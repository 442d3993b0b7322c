package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
)

// S3Config holds connection settings for the object store. Endpoint and static
// credentials are only needed for S3-compatible stores such as MinIO.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client from the default AWS credential chain,
// overridden by any static credentials and endpoint in cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Uploader is the subset of manager.Uploader the store uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Downloader is the subset of manager.Downloader the batch source uses.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// S3Store writes results documents to a bucket.
type S3Store struct {
	uploader Uploader
	bucket   string
	now      func() time.Time
	logger   *slog.Logger
}

var _ port.ResultStore = (*S3Store)(nil)

// NewS3Store creates an S3Store that uploads through the transfer manager.
func NewS3Store(client *s3.Client, bucket string, logger *slog.Logger) *S3Store {
	return NewS3StoreWithUploader(manager.NewUploader(client), bucket, logger)
}

// NewS3StoreWithUploader creates an S3Store around any Uploader.
func NewS3StoreWithUploader(uploader Uploader, bucket string, logger *slog.Logger) *S3Store {
	return &S3Store{uploader: uploader, bucket: bucket, now: time.Now, logger: logger}
}

// Store uploads the results document and returns its s3:// URI.
func (s *S3Store) Store(ctx context.Context, result port.AnalysisResult) (string, error) {
	now := s.now()
	body, err := json.MarshalIndent(BuildResultsDocument(result, now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results document: %w", err)
	}

	key := ResultsObjectKey(result.Analysis.BatchID().String(), now)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload results to s3://%s/%s: %w", s.bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	s.logger.Info("results document stored",
		"batch_id", result.Analysis.BatchID().String(),
		"uri", uri,
		"bytes", len(body),
	)
	return uri, nil
}

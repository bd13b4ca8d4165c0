package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3 stores video objects in a single bucket.
type S3 struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *zap.Logger
}

// Options configures the S3 client built by New.
type Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for a local S3 emulator.
	// Path-style addressing is used when it is set.
	Endpoint string
}

// New loads the default AWS credential chain and returns an S3 store for
// opts.Bucket.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewFromClient(client, opts.Bucket, logger), nil
}

// NewFromClient wraps an already configured client.
func NewFromClient(client *s3.Client, bucket string, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		logger:    logger,
	}
}

// Bucket returns the bucket objects are written to.
func (s *S3) Bucket() string {
	return s.bucket
}

// PutObject streams body to key, tagged with contentType.
func (s *S3) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	s.logger.Info("uploaded object", zap.String("bucket", s.bucket), zap.String("key", key))
	return nil
}

// DeleteObject removes key from the bucket.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	s.logger.Info("deleted object", zap.String("bucket", s.bucket), zap.String("key", key))
	return nil
}

// PresignGet returns a GET URL for key valid for expires. Signing is done
// locally with the client's credentials.
func (s *S3) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

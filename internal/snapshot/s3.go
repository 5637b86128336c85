package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3 or S3 compatible snapshot target.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // for S3 compatible services such as MinIO
	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Sink stores snapshots as S3 objects under a key prefix.
type S3Sink struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Sink builds an S3 client from cfg.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
			// S3 compatible services often reject the default flexible checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	}
	return &S3Sink{client: s3.NewFromConfig(awsCfg, s3Opts...), cfg: cfg}, nil
}

// Create buffers the snapshot in memory and uploads it on Close.
func (s *S3Sink) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &s3Upload{ctx: ctx, sink: s, key: s.key(name)}, nil
}

// Open downloads name. A missing object matches os.ErrNotExist.
func (s *S3Sink) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("snapshot %s: %w", s.Location(name), os.ErrNotExist)
		}
		return nil, fmt.Errorf("S3 get object failed: %w", err)
	}
	return resp.Body, nil
}

// Location returns the s3:// URL of name.
func (s *S3Sink) Location(name string) string {
	return "s3://" + s.cfg.Bucket + "/" + s.key(name)
}

func (s *S3Sink) key(name string) string {
	return s.cfg.Prefix + name
}

type s3Upload struct {
	ctx  context.Context
	sink *S3Sink
	key  string
	buf  bytes.Buffer
}

func (u *s3Upload) Write(p []byte) (int, error) {
	return u.buf.Write(p)
}

func (u *s3Upload) Close() error {
	_, err := u.sink.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.sink.cfg.Bucket),
		Key:           aws.String(u.key),
		Body:          bytes.NewReader(u.buf.Bytes()),
		ContentLength: aws.Int64(int64(u.buf.Len())),
	})
	if err != nil {
		return fmt.Errorf("S3 put object failed: %w", err)
	}
	return nil
}

// Abort drops the buffered upload without touching the bucket.
func (u *s3Upload) Abort() error {
	u.buf.Reset()
	return nil
}

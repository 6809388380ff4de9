package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client captures the subset of the S3 API used by S3Store, so tests can
// substitute a fake without touching the network.
type S3Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3aws.GetObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3aws.DeleteObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.DeleteObjectOutput, error)
}

// S3Config configures an S3Store.
type S3Config struct {
	Bucket      string
	Region      string
	AccessKeyID string
	SecretKey   string
	// Endpoint overrides the default AWS endpoint, for S3-compatible
	// services like MinIO.
	Endpoint       string
	ForcePathStyle bool
	// Prefix is prepended to every object key, e.g. "checkpoints/".
	Prefix string
}

// S3Store persists session snapshots as individual objects in an S3
// (or S3-compatible) bucket, one object per session ID.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Store builds an S3Store from cfg, loading AWS credentials from
// static keys when provided or the default credential chain otherwise.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 checkpoint store: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 checkpoint store: load aws config: %w", err)
	}

	client := s3aws.NewFromConfig(awsCfg, func(o *s3aws.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) key(sessionID string) string {
	return s.prefix + sessionID + ".json"
}

func (s *S3Store) Save(ctx context.Context, snapshot Snapshot) error {
	ts := snapshot.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.client.PutObject(ctx, &s3aws.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(snapshot.SessionID)),
		Body:        bytes.NewReader(snapshot.Data),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"timestamp": ts.Format(time.RFC3339Nano)},
	})
	if err != nil {
		return fmt.Errorf("s3 checkpoint store: save: %w", err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3aws.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("s3 checkpoint store: load: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("s3 checkpoint store: read body: %w", err)
	}

	ts := time.Time{}
	if raw, ok := out.Metadata["timestamp"]; ok {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			ts = parsed
		}
	}
	return Snapshot{SessionID: sessionID, Data: data, Timestamp: ts}, nil
}

func (s *S3Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteObject(ctx, &s3aws.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		return fmt.Errorf("s3 checkpoint store: delete: %w", err)
	}
	return nil
}

// Close is a no-op: the underlying S3 client has no persistent connection
// to release.
func (s *S3Store) Close() error { return nil }

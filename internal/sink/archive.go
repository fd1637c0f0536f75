package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/waypost-systems/waypost/internal/journal"
	"github.com/waypost-systems/waypost/internal/models"
)

// ArchiveConfig configures the S3 archive sink. Endpoint and path-style
// addressing support MinIO-style local stacks.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// s3PutAPI is the slice of the S3 client the sink uses.
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveSink writes the raw payload bytes to the object store, keyed by
// idempotency key. Retries overwrite the same object with the same bytes,
// so the write is effectively once.
type ArchiveSink struct {
	client s3PutAPI
	bucket string
}

func NewArchiveSink(ctx context.Context, cfg ArchiveConfig) (*ArchiveSink, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &ArchiveSink{client: client, bucket: cfg.Bucket}, nil
}

// NewArchiveSinkWithClient wraps an existing client. Used by tests.
func NewArchiveSinkWithClient(client s3PutAPI, bucket string) *ArchiveSink {
	return &ArchiveSink{client: client, bucket: bucket}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Deliver(ctx context.Context, entry *journal.Entry) error {
	return s.put(ctx, entry.Key, entry.Raw)
}

// ArchiveRaw stores a rejected payload for audit. Rejections never reach
// the journal, so the key is derived on the spot.
func (s *ArchiveSink) ArchiveRaw(ctx context.Context, raw models.RawEvent) error {
	return s.put(ctx, journal.KeyFor(raw.Payload), raw)
}

func (s *ArchiveSink) put(ctx context.Context, key string, raw models.RawEvent) error {
	objectKey := fmt.Sprintf("raw/%s.json", key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(raw.Payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"received-at": raw.ReceivedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"

	"marketingest/internal/table"
)

// PutObjectAPI is the subset of the S3 client used by S3Sink
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each artifact as a CSV object. PutObject replaces any
// existing object with the same key, which makes re-runs idempotent.
type S3Sink struct {
	client PutObjectAPI
	bucket string
}

// NewS3Sink creates a sink writing to bucket through client
func NewS3Sink(client PutObjectAPI, bucket string) (*S3Sink, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &S3Sink{client: client, bucket: bucket}, nil
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// The client is created once per run and shared by every upload.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return s3.NewFromConfig(cfg), nil
}

// Store implements the Sink interface
func (s *S3Sink) Store(ctx context.Context, key string, payload *table.Table) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", NewInvalidPayloadError(key, "empty storage key", nil)
	}

	data, err := payload.CSV()
	if err != nil {
		return "", NewInvalidPayloadError(key, "failed to encode payload", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return "", classifyS3Error(key, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func classifyS3Error(key string, err error) *SinkError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"AllAccessDisabled", "AccountProblem", "ExpiredToken":
			return NewPermissionDeniedError(key, err)
		case "InvalidArgument", "InvalidRequest", "EntityTooLarge", "BadDigest",
			"KeyTooLongError", "InvalidDigest", "MissingContentLength":
			return NewInvalidPayloadError(key, apiErr.ErrorMessage(), err)
		}
	}
	return NewUnavailableError(key, err)
}

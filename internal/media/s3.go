package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads objects to a bucket fronted by a public base URL
// (a CDN or the bucket website endpoint).
type S3Store struct {
	client  S3API
	bucket  string
	baseURL string
	now     func() time.Time
	logger  *logging.Logger
}

func NewS3Store(client S3API, bucket, publicBaseURL string, logger *logging.Logger) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("media: s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("media: s3 bucket is required")
	}
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: publicBaseURL,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, prefix string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("media: empty body")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	key := objectKey(prefix, mimeType, s.now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("media: s3 put %s: %w", key, err)
	}
	s.logger.Info("stored media in s3", "bucket", s.bucket, "key", key, "bytes", len(data))
	return joinURL(s.baseURL, key), nil
}

package spaces

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ErrNotFound means the requested key does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// Config holds bucket connection settings. Endpoint is the bare host
// (e.g. "nyc3.digitaloceanspaces.com").
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// Store is a key/value object store over an S3-compatible bucket.
// Tested: DigitalOcean Spaces, Minio.
type Store struct {
	s3       *s3.S3
	bucket   string
	endpoint string
	logger   *slog.Logger
}

func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	creds := credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	s3Config := &aws.Config{
		Credentials: creds,
		Endpoint:    aws.String("https://" + cfg.Endpoint),
		Region:      aws.String(cfg.Region),
	}
	sess, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("open bucket session: %w", err)
	}

	return &Store{
		s3:       s3.New(sess),
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		logger:   logger.With("component", "spaces", "bucket", cfg.Bucket),
	}, nil
}

// Put uploads data under key with a public-read ACL and returns the
// public URL of the object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         aws.String("public-read"),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.Debug("object uploaded", "key", key, "size", len(data))

	return s.PublicURL(key), nil
}

// Get downloads the object stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	return data, nil
}

// PublicURL returns the virtual-hosted URL of an object in this bucket.
func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, s.endpoint, key)
}

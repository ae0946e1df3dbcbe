// Package objstore checks and reads the source locations of a load: s3://
// URIs through the AWS SDK and, for local warehouses, filesystem paths or globs.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxObjectSize bounds Get. Only small documents such as JSONPaths files are fetched.
const MaxObjectSize = 1 << 20

// ErrNotFound is returned when a location holds no objects.
var ErrNotFound = errors.New("no objects found")

// S3API is the subset of the S3 client used here.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store resolves locations to S3 or the local filesystem.
type Store struct {
	client S3API
	logger *slog.Logger
}

// New creates a store. client may be nil when only local paths are used.
func New(client S3API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{client: client, logger: logger}
}

// NewFromConfig creates a store backed by an S3 client built from the default
// AWS credential chain. An empty region uses the chain's region.
func NewFromConfig(ctx context.Context, region string, logger *slog.Logger) (*Store, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), logger), nil
}

// ParseURI splits an s3://bucket/key URI. The key may be empty.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 uri without bucket: %q", uri)
	}
	return bucket, key, nil
}

// IsS3 reports whether location is an s3:// URI.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// Check returns nil if at least one object exists at location. For S3 the
// key is treated as a prefix, as COPY does.
func (s *Store) Check(ctx context.Context, location string) error {
	if !IsS3(location) {
		return checkLocal(location)
	}
	if s.client == nil {
		return fmt.Errorf("check %s: no s3 client configured", location)
	}
	bucket, prefix, err := ParseURI(location)
	if err != nil {
		return err
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("s3 list %s: %w", location, err)
	}
	if aws.ToInt32(out.KeyCount) == 0 && len(out.Contents) == 0 {
		return fmt.Errorf("%s: %w", location, ErrNotFound)
	}
	s.logger.Debug("s3 prefix has objects", slog.String("location", location))
	return nil
}

func checkLocal(location string) error {
	matches, err := filepath.Glob(location)
	if err != nil {
		return fmt.Errorf("%s: %w", location, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%s: %w", location, ErrNotFound)
	}
	return nil
}

// Get reads a small object.
func (s *Store) Get(ctx context.Context, location string) ([]byte, error) {
	if !IsS3(location) {
		f, err := os.Open(location) //nolint:gosec // location is operator configuration
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return readLimited(f, location)
	}
	if s.client == nil {
		return nil, fmt.Errorf("get %s: no s3 client configured", location)
	}
	bucket, key, err := ParseURI(location)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", location, err)
	}
	defer func() { _ = out.Body.Close() }()
	return readLimited(out.Body, location)
}

func readLimited(r io.Reader, location string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if len(data) > MaxObjectSize {
		return nil, fmt.Errorf("read %s: object larger than %d bytes", location, MaxObjectSize)
	}
	return data, nil
}

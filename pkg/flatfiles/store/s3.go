package store

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/quantfeed/flatfiles/pkg/errors"
)

const (
	// DefaultBucket is the Polygon flat-files bucket.
	DefaultBucket = "flatfiles"
	// DefaultEndpoint is the S3-compatible endpoint serving the bucket.
	DefaultEndpoint = "https://files.polygon.io"

	defaultRegion = "us-east-1"
)

// S3API is the subset of the S3 client used by S3Store. It exists so tests
// can substitute a mock.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads flat files from an S3-compatible bucket.
type S3Store struct {
	api    S3API
	bucket string
}

// NewS3Store builds a store over the Polygon flat-files endpoint using static
// credentials.
func NewS3Store(ctx context.Context, accessKey, secretKey string) (*S3Store, error) {
	if accessKey == "" || secretKey == "" {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "access key and secret key are required")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(defaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to load storage configuration", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(DefaultEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		api:    client,
		bucket: DefaultBucket,
	}, nil
}

// NewS3StoreWithAPI builds a store over an existing API client. Used by tests.
func NewS3StoreWithAPI(api S3API, bucket string) *S3Store {
	return &S3Store{
		api:    api,
		bucket: bucket,
	}
}

// Bucket returns the bucket name the store reads from.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// List returns all keys under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	var continuation *string

	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeListingFailed, err, "failed to list %s/%s", s.bucket, prefix)
		}

		for _, object := range out.Contents {
			if object.Key != nil {
				keys = append(keys, *object.Key)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}

		continuation = out.NextContinuationToken
	}

	return keys, nil
}

// Get returns the byte stream of one object. A missing object maps to
// ErrCodeObjectNotFound and denied access to ErrCodeObjectForbidden; any
// other failure is a transport error.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyGetError(key, err)
	}

	return out.Body, nil
}

func classifyGetError(key string, err error) error {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return errors.Wrapf(errors.ErrCodeObjectNotFound, err, "no object for key %s", key)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return errors.Wrapf(errors.ErrCodeObjectNotFound, err, "no object for key %s", key)
		case "AccessDenied", "Forbidden":
			return errors.Wrapf(errors.ErrCodeObjectForbidden, err, "access denied for key %s", key)
		}
	}

	return errors.Wrapf(errors.ErrCodeStorageTransport, err, "failed to fetch key %s", key)
}

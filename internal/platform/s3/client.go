package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when the object does not exist in an existing bucket.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the bucket itself does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrPreconditionFailed is returned when a conditional write lost against another writer.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Object is a downloaded object and its entity tag.
type Object struct {
	Data []byte
	ETag string
}

// PutOptions makes a write conditional.
type PutOptions struct {
	// IfMatch only writes when the current object has this ETag.
	IfMatch string
	// IfNoneMatch set to "*" only writes when no object exists yet.
	IfNoneMatch string
	ContentType string
}

// Client wraps the S3 client for a single bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// Options configures NewClient.
type Options struct {
	Region  string
	Profile string
	// Endpoint overrides the service endpoint (S3-compatible stores, tests).
	Endpoint     string
	UsePathStyle bool
}

// NewClient creates a client for bucket using the default AWS credential chain.
func NewClient(ctx context.Context, bucket string, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Client{s3: client, bucket: bucket}, nil
}

// Bucket returns the bucket this client operates on.
func (c *Client) Bucket() string {
	return c.bucket
}

// BucketExists checks if the bucket exists and is accessible.
func (c *Client) BucketExists(ctx context.Context) (bool, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		// HEAD responses carry no error body, so a 404 is all there is.
		if isNoSuchBucket(err) || isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	return true, nil
}

// GetObject downloads an object. A missing object yields ErrNotFound and a
// missing bucket ErrBucketNotFound.
func (c *Client) GetObject(ctx context.Context, key string) (*Object, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchBucket(err) {
			return nil, fmt.Errorf("object %s: %w: %s", key, ErrBucketNotFound, c.bucket)
		}
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("object %s in bucket %s: %w", key, c.bucket, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, c.bucket, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return &Object{Data: buf.Bytes(), ETag: aws.ToString(result.ETag)}, nil
}

// PutObject uploads an object and returns its new ETag. A failed write
// condition yields ErrPreconditionFailed.
func (c *Client) PutObject(ctx context.Context, key string, data []byte, opts PutOptions) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}
	if opts.IfNoneMatch != "" {
		input.IfNoneMatch = aws.String(opts.IfNoneMatch)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	result, err := c.s3.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return "", fmt.Errorf("put object %s: %w", key, ErrPreconditionFailed)
		}
		return "", fmt.Errorf("failed to put object %s in bucket %s: %w", key, c.bucket, err)
	}
	return aws.ToString(result.ETag), nil
}

// isNoSuchKey reports a missing object. S3-compatible services without
// typed errors are matched by code.
func isNoSuchKey(err error) bool {
	if err == nil || isNoSuchBucket(err) {
		return false
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

// isNoSuchBucket reports a missing bucket.
func isNoSuchBucket(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket"
}

// isPreconditionFailed reports a lost conditional write. S3 answers 412 when
// the condition does not hold and 409 when a concurrent conditional write won.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keyfs/keyfs/pkg/retry"
)

// retryingClient decorates every API operation with the retry policy, so no
// call site in keyfs carries its own retry logic. One wrapper per operation
// trades the transparency of a reflective proxy for type safety.
type retryingClient struct {
	api     API
	retryer *retry.Retryer
}

// WrapClient returns api with every operation retried under the given
// policy. Errors the policy classifies as non-retryable pass through
// unmodified; retryable errors surface only after exhaustion.
func WrapClient(api API, retryer *retry.Retryer) API {
	return &retryingClient{api: api, retryer: retryer}
}

func (c *retryingClient) GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	var out *s3.GetBucketLocationOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.GetBucketLocation(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var out *s3.ListObjectsV2Output
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.ListObjectsV2(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	var out *s3.GetObjectOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.GetObject(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var out *s3.PutObjectOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.PutObject(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	var out *s3.DeleteObjectOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.DeleteObject(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	var out *s3.HeadObjectOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.HeadObject(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	var out *s3.CreateBucketOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.CreateBucket(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (c *retryingClient) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	var out *s3.ListBucketsOutput
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.api.ListBuckets(ctx, params, optFns...)
		return err
	})
	return out, err
}

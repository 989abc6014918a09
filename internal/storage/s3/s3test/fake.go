// Package s3test provides an in-memory implementation of the S3 capability
// interface for tests. Buckets and objects live in maps; errors for
// specific operations can be injected by name.
package s3test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Object is one stored fake object.
type Object struct {
	Data         []byte
	ETag         string
	LastModified time.Time
}

// Fake is an in-memory S3. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	// Regions maps bucket name to region. us-east-1 buckets report an
	// empty location constraint, like the real service.
	Regions map[string]string

	// Buckets maps bucket name to key to object.
	Buckets map[string]map[string]*Object

	// Errs forces the named operations ("GetBucketLocation", "ListObjectsV2",
	// ...) to fail with the given error.
	Errs map[string]error

	// Calls records operation names in invocation order.
	Calls []string
}

// New returns an empty fake store.
func New() *Fake {
	return &Fake{
		Regions: make(map[string]string),
		Buckets: make(map[string]map[string]*Object),
		Errs:    make(map[string]error),
	}
}

// AddBucket creates a bucket in the given region.
func (f *Fake) AddBucket(name, region string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Buckets[name]; !ok {
		f.Buckets[name] = make(map[string]*Object)
	}
	f.Regions[name] = region
}

// AddObject stores data under bucket/key, creating the bucket in us-east-1
// if needed.
func (f *Fake) AddObject(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Buckets[bucket]; !ok {
		f.Buckets[bucket] = make(map[string]*Object)
		f.Regions[bucket] = "us-east-1"
	}
	f.Buckets[bucket][key] = &Object{
		Data:         data,
		ETag:         etag(data),
		LastModified: time.Now(),
	}
}

// Keys returns the sorted keys currently stored in bucket.
func (f *Fake) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.Buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *Fake) begin(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, op)
	return f.Errs[op]
}

func (f *Fake) bucket(name string) (map[string]*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Buckets[name]
	if !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String("bucket not found: " + name)}
	}
	return b, nil
}

func (f *Fake) GetBucketLocation(_ context.Context, params *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	if err := f.begin("GetBucketLocation"); err != nil {
		return nil, err
	}
	if _, err := f.bucket(aws.ToString(params.Bucket)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	region := f.Regions[aws.ToString(params.Bucket)]
	f.mu.Unlock()
	if region == "us-east-1" {
		region = ""
	}
	return &s3.GetBucketLocationOutput{
		LocationConstraint: s3types.BucketLocationConstraint(region),
	}, nil
}

func (f *Fake) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.begin("ListObjectsV2"); err != nil {
		return nil, err
	}
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(params.Prefix)
	var keys []string
	for k := range b {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		obj := b[k]
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.Data))),
			ETag:         aws.String(obj.ETag),
			LastModified: aws.Time(obj.LastModified),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}

func (f *Fake) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.begin("GetObject"); err != nil {
		return nil, err
	}
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := b[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("key not found")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Data)),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.LastModified),
	}, nil
}

func (f *Fake) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.begin("PutObject"); err != nil {
		return nil, err
	}
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	var data []byte
	if params.Body != nil {
		data, err = io.ReadAll(params.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b[aws.ToString(params.Key)] = &Object{
		Data:         data,
		ETag:         etag(data),
		LastModified: time.Now(),
	}
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func (f *Fake) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.begin("DeleteObject"); err != nil {
		return nil, err
	}
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// deleting an absent key succeeds, like the real service
	delete(b, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *Fake) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.begin("HeadObject"); err != nil {
		return nil, err
	}
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := b[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String("not found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.LastModified),
	}, nil
}

func (f *Fake) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if err := f.begin("CreateBucket"); err != nil {
		return nil, err
	}
	region := "us-east-1"
	if params.CreateBucketConfiguration != nil {
		region = string(params.CreateBucketConfiguration.LocationConstraint)
	}
	f.AddBucket(aws.ToString(params.Bucket), region)
	return &s3.CreateBucketOutput{}, nil
}

func (f *Fake) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if err := f.begin("ListBuckets"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

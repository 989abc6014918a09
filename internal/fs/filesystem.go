// Package fs implements the keyfs filesystem facade: path-oriented
// operations over the flat bucket/key namespace, with endpoint resolution
// and retry handled underneath.
package fs

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/keyfs/keyfs/internal/config"
	"github.com/keyfs/keyfs/internal/metrics"
	storage "github.com/keyfs/keyfs/internal/storage/s3"
	"github.com/keyfs/keyfs/pkg/errors"
	"github.com/keyfs/keyfs/pkg/lineio"
	"github.com/keyfs/keyfs/pkg/retry"
	"github.com/keyfs/keyfs/pkg/s3path"
)

// Resolver yields retry-wrapped clients scoped to the right regional
// endpoint. Satisfied by *storage.Resolver; tests substitute a stub.
type Resolver interface {
	Resolve(ctx context.Context, bucket string) (storage.API, string, error)
	Client(ctx context.Context, region string) (storage.API, error)
}

// Object is the read-only identity of one stored object. ETag is stored
// with the service's quoting already stripped.
type Object struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// Filesystem presents ls/du/rm-style operations over S3 URIs. All state is
// immutable after New, so a Filesystem is safe for concurrent use; every
// operation resolves its own client and discards it.
type Filesystem struct {
	resolver Resolver
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// Option customizes a Filesystem.
type Option func(*Filesystem)

// WithResolver substitutes the client resolver.
func WithResolver(r Resolver) Option {
	return func(f *Filesystem) { f.resolver = r }
}

// WithLogger substitutes the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filesystem) { f.logger = l }
}

// WithMetrics substitutes the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(f *Filesystem) { f.metrics = c }
}

// New creates a Filesystem from configuration.
func New(cfg *config.Configuration, opts ...Option) *Filesystem {
	f := &Filesystem{}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default().With("component", "keyfs")
	}
	if f.resolver == nil {
		f.resolver = storage.NewResolver(storage.Options{
			Credentials: storage.Credentials{
				AccessKeyID:     cfg.Credentials.AccessKeyID,
				SecretAccessKey: cfg.Credentials.SecretAccessKey,
				SessionToken:    cfg.Credentials.SessionToken,
			},
			Endpoint: cfg.S3.Endpoint,
			Region:   cfg.S3.Region,
			Retry: retry.Config{
				Backoff:    time.Duration(cfg.Retry.Backoff),
				Multiplier: cfg.Retry.Multiplier,
				MaxTries:   cfg.Retry.MaxTries,
			},
			Logger: f.logger,
		})
	}
	if f.metrics == nil && cfg.Metrics.Enabled {
		f.metrics = metrics.NewCollector(cfg.Metrics.Namespace)
	}
	return f
}

// CanHandle reports whether path is a URI this filesystem manages.
func (f *Filesystem) CanHandle(path string) bool {
	return s3path.IsS3URI(path)
}

// MetricsHandler exposes the operation metrics in Prometheus format.
func (f *Filesystem) MetricsHandler() http.Handler {
	return f.metrics.Handler()
}

func (f *Filesystem) observe(op string, start time.Time, err *error) {
	f.metrics.Observe(op, time.Since(start), *err)
}

// Stat returns the object at uri, or a NOT_FOUND error if it does not
// exist.
func (f *Filesystem) Stat(ctx context.Context, uri string) (obj *Object, err error) {
	defer f.observe("stat", time.Now(), &err)

	bucket, key, err := s3path.Parse(uri)
	if err != nil {
		return nil, err
	}
	client, _, err := f.resolver.Resolve(ctx, bucket)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, errors.NotFound("stat", uri, err)
		}
		return nil, err
	}
	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, errors.NotFound("stat", uri, err)
		}
		return nil, err
	}
	return &Object{
		Bucket: bucket,
		Key:    key,
		Size:   aws.ToInt64(out.ContentLength),
		ETag:   strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// Du returns the total size of all objects matching the glob. An object
// vanishing between listing and sizing is a hard error, not a partial sum.
func (f *Filesystem) Du(ctx context.Context, pattern string) (total int64, err error) {
	defer f.observe("du", time.Now(), &err)

	for uri, lerr := range f.Ls(ctx, pattern) {
		if lerr != nil {
			return 0, lerr
		}
		obj, serr := f.Stat(ctx, uri)
		if serr != nil {
			return 0, serr
		}
		total += obj.Size
	}
	return total, nil
}

// Exists reports whether the glob matches at least one object. Not-found
// lookups mean "does not exist"; any other failure propagates.
func (f *Filesystem) Exists(ctx context.Context, pattern string) (ok bool, err error) {
	defer f.observe("exists", time.Now(), &err)

	for _, lerr := range f.Ls(ctx, pattern) {
		if lerr != nil {
			if storage.IsNotFound(lerr) || errors.IsNotFound(lerr) {
				return false, nil
			}
			return false, lerr
		}
		return true, nil
	}
	return false, nil
}

// Rm deletes every object matching the glob. A glob matching nothing is
// not an error. Deletions are independent: one failure does not stop the
// rest, and all failures are reported together.
func (f *Filesystem) Rm(ctx context.Context, pattern string) (err error) {
	defer f.observe("rm", time.Now(), &err)

	var failures []error
	for uri, lerr := range f.Ls(ctx, pattern) {
		if lerr != nil {
			return lerr
		}
		bucket, key, perr := s3path.Parse(uri)
		if perr != nil {
			failures = append(failures, perr)
			continue
		}
		client, _, rerr := f.resolver.Resolve(ctx, bucket)
		if rerr != nil {
			failures = append(failures, fmt.Errorf("deleting %s: %w", uri, rerr))
			continue
		}
		f.logger.Debug("deleting object", "uri", uri)
		if _, derr := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); derr != nil {
			failures = append(failures, fmt.Errorf("deleting %s: %w", uri, derr))
		}
	}
	return stderrors.Join(failures...)
}

// Touchz creates a zero-byte object at uri. Overwriting an existing
// zero-byte object is allowed (idempotent); a non-empty object raises a
// CONFLICT and is left unchanged.
func (f *Filesystem) Touchz(ctx context.Context, uri string) (err error) {
	defer f.observe("touchz", time.Now(), &err)

	obj, err := f.Stat(ctx, uri)
	switch {
	case err == nil && obj.Size != 0:
		return errors.Conflict("touchz", uri, "non-empty file already exists")
	case err != nil && !errors.IsNotFound(err):
		return err
	}

	bucket, key, err := s3path.Parse(uri)
	if err != nil {
		return err
	}
	client, _, err := f.resolver.Resolve(ctx, bucket)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	return err
}

// Mkdir does nothing: the object namespace has no directories. It exists
// to satisfy the uniform filesystem contract callers expect.
func (f *Filesystem) Mkdir(ctx context.Context, dest string) error {
	return nil
}

// MD5Sum returns the object's ETag with quoting stripped. This is the
// store's own digest and is not a true MD5 for objects uploaded in
// multiple parts.
func (f *Filesystem) MD5Sum(ctx context.Context, uri string) (sum string, err error) {
	defer f.observe("md5sum", time.Now(), &err)

	obj, err := f.Stat(ctx, uri)
	if err != nil {
		return "", err
	}
	return obj.ETag, nil
}

// Cat returns the object's content stream. The caller owns the returned
// body and must close it.
func (f *Filesystem) Cat(ctx context.Context, uri string) (body io.ReadCloser, err error) {
	defer f.observe("cat", time.Now(), &err)

	bucket, key, err := s3path.Parse(uri)
	if err != nil {
		return nil, err
	}
	client, _, err := f.resolver.Resolve(ctx, bucket)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, errors.NotFound("cat", uri, err)
		}
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, errors.NotFound("cat", uri, err)
		}
		return nil, err
	}
	return out.Body, nil
}

// CatLines streams the object's content line by line. The object body
// yields raw byte chunks, so line splitting happens client-side; the body
// is closed when the sequence ends.
func (f *Filesystem) CatLines(ctx context.Context, uri string) (iter.Seq2[[]byte, error], error) {
	body, err := f.Cat(ctx, uri)
	if err != nil {
		return nil, err
	}
	return func(yield func([]byte, error) bool) {
		defer body.Close()
		for line, lerr := range lineio.Lines(body) {
			if !yield(line, lerr) || lerr != nil {
				return
			}
		}
	}, nil
}

// ListBucketNames returns the names of all buckets owned by the account.
// Only names are returned; handles constructed from the default endpoint
// could silently target the wrong region.
func (f *Filesystem) ListBucketNames(ctx context.Context) (names []string, err error) {
	defer f.observe("list_buckets", time.Now(), &err)

	client, err := f.resolver.Client(ctx, "")
	if err != nil {
		return nil, err
	}
	out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// CreateBucket creates a bucket with a location constraint matching the
// given region. The constraint is omitted for the default region, which
// the service rejects as an explicit constraint.
func (f *Filesystem) CreateBucket(ctx context.Context, name, region string) (err error) {
	defer f.observe("create_bucket", time.Now(), &err)

	client, err := f.resolver.Client(ctx, "")
	if err != nil {
		return err
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if region != "" && region != storage.DefaultRegion {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	_, err = client.CreateBucket(ctx, input)
	return err
}

// Client returns a retry-wrapped client for the given region, for
// operations not covered by the path-oriented surface.
func (f *Filesystem) Client(ctx context.Context, region string) (storage.API, error) {
	return f.resolver.Client(ctx, region)
}

// ResolveBucket returns a retry-wrapped client connected through the
// bucket's own regional endpoint, along with the resolved region.
func (f *Filesystem) ResolveBucket(ctx context.Context, bucket string) (storage.API, string, error) {
	return f.resolver.Resolve(ctx, bucket)
}

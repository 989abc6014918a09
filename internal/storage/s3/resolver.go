package s3

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keyfs/keyfs/pkg/retry"
	"github.com/keyfs/keyfs/pkg/s3path"
)

const (
	// DefaultRegion is used when nothing better is known.
	DefaultRegion = "us-east-1"

	// Buckets in the oldest region predate location constraints and report
	// an empty one; an empty constraint therefore means this region, not
	// "no region".
	regionWithNoLocationConstraint = "us-east-1"
)

// Credentials are static access credentials. All fields optional; when the
// access key is empty the ambient credential chain is used instead.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Options configures a Resolver.
type Options struct {
	Credentials Credentials

	// Endpoint, if set, is used for every client and bypasses region
	// discovery. A bare host is normalized to an https:// URL.
	Endpoint string

	// Region is the region hint paired with a static Endpoint. Ignored
	// otherwise.
	Region string

	Retry  retry.Config
	Logger *slog.Logger
}

// Resolver constructs retry-wrapped clients scoped to the endpoint a bucket
// actually lives behind. S3 regions are strongly endpoint-partitioned:
// the wrong regional endpoint either fails or targets the wrong namespace,
// and a bucket's region is unknown until a differently-routed metadata call
// succeeds. Resolutions are not cached across calls, so a bucket moving
// regions or a permission change is picked up on the next operation.
type Resolver struct {
	creds    Credentials
	endpoint string
	region   string
	retryCfg retry.Config
	logger   *slog.Logger

	// newClient is swapped out by tests.
	newClient func(ctx context.Context, region string) (API, error)
}

// NewResolver creates a Resolver from options.
func NewResolver(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg := opts.Retry
	if retryCfg.RetryIf == nil {
		retryCfg.RetryIf = IsTransient
	}
	r := &Resolver{
		creds:    opts.Credentials,
		endpoint: NormalizeEndpoint(opts.Endpoint),
		region:   opts.Region,
		retryCfg: retryCfg,
		logger:   logger.With("component", "s3-resolver"),
	}
	r.newClient = r.buildClient
	return r
}

// NormalizeEndpoint prepends https:// to a non-empty endpoint that isn't
// already a URI.
func NormalizeEndpoint(hostOrURI string) string {
	if hostOrURI == "" || s3path.IsURI(hostOrURI) {
		return hostOrURI
	}
	return "https://" + hostOrURI
}

// Client returns a retry-wrapped client for the given region. An empty
// region means the default. A static endpoint override wins over any
// region argument, matching the configuration contract.
func (r *Resolver) Client(ctx context.Context, region string) (API, error) {
	if r.endpoint != "" {
		region = r.region
	}
	if region == "" {
		region = DefaultRegion
	}

	if r.endpoint != "" {
		r.logger.Debug("creating S3 client", "endpoint", r.endpoint, "region", region)
	} else {
		r.logger.Debug("creating S3 client", "region", region)
	}

	raw, err := r.newClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return WrapClient(raw, retry.New(r.retryCfg)), nil
}

// Resolve returns a retry-wrapped client scoped to the region the bucket
// lives in, along with the resolved region. With a static endpoint the
// discovery phase is skipped entirely.
func (r *Resolver) Resolve(ctx context.Context, bucket string) (API, string, error) {
	if r.endpoint != "" {
		client, err := r.Client(ctx, "")
		return client, r.region, err
	}

	probe, err := r.Client(ctx, "")
	if err != nil {
		return nil, "", err
	}

	region, err := bucketRegion(ctx, probe, bucket)
	if err != nil {
		if !IsAccessDenied(err) {
			return nil, "", err
		}
		// It's possible to have access to a bucket's objects but not its
		// location metadata, e.g. public data buckets.
		r.logger.Warn("could not infer endpoint for bucket; assuming defaults",
			"bucket", bucket)
		region = DefaultRegion
	}

	client, err := r.Client(ctx, region)
	return client, region, err
}

// bucketRegion looks up the bucket's location constraint and translates it
// to a region name.
func bucketRegion(ctx context.Context, client API, bucket string) (string, error) {
	out, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", err
	}
	if out.LocationConstraint == "" {
		return regionWithNoLocationConstraint, nil
	}
	return string(out.LocationConstraint), nil
}

// buildClient constructs the raw SDK client. The SDK's own retryer is
// disabled so the keyfs retry policy is the single retry authority.
func (r *Resolver) buildClient(ctx context.Context, region string) (API, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if r.creds.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				r.creds.AccessKeyID, r.creds.SecretAccessKey, r.creds.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if r.endpoint != "" {
			o.BaseEndpoint = aws.String(r.endpoint)
		}
		o.Retryer = aws.NopRetryer{}
	}), nil
}

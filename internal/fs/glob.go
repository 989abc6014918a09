package fs

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keyfs/keyfs/pkg/s3path"
)

// Ls yields the URI of every object matching the glob, in the order the
// service lists them. The sequence is lazy: listing pages are fetched as
// the consumer advances, and abandoning the loop stops the scan. The
// sequence is restartable; each range starts a fresh scan.
//
// A pattern without wildcards is treated as a path: it matches the object
// at that exact key plus everything nested under it, so s3://b/dir lists
// s3://b/dir/part-0 even though no object named "dir" exists.
func (f *Filesystem) Ls(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		var opErr error
		defer func() { f.metrics.Observe("ls", time.Since(start), opErr) }()

		scheme := s3path.Scheme(pattern)
		bucket, keyPrefix, err := s3path.Parse(s3path.GlobPrefix(pattern))
		if err != nil {
			opErr = err
			yield("", err)
			return
		}

		// Implicit directories: a key nested under the pattern matches
		// even though the directory itself is not an object.
		dirGlob := pattern + "/*"
		if strings.HasSuffix(pattern, "/") {
			dirGlob = pattern + "*"
		}

		client, _, err := f.resolver.Resolve(ctx, bucket)
		if err != nil {
			opErr = err
			yield("", err)
			return
		}

		f.logger.Debug("scanning prefix", "bucket", bucket, "prefix", keyPrefix)

		paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(keyPrefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				opErr = err
				yield("", err)
				return
			}
			for _, obj := range page.Contents {
				uri := s3path.JoinURI(scheme, bucket, aws.ToString(obj.Key))
				if !s3path.Match(pattern, uri) && !s3path.Match(dirGlob, uri) {
					continue
				}
				if !yield(uri, nil) {
					return
				}
			}
		}
	}
}

package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/keyfs/keyfs/internal/storage/s3/s3test"
	"github.com/keyfs/keyfs/pkg/retry"
)

var _ API = (*s3test.Fake)(nil)

// flakyAPI fails GetObject with a throttling error a fixed number of times
// before succeeding.
type flakyAPI struct {
	API
	failures int
	calls    int
}

func (f *flakyAPI) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &smithy.GenericAPIError{Code: "ThrottlingException"}
	}
	return &s3.GetObjectOutput{}, nil
}

func fastRetryer() *retry.Retryer {
	return retry.New(retry.Config{
		Backoff:    time.Millisecond,
		Multiplier: 1.1,
		MaxTries:   5,
		RetryIf:    IsTransient,
	})
}

func TestWrapClientRetriesThrottling(t *testing.T) {
	flaky := &flakyAPI{failures: 3}
	client := WrapClient(flaky, fastRetryer())

	_, err := client.GetObject(context.Background(), &s3.GetObjectInput{})
	if err != nil {
		t.Fatalf("GetObject() = %v, want success after retries", err)
	}
	if flaky.calls != 4 {
		t.Errorf("calls = %d, want 4", flaky.calls)
	}
}

func TestWrapClientExhaustsRetries(t *testing.T) {
	flaky := &flakyAPI{failures: 10}
	client := WrapClient(flaky, fastRetryer())

	_, err := client.GetObject(context.Background(), &s3.GetObjectInput{})
	if !IsTransient(err) {
		t.Fatalf("GetObject() = %v, want the last throttling error", err)
	}
	if flaky.calls != 5 {
		t.Errorf("calls = %d, want 5 (MaxTries)", flaky.calls)
	}
}

func TestWrapClientDoesNotRetryTerminalErrors(t *testing.T) {
	fake := s3test.New()
	client := WrapClient(fake, fastRetryer())

	_, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: strPtr("missing-bucket"),
		Key:    strPtr("k"),
	})

	var noBucket *s3types.NoSuchBucket
	if !errors.As(err, &noBucket) {
		t.Fatalf("GetObject() = %v, want NoSuchBucket unmodified", err)
	}
	if got := len(fake.Calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", got)
	}
}

func strPtr(s string) *string { return &s }

package s3

import (
	"errors"
	"net"
	"strings"
	"syscall"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// IsTransient classifies service errors worth retrying: throttling, expired
// request signatures, HTTP 505 (a known load-balancer defect surfaces these
// spuriously), and connection resets or timeouts. Everything else is
// terminal and propagates unmodified.
func IsTransient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		for _, fragment := range []string{"Throttl", "RequestExpired", "Timeout"} {
			if strings.Contains(code, fragment) {
				return true
			}
		}
	}
	if HTTPStatus(err) == 505 {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsNotFound reports whether err means the object or bucket does not exist.
func IsNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	var notFound *s3types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return HTTPStatus(err) == 404
}

// IsAccessDenied reports whether err is a permission failure. The resolver
// tolerates these during region discovery; everywhere else they propagate.
func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
		return true
	}
	return HTTPStatus(err) == 403
}

// HTTPStatus extracts the HTTP status code from a service response error,
// or 0 when err carries none.
func HTTPStatus(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/sethvargo/go-retry"
)

// do runs fn under the store's exponential backoff. Only transient failures
// are retried; once retries are exhausted the error is reported as
// common.ErrStorageUnavailable. Missing objects map to common.ErrNotFound.
func (s *S3Store) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.baseDelay))

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && isTransient(err) {
			s.log.Warn(ctx, "blob store call failed, retrying", "op", op, "key", key, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return nil
	case isNotFoundErr(err):
		return common.NewError(common.ErrNotFound, "object %q", key)
	case isTransient(err):
		s.log.Error(ctx, "blob store unavailable", "op", op, "key", key, "attempts", attempt, "error", err)
		return common.NewError(common.ErrStorageUnavailable, "%s %q failed after %d attempts", op, key, attempt)
	default:
		return fmt.Errorf("s3 %s %q: %w", op, key, err)
	}
}

// isTransient reports whether err is worth retrying: throttling, 5xx
// responses and network-level failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func isNotFoundErr(err error) bool {
	if errors.Is(err, common.ErrNotFound) {
		return true
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

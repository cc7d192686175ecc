package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrEmptyResponse is returned when the provider answers without content.
	ErrEmptyResponse = errors.New("no content generated")
	// ErrTruncated is returned when the provider stopped at the output limit,
	// leaving partial JSON.
	ErrTruncated = errors.New("response truncated at max output tokens")
)

// ProviderError is a classified failure from a model provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient provider failure worth
// another attempt. Unclassified errors count as transient; authentication and
// request errors and caller cancellation do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// RetryableStatus classifies an HTTP status code.
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// retryableCode classifies a gRPC status code.
func retryableCode(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded,
		codes.Internal, codes.Aborted, codes.Unknown:
		return true
	default:
		return false
	}
}

// classifyTransport wraps an error returned by a provider SDK into a
// ProviderError.
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return &ProviderError{Provider: provider, StatusCode: ge.Code, Retryable: RetryableStatus(ge.Code), Err: err}
	}
	var hc interface{ HTTPCode() int }
	if errors.As(err, &hc) && hc.HTTPCode() > 0 {
		code := hc.HTTPCode()
		return &ProviderError{Provider: provider, StatusCode: code, Retryable: RetryableStatus(code), Err: err}
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return &ProviderError{Provider: provider, Retryable: retryableCode(s.Code()), Err: err}
	}

	// Deadlines, dropped connections and anything unrecognised.
	return &ProviderError{Provider: provider, Retryable: true, Err: err}
}

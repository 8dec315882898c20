package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

// retryBaseDelay is the first backoff step; tests shrink it.
var retryBaseDelay = 500 * time.Millisecond

// Options tunes provider calls. Zero values select the defaults.
type Options struct {
	// Timeout bounds each provider call (default 60s)
	Timeout time.Duration

	// MaxRetries is how many times a timed-out call is retried (default 3).
	// Negative disables retries.
	MaxRetries int

	// Dimensions overrides the model's vector size (embedding providers only)
	Dimensions int
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

func (o Options) retries() int {
	switch {
	case o.MaxRetries < 0:
		return 0
	case o.MaxRetries == 0:
		return defaultMaxRetries
	default:
		return o.MaxRetries
	}
}

// classify wraps a transport error with kind, adding ErrProviderTimeout when
// the call ran out of time.
func classify(kind error, provider string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %w: %s: %v", kind, domain.ErrProviderTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, provider, err)
}

// statusError maps an HTTP error status to the error taxonomy.
func statusError(kind error, provider string, status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w: %s returned %d: %s", kind, domain.ErrProviderAuth, provider, status, message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w: %s returned %d: %s", kind, domain.ErrProviderTimeout, provider, status, message)
	default:
		return fmt.Errorf("%w: %s returned %d: %s", kind, provider, status, message)
	}
}

// openAIError maps go-openai errors to the error taxonomy.
func openAIError(kind error, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(kind, "openai", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(kind, "openai", reqErr.HTTPStatusCode, reqErr.Error())
	}
	return classify(kind, "openai", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// withRetry runs call with a per-attempt timeout, retrying with exponential
// backoff while it fails with domain.ErrProviderTimeout.
func withRetry[T any](ctx context.Context, opts Options, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := retryBaseDelay

	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.timeout())
		result, err := call(attemptCtx)
		cancel()

		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrProviderTimeout) || attempt >= opts.retries() || ctx.Err() != nil {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

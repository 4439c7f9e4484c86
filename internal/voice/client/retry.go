package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/logging"
)

// DefaultRetryCount is the default number of retry attempts.
const DefaultRetryCount = 3

// DefaultBaseDelay is the initial delay for exponential backoff.
const DefaultBaseDelay = 1 * time.Second

// RetryClient wraps a TranscriptionClient with exponential backoff.
type RetryClient struct {
	client    TranscriptionClient
	maxRetry  int
	baseDelay time.Duration
	logger    logging.Logger
}

// RetryOption configures the RetryClient.
type RetryOption func(*RetryClient)

// WithRetryCount sets the maximum number of retry attempts.
func WithRetryCount(n int) RetryOption {
	return func(c *RetryClient) {
		c.maxRetry = n
	}
}

// WithBaseDelay sets the initial delay for exponential backoff.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *RetryClient) {
		c.baseDelay = d
	}
}

// WithLogger sets the logger for retry attempts.
func WithLogger(l logging.Logger) RetryOption {
	return func(c *RetryClient) {
		c.logger = l
	}
}

// NewRetryClient creates a new RetryClient wrapping the given TranscriptionClient.
func NewRetryClient(client TranscriptionClient, opts ...RetryOption) *RetryClient {
	c := &RetryClient{
		client:    client,
		maxRetry:  DefaultRetryCount,
		baseDelay: DefaultBaseDelay,
		logger:    logging.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Transcribe sends an audio file for transcription, retrying connection
// errors and 5xx responses. Other errors are returned at once.
func (c *RetryClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = c.baseDelay << 6
	bo.MaxElapsedTime = 0

	var (
		result    *TranscriptionResult
		permanent bool
		attempt   int
	)

	operation := func() error {
		r, err := c.client.Transcribe(ctx, audioPath, opts)
		if err == nil {
			result = r
			return nil
		}
		if !isRetryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		attempt++
		c.logger.Warn("retrying transcription",
			logging.String("file", audioPath),
			logging.Int("attempt", attempt),
			logging.Int("max_retries", c.maxRetry),
			logging.Duration("delay", delay),
			logging.String("error", err.Error()),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetry)), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return result, nil
	}
	if permanent || ctx.Err() != nil {
		return nil, err
	}
	return nil, fmt.Errorf("transcription failed after %d retries: %w", c.maxRetry, err)
}

// isRetryable reports whether an error should trigger a retry: connection
// errors and 5xx or 429 responses are retried, everything else is not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

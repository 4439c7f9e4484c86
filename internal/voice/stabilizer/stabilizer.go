// Package stabilizer decides when a recording has finished being written.
package stabilizer

import (
	"context"
	"errors"
	"os"
	"time"
)

var (
	// ErrStabilizationTimeout is returned when the file does not stabilize within the timeout.
	ErrStabilizationTimeout = errors.New("stabilization timeout: file did not stabilize in time")

	// ErrEmptyFile is returned when a file stays at zero bytes. The recording
	// is not ready; callers defer it rather than treat it as a failure.
	ErrEmptyFile = errors.New("file is empty")
)

// Stabilizer waits for a file to finish writing.
type Stabilizer interface {
	WaitForStable(ctx context.Context, path string) (int64, error)
}

// PollStabilizer implements Stabilizer by polling the file size.
type PollStabilizer struct {
	// Interval is the duration between file size checks.
	Interval time.Duration

	// Checks is the number of consecutive stable checks required.
	Checks int

	// Timeout is the maximum duration to wait for stabilization.
	// If zero, no timeout is applied (relies on context).
	Timeout time.Duration
}

// NewPollStabilizer creates a new polling-based stabilizer.
func NewPollStabilizer(interval time.Duration, checks int) *PollStabilizer {
	return &PollStabilizer{
		Interval: interval,
		Checks:   checks,
	}
}

// WaitForStable waits until the file size remains constant for the configured
// number of consecutive checks and returns that size.
//
// If Timeout is set and ctx has no deadline, ErrStabilizationTimeout is
// returned when it expires. A file that is stable at zero bytes yields
// ErrEmptyFile.
func (s *PollStabilizer) WaitForStable(ctx context.Context, path string) (int64, error) {
	usingInternalTimeout := false
	if s.Timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
			usingInternalTimeout = true
		}
	}

	checks := s.Checks
	if checks < 1 {
		checks = 1
	}

	var lastSize int64 = -1
	stableCount := 0

	for stableCount < checks {
		select {
		case <-ctx.Done():
			if usingInternalTimeout && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return 0, ErrStabilizationTimeout
			}
			return 0, ctx.Err()
		case <-time.After(s.Interval):
		}

		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}

		currentSize := info.Size()
		if currentSize == lastSize {
			stableCount++
		} else {
			stableCount = 0
			lastSize = currentSize
		}
	}

	if lastSize == 0 {
		return 0, ErrEmptyFile
	}
	return lastSize, nil
}

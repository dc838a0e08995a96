package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestRetryProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("backoff never exceeds the ceiling and starts at the initial interval", prop.ForAll(
		func(initialNs, maxNs int64, attempt int) bool {
			opts := Options{
				InitialInterval: time.Duration(initialNs),
				MaxInterval:     time.Duration(maxNs),
				Multiplier:      2,
			}
			b := Backoff(attempt, opts)
			if b > opts.MaxInterval {
				return false
			}
			if attempt == 1 && b != opts.InitialInterval {
				return false
			}
			return true
		},
		gen.Int64Range(int64(10*time.Millisecond), int64(100*time.Millisecond)),
		gen.Int64Range(int64(1*time.Second), int64(5*time.Second)),
		gen.IntRange(1, 20),
	))

	properties.Property("fn is called exactly MaxAttempts times when it always fails", prop.ForAll(
		func(maxAttempts int) bool {
			count := 0
			_ = Do(context.Background(), func(int) error {
				count++
				return errors.New("transient")
			}, Options{MaxAttempts: maxAttempts, InitialInterval: time.Microsecond, Multiplier: 2})
			return count == maxAttempts
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestBackoffDoublesFromBaseDelay(t *testing.T) {
	opts := Options{InitialInterval: 2 * time.Second, Multiplier: 2}
	assert.Equal(t, 2*time.Second, Backoff(1, opts))
	assert.Equal(t, 4*time.Second, Backoff(2, opts))
	assert.Equal(t, 8*time.Second, Backoff(3, opts))
}

func TestDoSuccessAfterFailures(t *testing.T) {
	var waits []time.Duration
	count := 0
	err := Do(context.Background(), func(attempt int) error {
		count++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	}, Options{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		OnRetry:         func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) },
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDoReturnsLastError(t *testing.T) {
	last := errors.New("second")
	err := Do(context.Background(), func(attempt int) error {
		if attempt == 1 {
			return errors.New("first")
		}
		return last
	}, Options{MaxAttempts: 2, InitialInterval: time.Microsecond})
	assert.Same(t, last, err)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	failure := errors.New("waiting")
	err := Do(ctx, func(int) error { return failure }, Options{MaxAttempts: 3, InitialInterval: time.Minute})

	var canceled *CanceledError
	assert.ErrorAs(t, err, &canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, failure)
}

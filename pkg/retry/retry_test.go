package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(time.Millisecond), WithJitter(0)}, opts...)...)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_RespectsRetryIf(t *testing.T) {
	other := errors.New("validation")
	calls := 0
	err := fast(WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) })).
		Do(context.Background(), func(context.Context) error {
			calls++
			return other
		})

	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(4)).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
}

func TestDo_ReportsEachRetry(t *testing.T) {
	var attempts []int
	r := fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, err error, _ time.Duration) {
		assert.ErrorIs(t, err, errTransient)
		attempts = append(attempts, attempt)
	}))

	err := r.Do(context.Background(), func(context.Context) error { return errTransient })

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestStoreRetrier_AppliesOverrides(t *testing.T) {
	calls := 0
	r := StoreRetrier(func(error) bool { return true }, WithMaxAttempts(2), WithInitialDelay(time.Millisecond))

	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Equal(t, 2, calls)
}

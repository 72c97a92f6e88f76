package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("stats", "Upsert", ErrStoreUnavailable, "write failed", cause)

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "stats.Upsert: write failed: connection refused", err.Error())
}

func TestClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("append: %w", ErrDuplicateAward)

	assert.True(t, IsRaceDetected(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(ErrSnapshotNotFound))
	assert.True(t, IsValidation(ErrInvalidPeriod))
	assert.True(t, IsStoreUnavailable(ErrTimeout))
	assert.True(t, IsRetryable(WrapError("ledger", "Append", ErrStoreUnavailable, "down", nil)))
}

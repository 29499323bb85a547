package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
)

func TestNewBatchError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	be := exception.NewBatchError("repository", "failed to connect", originalErr)

	assert.Equal(t, "repository", be.Module)
	assert.Equal(t, "failed to connect", be.Message)
	assert.Equal(t, originalErr, be.Unwrap())
	assert.Contains(t, be.Error(), "[repository] failed to connect: db connection refused")
	assert.NotEmpty(t, be.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	// Case 1: Only message args
	be1 := exception.NewBatchErrorf("stage", "lookup table %s is empty", "enduses")
	assert.Nil(t, be1.Unwrap())
	assert.Contains(t, be1.Error(), "[stage] lookup table enduses is empty")

	// Case 2: Message args + originalErr extracted from the tail
	originalErr := errors.New("io error")
	be2 := exception.NewBatchErrorf("storage", "read failed for %s", "load.parquet", originalErr)
	assert.Equal(t, "read failed for load.parquet", be2.Message)
	assert.Equal(t, originalErr, be2.Unwrap())

	// Case 3: No format args at all
	be3 := exception.NewBatchErrorf("job", "plan has no stages")
	assert.Equal(t, "plan has no stages", be3.Message)
	assert.Nil(t, be3.Unwrap())
}

func TestConfigErrorClassification(t *testing.T) {
	ce := exception.NewConfigError("config", "weather_year is required", nil)
	assert.True(t, exception.IsConfigError(ce))
	assert.False(t, exception.IsOutputExists(ce))
	assert.Contains(t, ce.Error(), "weather_year is required")

	// Wrapping preserves the classification.
	wrapped := fmt.Errorf("run aborted: %w", ce)
	assert.True(t, exception.IsConfigError(wrapped))

	// The original cause stays reachable through the chain.
	cause := errors.New("strconv parse failure")
	ce2 := exception.NewConfigErrorf("config", "bad value for %s", "weather_year", cause)
	assert.True(t, exception.IsConfigError(ce2))
	assert.True(t, errors.Is(ce2, cause))

	// Plain errors are not configuration errors.
	assert.False(t, exception.IsConfigError(errors.New("boom")))
	assert.False(t, exception.IsConfigError(nil))
}

func TestNewOutputExistsError(t *testing.T) {
	oe := exception.NewOutputExistsError("storage", "out/processed")

	// Occupied output is a configuration failure with its own marker.
	assert.True(t, exception.IsConfigError(oe))
	assert.True(t, exception.IsOutputExists(oe))
	assert.Contains(t, oe.Error(), "out/processed")
	assert.Contains(t, oe.Error(), "refusing to overwrite")
}

func TestNewOptimisticLockingFailureException(t *testing.T) {
	be := exception.NewOptimisticLockingFailureException("repository", "version mismatch", nil)

	assert.True(t, exception.IsOptimisticLockingFailure(be))
	assert.False(t, exception.IsConfigError(be))
	assert.Contains(t, be.Error(), "version mismatch")

	deeplyWrapped := fmt.Errorf("update failed: %w", be)
	assert.True(t, exception.IsOptimisticLockingFailure(deeplyWrapped))
}

func TestIsBatchError(t *testing.T) {
	be := exception.NewBatchError("stage", "boom", nil)
	assert.True(t, exception.IsBatchError(be))
	assert.True(t, exception.IsBatchError(fmt.Errorf("wrapped: %w", be)))
	assert.False(t, exception.IsBatchError(errors.New("plain")))
	assert.False(t, exception.IsBatchError(nil))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))

	be := exception.NewBatchError("stage", "short message", errors.New("long underlying detail"))
	assert.Equal(t, "short message", exception.ExtractErrorMessage(be))

	plain := errors.New("plain error text")
	assert.Equal(t, "plain error text", exception.ExtractErrorMessage(plain))
}

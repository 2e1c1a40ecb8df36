package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndCode(t *testing.T) {
	err := New(EvaluationFailed, "expression did not evaluate")
	assert.EqualError(t, err, "expression did not evaluate")

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, EvaluationFailed, e.Code())
}

func TestWrapPreservesOriginal(t *testing.T) {
	original := fmt.Errorf("connection refused")
	err := Wrap(original, OracleUnavailable, "oeis lookup failed")

	assert.EqualError(t, err, "oeis lookup failed: connection refused")
	assert.Equal(t, original, stderrors.Unwrap(err))

	assert.Nil(t, Wrap(nil, OracleUnavailable, "no-op"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(
		New(ProducerFailed, "producer returned no output"),
		Fields{"producer": "explorer-1", "generation": 3},
	)

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, ProducerFailed, e.Code())
	assert.Equal(t, "explorer-1", e.Fields()["producer"])
	assert.Equal(t, 3, e.Fields()["generation"])
	assert.Contains(t, err.Error(), "producer returned no output")
}

func TestWithFieldsOnPlainError(t *testing.T) {
	err := WithFields(fmt.Errorf("boom"), Fields{"k": "v"})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, Unknown, e.Code())
	assert.Equal(t, "v", e.Fields()["k"])
}

func TestIsMatchesOnCode(t *testing.T) {
	err := New(SessionAlreadyRunning, "a discovery session is active")
	assert.True(t, stderrors.Is(err, New(SessionAlreadyRunning, "different message")))
	assert.False(t, stderrors.Is(err, New(SessionNotRunning, "other")))
}

func TestHasCode(t *testing.T) {
	inner := New(StorageFailed, "insert failed")
	outer := fmt.Errorf("archiving discovery: %w", inner)

	assert.True(t, HasCode(outer, StorageFailed))
	assert.False(t, HasCode(outer, OracleUnavailable))
	assert.False(t, HasCode(nil, StorageFailed))
}

func TestCheckContext(t *testing.T) {
	assert.NoError(t, CheckContext(context.Background(), "merge"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CheckContext(ctx, "generation step")
	require.Error(t, err)
	assert.True(t, HasCode(err, Canceled))
}

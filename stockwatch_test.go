package stockwatch_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/stockwatch"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := stockwatch.Errorf(stockwatch.ENOTFOUND, "target %q not found", "abc")

	assert.Equal(t, stockwatch.ENOTFOUND, stockwatch.ErrorCode(err))
	assert.Equal(t, "target \"abc\" not found", stockwatch.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, stockwatch.ErrorCode(nil))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, stockwatch.ErrorMessage(nil))
}

func TestErrorCode_WrappedError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "HTTP 503"))

	assert.Equal(t, stockwatch.EUNAVAILABLE, stockwatch.ErrorCode(err))
	assert.Equal(t, "HTTP 503", stockwatch.ErrorMessage(err))
}

func TestErrorMessage_HidesForeignErrors(t *testing.T) {
	t.Parallel()

	err := errors.New("dial tcp 10.0.0.1:443: connect: connection refused")

	assert.Equal(t, stockwatch.EINTERNAL, stockwatch.ErrorCode(err))
	assert.Equal(t, "Internal error.", stockwatch.ErrorMessage(err))
}

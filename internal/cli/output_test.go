package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad config", errors.New("boom"))))
}

func TestGetExitCode_Wrapped(t *testing.T) {
	inner := WrapExitError(ExitCommandError, "bad config", errors.New("boom"))
	wrapped := fmt.Errorf("context: %w", inner)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitFailure, "delivery failed", errors.New("closed"))
	assert.Equal(t, "delivery failed: closed", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "closed")
}

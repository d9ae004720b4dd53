package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublic(t *testing.T) {
	assert.Equal(t, "You have already voted in that direction.", AlreadyVoted.Public())
	assert.Equal(t, "Resource not found.", NotFound.Public())
}

func TestUndoWindowErrorMatchesSentinel(t *testing.T) {
	var err error = &UndoWindowError{Minutes: 1}
	wrapped := fmt.Errorf("remove: %w", err)

	assert.True(t, errors.Is(wrapped, UndoWindowExpired))
	assert.False(t, errors.Is(wrapped, NoExistingVote))

	var uw *UndoWindowError
	if assert.True(t, errors.As(wrapped, &uw)) {
		assert.Equal(t, 1, uw.Minutes)
		assert.Equal(t, "You can no longer undo this vote after 1 minutes.", uw.Public())
	}
}

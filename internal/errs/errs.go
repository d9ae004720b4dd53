// Package errs holds the locally classified outcomes of vote operations.
// Anything that is not one of these is a server failure.
package errs

import (
	"fmt"
	"strings"
)

const (
	// AlreadyVoted is returned when a user casts the direction they already hold.
	AlreadyVoted voteError = "votes: you have already voted in that direction"
	// NoExistingVote is returned when removing a vote that does not exist.
	NoExistingVote voteError = "votes: you have not voted on this item"
	// UndoWindowExpired is matched by every *UndoWindowError.
	UndoWindowExpired voteError = "votes: undo window has expired"
	// ConstraintViolation is the store's answer to a second vote row for the
	// same (user, votable) pair.
	ConstraintViolation voteError = "votes: vote already exists for this user and item"
	// NotFound is returned when a votable or vote record is missing.
	NotFound voteError = "votes: resource not found"
	// InvalidInput is returned for malformed references or directions.
	InvalidInput voteError = "votes: invalid input"
)

type voteError string

func (e voteError) Error() string {
	return string(e)
}

// Public returns the message shown to API clients.
func (e voteError) Public() string {
	s := strings.Replace(string(e), "votes: ", "", 1)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// UndoWindowError carries the configured window so callers can tell the user
// how long they had.
type UndoWindowError struct {
	Minutes int
}

func (e *UndoWindowError) Error() string {
	return fmt.Sprintf("%s (window %d minutes)", UndoWindowExpired, e.Minutes)
}

func (e *UndoWindowError) Is(target error) bool {
	return target == UndoWindowExpired
}

func (e *UndoWindowError) Public() string {
	return fmt.Sprintf("You can no longer undo this vote after %d minutes.", e.Minutes)
}

package domain

import "errors"

var (
	// ErrPostNotFound is returned when a post id does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrReactionNotFound is returned when removing a reaction the user
	// never made.
	ErrReactionNotFound = errors.New("reaction not found")
)

package domain

import "errors"

var (
	// ErrAgentUnavailable covers a missing agent binding, provider failures and
	// turns that end in a non-completed state or never finish.
	ErrAgentUnavailable = errors.New("agent unavailable")
	// ErrExtractionFailure means the classifier output held no usable command.
	ErrExtractionFailure = errors.New("command extraction failed")
	// ErrMutationApply means a command could not be written to the store.
	ErrMutationApply = errors.New("mutation apply failed")

	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrRelationNotFound = errors.New("relation not found")
	ErrInvalidRelation  = errors.New("invalid relation")
	ErrInvalidLink      = errors.New("invalid link token")
	ErrEmptyMessage     = errors.New("message is empty")
)

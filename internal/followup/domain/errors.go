package domain

import "errors"

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrDraftNotSent indicates a scheduling attempt on a draft that has not been sent.
	ErrDraftNotSent = errors.New("draft has not been sent")
	// ErrMissingSentAt indicates a sent draft without a sent_at timestamp.
	ErrMissingSentAt = errors.New("draft has no sent_at timestamp")
	// ErrInvalidTransition indicates a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid followup status transition")
	// ErrContactNotFound indicates the external provider has no record for the identifier.
	ErrContactNotFound = errors.New("contact not found")
)

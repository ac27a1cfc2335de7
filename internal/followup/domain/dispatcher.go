package domain

import "context"

// GenerationRequest is the payload handed to the writer service to
// produce the next followup draft in a sequence.
type GenerationRequest struct {
	DraftID        string      `json:"draft_id"`
	VersionGroupID string      `json:"version_group_id,omitempty"`
	SequenceNumber int         `json:"followup_number"`
	Contact        ContactData `json:"contact"`
}

// Dispatcher requests generation of a followup draft. On success it
// returns the identifier of the newly created draft.
type Dispatcher interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

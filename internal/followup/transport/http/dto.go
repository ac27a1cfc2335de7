package http

// ScheduleFollowupsRequestDTO triggers followup creation for one sent draft.
type ScheduleFollowupsRequestDTO struct {
	DraftID string `json:"draft_id" validate:"required"`
}

// CancelFollowupsRequestDTO cancels the pending followups of one draft.
// Reason defaults to manual when omitted.
type CancelFollowupsRequestDTO struct {
	DraftID string `json:"draft_id" validate:"required"`
	Reason  string `json:"reason,omitempty" validate:"omitempty,oneof=manual prospect_replied"`
}

// ErrorResponseDTO is the uniform error body.
type ErrorResponseDTO struct {
	Error string `json:"error"`
}

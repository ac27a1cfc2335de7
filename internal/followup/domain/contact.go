package domain

import "context"

// ContactData is the current contact/company attributes resolved from
// the CRM, used to enrich followup generation requests.
type ContactData struct {
	ExternalID  string `json:"external_id"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Website     string `json:"website,omitempty"`
	Function    string `json:"function,omitempty"`
}

// ContactProvider resolves a stable external identifier to current
// contact data. Implementations return ErrContactNotFound when the
// identifier has no record.
type ContactProvider interface {
	Lookup(ctx context.Context, externalID string) (*ContactData, error)
}

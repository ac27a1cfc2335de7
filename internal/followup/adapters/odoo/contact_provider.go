package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// ContactProvider resolves contacts against the Odoo CRM REST API.
type ContactProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewContactProvider(logger *slog.Logger, baseURL, apiKey string, httpClient *http.Client) *ContactProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ContactProvider{
		logger:     logger.With("provider", "odoo"),
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type contactResponse struct {
	ID          json.Number `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	CompanyName string      `json:"company_name"`
	Website     string      `json:"website"`
	Function    string      `json:"function"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Lookup fetches current contact data by Odoo contact ID. A 404 maps to
// domain.ErrContactNotFound so callers can fall back to their snapshot.
func (p *ContactProvider) Lookup(ctx context.Context, externalID string) (*domain.ContactData, error) {
	endpoint := fmt.Sprintf("%s/contacts/%s", p.baseURL, url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Odoo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.ErrorContext(ctx, "Odoo request failed", "error", err, "external_id", externalID)
		return nil, fmt.Errorf("odoo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Odoo response (status %d): %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("contact %s: %w", externalID, domain.ErrContactNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr errorResponse
		msg := fmt.Sprintf("odoo API error: status %d", resp.StatusCode)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = fmt.Sprintf("odoo API error: status %d, message: %s", resp.StatusCode, apiErr.Message)
		}
		p.logger.WarnContext(ctx, "Odoo lookup failed", "status_code", resp.StatusCode, "external_id", externalID)
		return nil, fmt.Errorf("%s", msg)
	}

	var cr contactResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("failed to decode Odoo contact: %w", err)
	}

	p.logger.DebugContext(ctx, "Resolved Odoo contact", "external_id", externalID, "email", cr.Email)
	return &domain.ContactData{
		ExternalID:  cr.ID.String(),
		Email:       cr.Email,
		Name:        cr.Name,
		CompanyName: cr.CompanyName,
		Website:     cr.Website,
		Function:    cr.Function,
	}, nil
}

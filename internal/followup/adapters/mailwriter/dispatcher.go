package mailwriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// Dispatcher asks the mail-writer service to compose and queue the
// followup email. Generation is synchronous from this side.
type Dispatcher struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewDispatcher(logger *slog.Logger, baseURL string, httpClient *http.Client) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Dispatcher{
		logger:     logger.With("dispatcher", "mail_writer"),
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

type generatePayload struct {
	DraftID        string `json:"draft_id"`
	VersionGroupID string `json:"version_group_id,omitempty"`
	FollowupNumber int    `json:"followup_number"`
	OdooContactID  string `json:"odoo_contact_id,omitempty"`
	RecipientEmail string `json:"recipient_email"`
	CompanyName    string `json:"company_name,omitempty"`
	ContactName    string `json:"contact_first_name,omitempty"`
}

type generateResponse struct {
	Success bool   `json:"success"`
	DraftID string `json:"draft_id"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Generate posts the generation request and returns the ID of the draft
// the mail-writer created. A 2xx response with success=false is still a
// failure.
func (d *Dispatcher) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload := generatePayload{
		DraftID:        req.DraftID,
		VersionGroupID: req.VersionGroupID,
		FollowupNumber: req.SequenceNumber,
		OdooContactID:  req.Contact.ExternalID,
		RecipientEmail: req.Contact.Email,
		CompanyName:    req.Contact.CompanyName,
		ContactName:    req.Contact.Name,
	}

	reqBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mail-writer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/generate-followup", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create mail-writer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	d.logger.InfoContext(ctx, "Requesting followup generation",
		"draft_id", req.DraftID, "followup_number", req.SequenceNumber, "recipient_email", req.Contact.Email)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		d.logger.ErrorContext(ctx, "Mail-writer request failed", "error", err, "draft_id", req.DraftID)
		return "", fmt.Errorf("mail-writer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read mail-writer response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.ErrorContext(ctx, "Mail-writer returned HTTP error",
			"status_code", resp.StatusCode, "draft_id", req.DraftID)
		return "", fmt.Errorf("mail-writer error: status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to decode mail-writer response: %w", err)
	}
	if !genResp.Success {
		errMsg := genResp.Error
		if errMsg == "" {
			errMsg = genResp.Message
		}
		return "", fmt.Errorf("mail-writer rejected generation: %s", errMsg)
	}

	d.logger.InfoContext(ctx, "Followup generated",
		"draft_id", req.DraftID, "followup_number", req.SequenceNumber, "created_draft_id", genResp.DraftID)
	return genResp.DraftID, nil
}

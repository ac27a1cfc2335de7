package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/wardrockay/auto-followup/internal/followup/app"
	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// DraftScheduler, Canceller, BatchProcessor and Retrier are the
// application operations the handler exposes. Declared here so tests
// can substitute mocks.
type DraftScheduler interface {
	ScheduleForDraft(ctx context.Context, draftID string) (*app.ScheduleResult, error)
}

type Canceller interface {
	CancelForDraft(ctx context.Context, draftID, reason string) (*app.CancellationResult, error)
}

type BatchProcessor interface {
	RunBatch(ctx context.Context, now time.Time) (*app.BatchResult, error)
}

type Retrier interface {
	RetryAll(ctx context.Context) (int, error)
}

type FollowupLister interface {
	GetByDraft(ctx context.Context, draftID string) ([]*domain.Followup, error)
}

type FollowupHandler struct {
	scheduler DraftScheduler
	canceller Canceller
	processor BatchProcessor
	retrier   Retrier
	lister    FollowupLister
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewFollowupHandler(
	scheduler DraftScheduler,
	canceller Canceller,
	processor BatchProcessor,
	retrier Retrier,
	lister FollowupLister,
	logger *slog.Logger,
	validate *validator.Validate,
) *FollowupHandler {
	return &FollowupHandler{
		scheduler: scheduler,
		canceller: canceller,
		processor: processor,
		retrier:   retrier,
		lister:    lister,
		logger:    logger.With("component", "followup_handler"),
		validate:  validate,
	}
}

func (h *FollowupHandler) ScheduleFollowups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var reqDTO ScheduleFollowupsRequestDTO
	if !h.decodeAndValidate(w, r, logger, &reqDTO) {
		return
	}

	result, err := h.scheduler.ScheduleForDraft(ctx, reqDTO.DraftID)
	if err != nil {
		h.writeDomainError(ctx, w, logger, err, "ScheduleFollowups", reqDTO.DraftID)
		return
	}

	writeJSON(ctx, w, logger, http.StatusCreated, result)
}

func (h *FollowupHandler) CancelFollowups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var reqDTO CancelFollowupsRequestDTO
	if !h.decodeAndValidate(w, r, logger, &reqDTO) {
		return
	}

	result, err := h.canceller.CancelForDraft(ctx, reqDTO.DraftID, reqDTO.Reason)
	if err != nil {
		h.writeDomainError(ctx, w, logger, err, "CancelFollowups", reqDTO.DraftID)
		return
	}

	writeJSON(ctx, w, logger, http.StatusOK, result)
}

func (h *FollowupHandler) ProcessPendingFollowups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	result, err := h.processor.RunBatch(ctx, time.Now().UTC())
	if err != nil {
		logger.ErrorContext(ctx, "Processing pass failed", "error", err)
		writeJSON(ctx, w, logger, http.StatusInternalServerError, ErrorResponseDTO{Error: "failed to process pending followups"})
		return
	}

	writeJSON(ctx, w, logger, http.StatusOK, result)
}

func (h *FollowupHandler) RetryFailedFollowups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	retried, err := h.retrier.RetryAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Retry pass failed", "error", err)
		writeJSON(ctx, w, logger, http.StatusInternalServerError, ErrorResponseDTO{Error: "failed to retry followups"})
		return
	}

	writeJSON(ctx, w, logger, http.StatusOK, map[string]int{"retried_count": retried})
}

func (h *FollowupHandler) ListFollowups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	draftID := r.URL.Query().Get("draft_id")
	if draftID == "" {
		writeJSON(ctx, w, logger, http.StatusBadRequest, ErrorResponseDTO{Error: "draft_id query parameter is required"})
		return
	}

	followups, err := h.lister.GetByDraft(ctx, draftID)
	if err != nil {
		h.writeDomainError(ctx, w, logger, err, "ListFollowups", draftID)
		return
	}
	if followups == nil {
		followups = []*domain.Followup{}
	}

	writeJSON(ctx, w, logger, http.StatusOK, map[string]any{
		"draft_id":  draftID,
		"followups": followups,
	})
}

func (h *FollowupHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dto any) bool {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		logger.WarnContext(ctx, "Failed to decode request body", "error", err)
		writeJSON(ctx, w, logger, http.StatusBadRequest, ErrorResponseDTO{Error: "invalid request body"})
		return false
	}
	if err := h.validate.StructCtx(ctx, dto); err != nil {
		logger.WarnContext(ctx, "Request validation failed", "error", err)
		writeJSON(ctx, w, logger, http.StatusBadRequest, ErrorResponseDTO{Error: fmt.Sprintf("validation error: %s", err)})
		return false
	}
	return true
}

// writeDomainError maps domain sentinels to HTTP statuses.
func (h *FollowupHandler) writeDomainError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error, operation, draftID string) {
	logEntry := logger.With("operation", operation, "draft_id", draftID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logEntry.WarnContext(ctx, "Resource not found", "error", err)
		writeJSON(ctx, w, logger, http.StatusNotFound, ErrorResponseDTO{Error: err.Error()})
	case errors.Is(err, domain.ErrDraftNotSent), errors.Is(err, domain.ErrMissingSentAt):
		logEntry.WarnContext(ctx, "Draft not eligible for followups", "error", err)
		writeJSON(ctx, w, logger, http.StatusUnprocessableEntity, ErrorResponseDTO{Error: err.Error()})
	default:
		logEntry.ErrorContext(ctx, "Operation failed", "error", err)
		writeJSON(ctx, w, logger, http.StatusInternalServerError, ErrorResponseDTO{Error: "internal server error"})
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.ErrorContext(ctx, "Failed to encode response", "error", err)
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/risk"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// Service defines the risk scoring operations the handler needs.
type Service interface {
	ScoreTransaction(ctx context.Context, req risk.ScoreRequest) (*risk.Result, error)
}

// Handler wires risk endpoints to the risk service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a risk handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts risk endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transactions/score", h.HandleScore)
}

// ScoreRequest is the transport shape of a scoring call.
type ScoreRequest struct {
	SubjectID      string `json:"subject_id"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	Quantity       int    `json:"quantity"`
	ItemType       string `json:"item_type"`
	Location       string `json:"location,omitempty"`
}

// HandleScore handles POST /transactions/score requests.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.Decode[ScoreRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subjectID, err := id.ParseAccountID(req.SubjectID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject_id must be a UUID"))
		return
	}
	var counterpartyID id.AccountID
	if req.CounterpartyID != "" {
		counterpartyID, err = id.ParseAccountID(req.CounterpartyID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "counterparty_id must be a UUID"))
			return
		}
	}

	result, err := h.service.ScoreTransaction(ctx, risk.ScoreRequest{
		SubjectID:      subjectID,
		CounterpartyID: counterpartyID,
		Quantity:       req.Quantity,
		ItemType:       req.ItemType,
		Location:       req.Location,
		ProposedAt:     requestcontext.Now(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "transaction scoring failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "transaction scored",
		"request_id", requestID,
		"subject_id", req.SubjectID,
		"score", result.Score,
		"level", result.Level,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/flagging"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// Service defines the flagging operations the handler needs.
type Service interface {
	EvaluateTransaction(ctx context.Context, txID id.TransactionID) (flagging.EvalResult, *flagging.Flag, error)
	ResolveFlag(ctx context.Context, flagID id.FlagID, action flagging.ResolutionAction, resolvedBy, notes string) (*flagging.Flag, error)
}

// Handler wires flagging endpoints to the flagging service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a flagging handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts flagging endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/flags/evaluate", h.HandleEvaluate)
	r.Post("/flags/{flagID}/resolve", h.HandleResolve)
}

// EvaluateRequest names the persisted transaction to run the rules against.
type EvaluateRequest struct {
	TransactionID string `json:"transaction_id"`
}

// EvaluateResponse pairs the verdict with the flag it produced, if any.
type EvaluateResponse struct {
	Result flagging.EvalResult `json:"result"`
	FlagID *id.FlagID          `json:"flag_id,omitempty"`
}

// HandleEvaluate handles POST /flags/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.Decode[EvaluateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	txID, err := id.ParseTransactionID(req.TransactionID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "transaction_id must be a UUID"))
		return
	}

	result, flag, err := h.service.EvaluateTransaction(ctx, txID)
	if err != nil {
		h.logger.ErrorContext(ctx, "flag evaluation failed",
			"request_id", requestID,
			"transaction_id", req.TransactionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := EvaluateResponse{Result: result}
	if flag != nil {
		resp.FlagID = &flag.ID
	}

	h.logger.InfoContext(ctx, "transaction evaluated",
		"request_id", requestID,
		"transaction_id", req.TransactionID,
		"flagged", result.Flagged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ResolveRequest carries the reviewer's verdict on an open flag.
type ResolveRequest struct {
	Action     string `json:"action"`
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes,omitempty"`
}

// ResolveResponse reports the flag's final state.
type ResolveResponse struct {
	FlagID   id.FlagID `json:"flag_id"`
	Resolved bool      `json:"resolved"`
	Action   string    `json:"action"`
}

// HandleResolve handles POST /flags/{flagID}/resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	flagID, err := id.ParseFlagID(chi.URLParam(r, "flagID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "flag id must be a UUID"))
		return
	}
	req, err := httputil.Decode[ResolveRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	flag, err := h.service.ResolveFlag(ctx, flagID, flagging.ResolutionAction(req.Action), req.ResolvedBy, req.Notes)
	if err != nil {
		h.logger.ErrorContext(ctx, "flag resolution failed",
			"request_id", requestID,
			"flag_id", flagID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "flag resolved",
		"request_id", requestID,
		"flag_id", flagID.String(),
		"action", req.Action,
		"resolved_by", req.ResolvedBy,
	)
	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{
		FlagID:   flag.ID,
		Resolved: flag.Resolved,
		Action:   string(flag.ResolutionAction),
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custos/internal/prediction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// Service defines the prediction operations the handler needs.
type Service interface {
	Predict(ctx context.Context, accountID id.AccountID) (*prediction.Result, error)
}

// Handler wires the trajectory estimate endpoint to the prediction service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a prediction handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the prediction endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/predictions/{accountID}", h.HandlePredict)
}

// HandlePredict handles GET /predictions/{accountID} requests.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "account id must be a UUID"))
		return
	}

	result, err := h.service.Predict(ctx, accountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "trajectory prediction failed",
			"request_id", requestID,
			"account_id", accountID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "trajectory predicted",
		"request_id", requestID,
		"account_id", accountID.String(),
		"trajectory", result.Trajectory,
		"confidence", result.Confidence,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/account"
	"custos/internal/enforcement"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/audit"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// Service defines the enforcement operations the handler needs.
type Service interface {
	Reinstate(ctx context.Context, accountID id.AccountID) (*account.Account, error)
}

// Runner is the scheduler surface: manual trigger plus lifecycle control.
type Runner interface {
	RunNow(ctx context.Context) (*audit.ExecutionRecord, error)
	Start() error
	Stop() error
	Status() enforcement.SchedulerStatus
}

// Handler wires enforcement endpoints to the service and scheduler.
type Handler struct {
	service   Service
	scheduler Runner
	logger    *slog.Logger
}

// New constructs an enforcement handler with its dependencies.
func New(service Service, scheduler Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, scheduler: scheduler, logger: logger}
}

// Register mounts enforcement and scheduler endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/enforcement/run", h.HandleRun)
	r.Post("/enforcement/reinstate/{accountID}", h.HandleReinstate)
	r.Post("/scheduler/start", h.HandleStart)
	r.Post("/scheduler/stop", h.HandleStop)
	r.Get("/scheduler/status", h.HandleStatus)
}

// HandleRun handles POST /enforcement/run requests: one manual sweep,
// serialized with the scheduled loop.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	record, err := h.scheduler.RunNow(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual enforcement run failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "manual enforcement run finished",
		"request_id", requestID,
		"execution_id", record.ID.String(),
		"processed", record.Counts.Processed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, record)
}

// ReinstateResponse reports the account's state after reinstatement.
type ReinstateResponse struct {
	AccountID     id.AccountID          `json:"account_id"`
	LicenseStatus account.LicenseStatus `json:"license_status"`
}

// HandleReinstate handles POST /enforcement/reinstate/{accountID} requests.
func (h *Handler) HandleReinstate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "account id must be a UUID"))
		return
	}

	acct, err := h.service.Reinstate(ctx, accountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "reinstatement failed",
			"request_id", requestID,
			"account_id", accountID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "account reinstated",
		"request_id", requestID,
		"account_id", accountID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, ReinstateResponse{
		AccountID:     acct.ID,
		LicenseStatus: acct.LicenseStatus,
	})
}

// HandleStart handles POST /scheduler/start requests.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Start(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// HandleStop handles POST /scheduler/stop requests.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// HandleStatus handles GET /scheduler/status requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

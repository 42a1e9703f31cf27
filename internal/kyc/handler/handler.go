package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/service"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/httputil"
	"kycgate/pkg/requestcontext"
)

// Service defines the interface for KYC operations.
type Service interface {
	Submit(ctx context.Context, userID id.UserID, sub models.Submission) (*service.SubmitResult, error)
	GetLatest(ctx context.Context, userID id.UserID) (*service.UserStatus, error)
	Get(ctx context.Context, caller service.Caller, recordID id.RecordID) (*models.VerificationRecord, error)
	LedgerStatus(ctx context.Context, userID id.UserID) (bool, error)
	List(ctx context.Context, filter models.ListFilter, page models.Page) (*service.ListResult, error)
	Stats(ctx context.Context) (*service.Stats, error)
	Repair(ctx context.Context) (*service.RepairReport, error)
}

// Handler wires KYC endpoints to the orchestrator.
type Handler struct {
	service      Service
	logger       *slog.Logger
	maxFileBytes int64
}

// New constructs a KYC handler. maxFileBytes bounds each uploaded image.
func New(service Service, logger *slog.Logger, maxFileBytes int64) *Handler {
	if maxFileBytes <= 0 {
		maxFileBytes = models.DefaultMaxFileBytes
	}
	return &Handler{
		service:      service,
		logger:       logger,
		maxFileBytes: maxFileBytes,
	}
}

// Register mounts the authenticated user endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/kyc/submit", h.HandleSubmit)
	r.Get("/kyc/status", h.HandleStatus)
	r.Get("/kyc/records/{id}", h.HandleGetRecord)
	r.Get("/kyc/ledger", h.HandleLedgerStatus)
}

// RegisterAdmin mounts the admin endpoints. The caller must already be
// checked for the admin role.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/kyc/records", h.HandleList)
	r.Get("/admin/kyc/stats", h.HandleStats)
	r.Post("/admin/kyc/repair", h.HandleRepair)
}

// HandleSubmit handles POST /kyc/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	sub, err := h.parseSubmission(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "unreadable kyc submission",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Submit(ctx, userID, sub)
	if err != nil {
		h.logger.InfoContext(ctx, "kyc submission refused",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "kyc submission accepted",
		"request_id", requestID,
		"user_id", userID.String(),
		"record_id", result.RecordID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, SubmitResponse{
		RecordID:    result.RecordID.String(),
		Status:      string(result.Status),
		SubmittedAt: result.SubmittedAt,
	})
}

// HandleStatus handles GET /kyc/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetLatest(r.Context(), userID)
	if err != nil {
		h.logError(r, "failed to load kyc status", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Record:    FromRecord(status.Record),
		KYCStatus: string(status.KYCStatus),
	})
}

// HandleGetRecord handles GET /kyc/records/{id}.
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id"))
		return
	}

	caller := service.Caller{UserID: userID, Admin: requestcontext.IsAdmin(ctx)}
	record, err := h.service.Get(ctx, caller, recordID)
	if err != nil {
		h.logError(r, "failed to load verification record", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleLedgerStatus handles GET /kyc/ledger.
func (h *Handler) HandleLedgerStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	verified, err := h.service.LedgerStatus(r.Context(), userID)
	if err != nil {
		h.logError(r, "ledger lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LedgerStatusResponse{Verified: verified})
}

// HandleList handles GET /admin/kyc/records.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		h.logError(r, "failed to list verification records", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromListResult(result))
}

// HandleStats handles GET /admin/kyc/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logError(r, "failed to compute kyc stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStats(stats))
}

// HandleRepair handles POST /admin/kyc/repair.
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.service.Repair(ctx)
	if err != nil {
		h.logError(r, "repair run failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "repair triggered",
		"request_id", requestcontext.RequestID(ctx),
		"admin_id", requestcontext.UserID(ctx).String(),
		"repaired", report.Repaired,
		"failed", report.Failed,
	)
	httputil.WriteJSON(w, http.StatusOK, FromRepairReport(report))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		// RequireAuth should have rejected the request already
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx).String(),
		"error", err,
	)
}

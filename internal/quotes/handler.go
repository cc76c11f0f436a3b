package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

// ExpirySweeper hands the overdue-quote sweep to the background queue.
// A nil asOf means "as of pickup time".
type ExpirySweeper interface {
	EnqueueQuoteExpiry(ctx context.Context, asOf *time.Time) error
}

// Handler exposes the quote lifecycle over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sweeper  ExpirySweeper
	validate *validator.Validate
}

// NewHandler builds Handler instance. sweeper may be nil; the expiry
// endpoint then runs the sweep inline instead of enqueueing it.
func NewHandler(logger *slog.Logger, service *Service, sweeper ExpirySweeper) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sweeper:  sweeper,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/stats", h.statistics)
	r.Post("/expire", h.expire)
	r.Get("/number/{docNumber}", h.getByDocNumber)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/status", h.changeStatus)
	r.Post("/{id}/duplicate", h.duplicate)
	r.Get("/{id}/export", h.exportHTML)
	r.Get("/{id}/pdf", h.exportPDF)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req, err := parseListQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	summaries, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list quotes failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quotes": summaries,
		"total":  total,
	})
}

func parseListQuery(r *http.Request) (ListQuotesRequest, error) {
	var req ListQuotesRequest
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := QuoteStatus(v)
		req.Status = &status
	}
	if v := q.Get("company_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: invalid company_id", httpx.ErrValidation)
		}
		req.CompanyID = &id
	}
	if v := q.Get("employee_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: invalid employee_id", httpx.ErrValidation)
		}
		req.EmployeeID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, fmt.Errorf("%w: invalid from date", httpx.ErrValidation)
		}
		req.DateFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, fmt.Errorf("%w: invalid to date", httpx.ErrValidation)
		}
		req.DateTo = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("%w: invalid limit", httpx.ErrValidation)
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("%w: invalid offset", httpx.ErrValidation)
		}
		req.Offset = n
	}
	return req, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	quote, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create quote failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) getByDocNumber(w http.ResponseWriter, r *http.Request) {
	docNumber := chi.URLParam(r, "docNumber")
	details, err := h.service.GetByDocNumber(r.Context(), docNumber)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	quote, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "update quote failed", "quote_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	employeeID, err := strconv.ParseInt(r.URL.Query().Get("employee_id"), 10, 64)
	if err != nil || employeeID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "employee_id query parameter is required")
		return
	}

	if err := h.service.Delete(r.Context(), id, employeeID); err != nil {
		h.logger.ErrorContext(r.Context(), "delete quote failed", "quote_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ChangeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	quote, err := h.service.ChangeStatus(r.Context(), id, req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "status change failed", "quote_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		EmployeeID int64 `json:"employee_id" validate:"required,gt=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	quote, err := h.service.Duplicate(r.Context(), id, req.EmployeeID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "duplicate quote failed", "quote_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

// expire triggers an overdue-quote sweep without waiting for the cron
// run. With a queue configured the sweep is handed to the worker.
func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		count, err := h.service.ExpireOverdue(r.Context(), time.Now())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "expiry sweep failed", "error", err)
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"expired": count})
		return
	}

	if err := h.sweeper.EnqueueQuoteExpiry(r.Context(), nil); err != nil {
		h.logger.ErrorContext(r.Context(), "enqueue expiry sweep failed", "error", err)
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "statistics failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) exportHTML(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.html", details.DocNumber))
	if err := RenderHTML(w, details); err != nil {
		h.logger.ErrorContext(r.Context(), "html export failed", "quote_id", id, "error", err)
	}
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", details.DocNumber))
	if err := RenderPDF(w, details); err != nil {
		h.logger.ErrorContext(r.Context(), "pdf export failed", "quote_id", id, "error", err)
	}
}

package siteprofit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
)

const (
	msgReportFailed   = "failed to compute site profit"
	msgSnapshotFailed = "failed to load site profit snapshots"
	msgEnqueueFailed  = "failed to schedule site profit snapshot"
)

// ReportService defines the report contract used by the handler.
type ReportService interface {
	Summaries(ctx context.Context, filter Filter) ([]Summary, error)
}

// SnapshotReader lists stored snapshots.
type SnapshotReader interface {
	List(ctx context.Context, filter Filter) ([]Snapshot, error)
}

// SnapshotEnqueuer schedules a snapshot capture in the background.
type SnapshotEnqueuer interface {
	EnqueueSnapshot(ctx context.Context, from, to time.Time) (string, error)
}

// Handler serves the site profit report over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	snapshots SnapshotReader
	enqueuer  SnapshotEnqueuer
	now       func() time.Time
}

// NewHandler constructs the report handler. snapshots and enqueuer may be nil,
// in which case the snapshot routes answer 503.
func NewHandler(logger *slog.Logger, service ReportService, snapshots SnapshotReader, enqueuer SnapshotEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		snapshots: snapshots,
		enqueuer:  enqueuer,
		now:       time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers report routes. Every response is marked uncacheable so
// polling clients always see the current ledgers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(middleware.NoCache)
	r.Get("/", h.handleSummaries)
	r.Get("/export.csv", h.handleExport)
	r.Get("/snapshots", h.handleListSnapshots)
	r.Post("/snapshots", h.handleEnqueueSnapshot)
}

func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Summaries(r.Context(), filter)
	if err != nil {
		h.respondError(w, "site profit report", err, msgReportFailed)
		return
	}
	httpx.OK(w, http.StatusOK, rows)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Summaries(r.Context(), filter)
	if err != nil {
		h.respondError(w, "site profit export", err, msgReportFailed)
		return
	}

	var buf bytes.Buffer
	if err := WriteSummariesCSV(&buf, rows); err != nil {
		h.respondError(w, "site profit export", err, msgReportFailed)
		return
	}
	filename := fmt.Sprintf("site-profit-%s.csv", h.now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		httpx.Fail(w, http.StatusServiceUnavailable, "snapshots are not configured")
		return
	}
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.snapshots.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list site profit snapshots", err, msgSnapshotFailed)
		return
	}
	if rows == nil {
		rows = []Snapshot{}
	}
	httpx.OK(w, http.StatusOK, rows)
}

func (h *Handler) handleEnqueueSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Fail(w, http.StatusServiceUnavailable, "background jobs are not configured")
		return
	}
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	if filter.HasFrom() != filter.HasTo() {
		httpx.Fail(w, http.StatusBadRequest, "from and to must be supplied together")
		return
	}
	taskID, err := h.enqueuer.EnqueueSnapshot(r.Context(), filter.From, filter.To)
	if err != nil {
		h.respondError(w, "enqueue site profit snapshot", err, msgEnqueueFailed)
		return
	}
	httpx.OK(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	filter, err := ParseFilter(q.Get("siteId"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.respondError(w, "parse site profit filter", err, msgReportFailed)
		return Filter{}, false
	}
	return filter, true
}

// respondError answers through httpx.RespondError; server errors are logged and
// hidden behind message.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error, message string) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err, message)
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"tender_watch/internal/app"
	"tender_watch/internal/domain/tender"
	"tender_watch/internal/infra/database"
	"tender_watch/internal/infra/ted"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	defaultExpiringDays = 7
	maxExpiringDays     = 30
)

// Syncer triggers synchronization runs and exposes their status.
type Syncer interface {
	Sync(ctx context.Context, country string) (tender.SyncStatus, error)
	Status() tender.SyncStatus
}

// Handler serves the tender read API and the sync trigger.
type Handler struct {
	repo           tender.Repository
	syncer         Syncer
	defaultCountry string
	logger         *logrus.Entry
}

func NewHandler(repo tender.Repository, syncer Syncer, defaultCountry string, logger *logrus.Entry) *Handler {
	return &Handler{
		repo:           repo,
		syncer:         syncer,
		defaultCountry: defaultCountry,
		logger:         logger,
	}
}

// tenderResponse augments a stored tender with its derived fields.
type tenderResponse struct {
	*tender.Tender
	DaysUntilDeadline *int   `json:"days_until_deadline"`
	IsExpired         bool   `json:"is_expired"`
	FormattedValue    string `json:"formatted_value,omitempty"`
}

func toTenderResponse(t *tender.Tender, now time.Time) tenderResponse {
	resp := tenderResponse{
		Tender:         t,
		IsExpired:      t.IsExpired(now),
		FormattedValue: t.FormattedValue(),
	}
	if days, ok := t.DaysUntilDeadline(now); ok {
		resp.DaysUntilDeadline = &days
	}
	return resp
}

func toTenderResponses(tenders []*tender.Tender) []tenderResponse {
	now := time.Now()
	out := make([]tenderResponse, 0, len(tenders))
	for _, t := range tenders {
		out = append(out, toTenderResponse(t, now))
	}
	return out
}

type pageResponse struct {
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Pages int              `json:"pages"`
	Items []tenderResponse `json:"items"`
}

// ListTenders handles GET /api/tenders.
func (h *Handler) ListTenders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := tender.Filter{
		CPV:        q.Get("cpv"),
		SearchText: q.Get("search"),
	}
	// Country defaults to the configured one; "all" removes the filter.
	filter.Country = h.defaultCountry
	if q.Has("country") {
		filter.Country = q.Get("country")
		if filter.Country == "all" {
			filter.Country = ""
		}
	}

	var err error
	if filter.MinValue, err = queryFloat(q.Get("min_value")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_value")
		return
	}
	if filter.MaxValue, err = queryFloat(q.Get("max_value")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_value")
		return
	}
	if filter.DaysRemaining, err = queryInt(q.Get("days_remaining")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid days_remaining")
		return
	}
	if err := filter.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := 1
	if p, err := queryInt(q.Get("page")); err != nil || (p != nil && *p < 1) {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	} else if p != nil {
		page = *p
	}
	limit := defaultPageLimit
	if l, err := queryInt(q.Get("limit")); err != nil || (l != nil && (*l < 1 || *l > maxPageLimit)) {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	} else if l != nil {
		limit = *l
	}

	result, err := h.repo.List(r.Context(), filter, page, limit)
	if err != nil {
		h.logger.Errorf("list tenders failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database error")
		return
	}

	writeJSON(w, http.StatusOK, pageResponse{
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
		Pages: result.Pages(),
		Items: toTenderResponses(result.Items),
	})
}

// GetTender handles GET /api/tenders/{noticeID}.
func (h *Handler) GetTender(w http.ResponseWriter, r *http.Request) {
	noticeID := r.PathValue("noticeID")

	t, err := h.repo.GetByID(r.Context(), noticeID)
	if err != nil {
		if errors.Is(err, database.ErrTenderNotFound) {
			writeError(w, http.StatusNotFound, "tender not found")
			return
		}
		h.logger.Errorf("get tender %s failed: %v", noticeID, err)
		writeError(w, http.StatusServiceUnavailable, "database error")
		return
	}
	writeJSON(w, http.StatusOK, toTenderResponse(t, time.Now()))
}

// GetStats handles GET /api/tenders/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Errorf("stats failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetExpiring handles GET /api/tenders/expiring.
func (h *Handler) GetExpiring(w http.ResponseWriter, r *http.Request) {
	days := defaultExpiringDays
	if d, err := queryInt(r.URL.Query().Get("days")); err != nil || (d != nil && (*d < 1 || *d > maxExpiringDays)) {
		writeError(w, http.StatusBadRequest, "invalid days")
		return
	} else if d != nil {
		days = *d
	}

	tenders, err := h.repo.ListExpiring(r.Context(), days)
	if err != nil {
		h.logger.Errorf("list expiring failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database error")
		return
	}
	writeJSON(w, http.StatusOK, toTenderResponses(tenders))
}

// TriggerSync handles POST /api/tenders/sync.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")

	status, err := h.syncer.Sync(r.Context(), country)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSyncInProgress):
			writeError(w, http.StatusConflict, "a synchronization is already in progress")
		case isUpstreamError(err):
			h.logger.Errorf("sync failed: %v", err)
			writeError(w, http.StatusServiceUnavailable, "TED API error: "+err.Error())
		default:
			h.logger.Errorf("sync failed: %v", err)
			writeError(w, http.StatusInternalServerError, "synchronization failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetSyncStatus handles GET /api/tenders/sync/status.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.syncer.Status())
}

// DeleteExpired handles DELETE /api/tenders/expired.
func (h *Handler) DeleteExpired(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.repo.DeleteExpired(r.Context())
	if err != nil {
		h.logger.Errorf("delete expired failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Health handles GET /api/health by verifying repository reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		h.logger.Errorf("health check failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "connected",
	})
}

func isUpstreamError(err error) bool {
	var apiErr *ted.APIError
	return errors.As(err, &apiErr)
}

func queryFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func queryInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package httpapi

import "net/http"

// NewRouter builds the HTTP mux for the tender API.
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tenders", h.ListTenders)
	mux.HandleFunc("GET /api/tenders/stats", h.GetStats)
	mux.HandleFunc("GET /api/tenders/expiring", h.GetExpiring)
	mux.HandleFunc("POST /api/tenders/sync", h.TriggerSync)
	mux.HandleFunc("GET /api/tenders/sync/status", h.GetSyncStatus)
	mux.HandleFunc("DELETE /api/tenders/expired", h.DeleteExpired)
	mux.HandleFunc("GET /api/tenders/{noticeID}", h.GetTender)
	mux.HandleFunc("GET /api/health", h.Health)

	return mux
}

package server

import (
	"net/http"
	"time"

	"github.com/opencatalog/search-indexer/pkg/health"
	"github.com/opencatalog/search-indexer/pkg/metrics"
	"github.com/opencatalog/search-indexer/pkg/middleware"
)

// New builds the admin HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST /search/index/inventory/reindex → submit reindex
//	POST /search/index/indices           → create index
//	POST /search/index/mappings          → update mappings
//	PUT  /search/index/settings          → update dynamic settings
//	POST /search/resources/jobs          → start streaming id job
//	GET  /search/resources/jobs/{id}     → poll streaming id job
//	GET  /health                         → liveness
//	GET  /ready                          → dependency readiness
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Timeout → handler
func New(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", checker.LiveHandler())
	mux.HandleFunc("GET /ready", checker.ReadyHandler())

	mux.HandleFunc("POST /search/index/inventory/reindex", h.Reindex)
	mux.HandleFunc("POST /search/index/indices", h.CreateIndex)
	mux.HandleFunc("POST /search/index/mappings", h.UpdateMappings)
	mux.HandleFunc("PUT /search/index/settings", h.UpdateIndexSettings)

	mux.HandleFunc("POST /search/resources/jobs", h.CreateJob)
	mux.HandleFunc("GET /search/resources/jobs/{id}", h.GetJob)

	var chain http.Handler = mux
	chain = middleware.Timeout(requestTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)
	return chain
}

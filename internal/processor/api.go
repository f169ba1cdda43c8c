package processor

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"market-data-processor/internal/indicator"
	"market-data-processor/internal/logger"
)

// API serves the processor's HTTP endpoints.
type API struct {
	proc *Processor
}

// NewAPI creates the HTTP API for p.
func NewAPI(p *Processor) *API {
	return &API{proc: p}
}

// Mux is satisfied by *http.ServeMux and *metrics.Server.
type Mux interface {
	Handle(pattern string, h http.Handler)
}

// Mount registers /book and /reload on srv.
func (a *API) Mount(srv Mux) {
	srv.Handle("/book", http.HandlerFunc(a.handleBook))
	srv.Handle("/reload", http.HandlerFunc(a.handleReload))
}

// handleBook handles GET /book?symbol=BTCUSD with the latest book summary.
func (a *API) handleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		http.Error(w, "missing symbol", http.StatusBadRequest)
		return
	}
	state := a.proc.LatestBook(symbol)
	if state == nil {
		http.Error(w, "no book for "+symbol, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// handleReload handles POST /reload for live indicator config updates. The
// body is a JSON array of configs:
//
//	[{"type":"SMA","period":20},{"type":"MACD","fast":12,"slow":26,"signal":9}]
func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var configs []indicator.IndicatorConfig
	if err := json.NewDecoder(r.Body).Decode(&configs); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	for i := range configs {
		configs[i].Type = strings.ToUpper(configs[i].Type)
	}
	if err := indicator.ValidateConfigs(configs); err != nil {
		http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx := logger.WithTraceID(r.Context(), logger.GenerateTraceID("reload", time.Now()))
	preserved, created, err := a.proc.Reload(ctx, configs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"preserved": preserved,
		"created":   created,
	})
}

package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sol-analytics-sync/pkg/aggregate"
	"github.com/sol-analytics-sync/pkg/db"
	"github.com/sol-analytics-sync/pkg/syncer"
)

// Dashboard serves the JSON API the web frontend reads: sync status and
// trigger, raw per-protocol daily stats, and the aggregated views the
// charts render.
type Dashboard struct {
	store      *db.Store
	controller *syncer.Controller
	port       int
}

func New(store *db.Store, controller *syncer.Controller, port int) *Dashboard {
	return &Dashboard{store: store, controller: controller, port: port}
}

func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sync/status", cors(d.handleSyncStatus))
	mux.HandleFunc("/api/sync/trigger", cors(d.handleSyncTrigger))
	mux.HandleFunc("/api/sync/runs", cors(d.handleSyncRuns))
	mux.HandleFunc("/api/protocols", cors(d.handleProtocols))
	mux.HandleFunc("/api/protocol-stats", cors(d.handleProtocolStats))
	mux.HandleFunc("/api/daily-totals", cors(d.handleDailyTotals))
	mux.HandleFunc("/api/market-share", cors(d.handleMarketShare))
	mux.HandleFunc("/api/chain-volume", cors(d.handleChainVolume))
	mux.HandleFunc("/api/stats", cors(d.handleStats))
	mux.HandleFunc("/api/health", cors(d.handleHealth))

	return mux
}

func (d *Dashboard) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", d.port),
		Handler: d.Handler(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Info().Str("addr", srv.Addr).Msg("🌐 dashboard API started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (d *Dashboard) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.controller.Snapshot())
}

// handleSyncTrigger fires the sync and reports the resulting state.
// An ineligible trigger is a no-op, not an error: the response carries
// accepted=false and the unchanged state.
func (d *Dashboard) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "POST only", 405)
		return
	}

	before := d.controller.Snapshot()
	if !before.CanSync {
		writeJSON(w, map[string]interface{}{"accepted": false, "state": before})
		return
	}

	state := d.controller.TriggerSync(r.Context())
	if state.Error != "" {
		w.WriteHeader(http.StatusBadGateway)
	}
	writeJSON(w, map[string]interface{}{"accepted": true, "state": state})
}

func (d *Dashboard) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}
	runs, _ := d.store.GetRecentSyncRuns(limit)
	writeJSON(w, runs)
}

func (d *Dashboard) handleProtocols(w http.ResponseWriter, r *http.Request) {
	protocols, _ := d.store.ListProtocols()
	writeJSON(w, protocols)
}

func (d *Dashboard) handleProtocolStats(w http.ResponseWriter, r *http.Request) {
	protocol := r.URL.Query().Get("protocol")
	if protocol == "" {
		http.Error(w, "protocol required", 400)
		return
	}
	stats, err := d.store.GetProtocolStats(protocol, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, stats)
}

func (d *Dashboard) rangeStats(r *http.Request) ([]db.ProtocolStat, error) {
	return d.store.GetAllStats(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
}

func (d *Dashboard) handleDailyTotals(w http.ResponseWriter, r *http.Request) {
	rows, err := d.rangeStats(r)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, aggregate.DailyTotals(rows))
}

func (d *Dashboard) handleMarketShare(w http.ResponseWriter, r *http.Request) {
	rows, err := d.rangeStats(r)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, aggregate.MarketShare(rows))
}

func (d *Dashboard) handleChainVolume(w http.ResponseWriter, r *http.Request) {
	rows, err := d.rangeStats(r)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, aggregate.ChainVolume(rows))
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, _ := d.store.GetStats()
	writeJSON(w, stats)
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

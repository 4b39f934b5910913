package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/openamm/weightedpool/internal/config"
	"github.com/openamm/weightedpool/internal/logger"
	"github.com/openamm/weightedpool/internal/pool"
	"github.com/openamm/weightedpool/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes read-only pool data over HTTP.
type WebServer struct {
	router *mux.Router
	port   string
	pool   *pool.Pool
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, p *pool.Pool) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		pool:   p,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pool/summary", ws.handleGetPoolSummary).Methods("GET")
	api.HandleFunc("/pool/invariant", ws.handleGetInvariant).Methods("GET")
	api.HandleFunc("/pool/weights", ws.handleGetWeights).Methods("GET")
	api.HandleFunc("/pool/supply", ws.handleGetSupply).Methods("GET")
	api.HandleFunc("/pool/snapshots", ws.handleGetSnapshots).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	// The database is optional; only report on it when snapshots are enabled.
	dbHealthy := true
	if config.SnapshotsEnabled {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
	}

	poolHealthy := true
	if _, err := ws.pool.Invariant(); err != nil {
		poolHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "weightedpool-engine",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"pool_id":          ws.pool.PoolID(),
			"pool_healthy":     poolHealthy,
			"database_healthy": dbHealthy,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPoolSummary returns the pool's static parameters and live state.
func (ws *WebServer) handleGetPoolSummary(w http.ResponseWriter, r *http.Request) {
	invariant, err := ws.pool.Invariant()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute pool invariant")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute pool invariant")
		return
	}

	weights, humanWeights := ws.weightsByDenom()

	response := map[string]interface{}{
		"pool_id":             ws.pool.PoolID(),
		"bpt_denom":           ws.pool.BptDenom(),
		"swap_fee_percentage": ws.pool.SwapFeePercentage().String(),
		"swap_fee_human":      humanize(ws.pool.SwapFeePercentage()),
		"normalized_weights":  weights,
		"weights_human":       humanWeights,
		"total_supply":        ws.pool.TotalSupply().String(),
		"total_supply_human":  humanize(ws.pool.TotalSupply()),
		"invariant":           invariant.String(),
		"invariant_human":     humanize(invariant),
		"ath_rate_product":    ws.pool.ATHRateProduct().String(),
		"timestamp":           time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetInvariant returns the live invariant from current balances.
func (ws *WebServer) handleGetInvariant(w http.ResponseWriter, r *http.Request) {
	invariant, err := ws.pool.Invariant()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute pool invariant")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute pool invariant")
		return
	}

	response := map[string]interface{}{
		"pool_id":                   ws.pool.PoolID(),
		"invariant":                 invariant.String(),
		"invariant_human":           humanize(invariant),
		"last_post_join_exit":       ws.pool.LastPostJoinExitInvariant().String(),
		"last_post_join_exit_human": humanize(ws.pool.LastPostJoinExitInvariant()),
		"timestamp":                 time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetWeights returns the pool's normalized weights and scaling factors.
func (ws *WebServer) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	weights, humanWeights := ws.weightsByDenom()

	denoms := ws.pool.TokenDenoms()
	factors := make(map[string]string, len(denoms))
	for i, factor := range ws.pool.ScalingFactors() {
		factors[denoms[i]] = factor.String()
	}

	response := map[string]interface{}{
		"pool_id":            ws.pool.PoolID(),
		"normalized_weights": weights,
		"weights_human":      humanWeights,
		"scaling_factors":    factors,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSupply returns the BPT supply.
func (ws *WebServer) handleGetSupply(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"pool_id":            ws.pool.PoolID(),
		"bpt_denom":          ws.pool.BptDenom(),
		"total_supply":       ws.pool.TotalSupply().String(),
		"total_supply_human": humanize(ws.pool.TotalSupply()),
		"timestamp":          time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshots returns recent persisted join/exit cycle snapshots.
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	if !config.SnapshotsEnabled {
		ws.writeErrorResponse(w, http.StatusNotFound, "Snapshot persistence is disabled")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentPoolSnapshots(ws.pool.PoolID(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent pool snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// weightsByDenom maps each token denom to its normalized weight, raw and
// human-readable.
func (ws *WebServer) weightsByDenom() (map[string]string, map[string]string) {
	denoms := ws.pool.TokenDenoms()
	raw := make(map[string]string, len(denoms))
	human := make(map[string]string, len(denoms))
	for i, weight := range ws.pool.NormalizedWeights() {
		raw[denoms[i]] = weight.String()
		human[denoms[i]] = humanize(weight)
	}
	return raw, human
}

// humanize renders an 18-decimal fixed-point value as a decimal string.
func humanize(v sdkmath.Int) string {
	return decimal.NewFromBigInt(v.BigInt(), -18).String()
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

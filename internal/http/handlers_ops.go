package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports per-dependency readiness as JSON.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.ready == nil {
		checks["persistence"] = "in_memory"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			checks["persistence"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["persistence"] = "ok"
		}
	}

	stats := s.records.Stats()
	checks["ledger"] = map[string]any{
		"records": stats.Records,
		"version": stats.Version,
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	secMetrics := s.detector.GetMetrics()
	ledgerStats := s.records.Stats()
	xlsx := s.xlsxCache.Stats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric(w, "http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric(w, "http_request_duration_avg_seconds", "gauge", "Mean request duration", traceMetrics.AverageResponseTime.Seconds())
	metric(w, "ledger_records", "gauge", "Monthly records in the store", ledgerStats.Records)
	metric(w, "ledger_version", "counter", "Store mutations since start", ledgerStats.Version)
	metric(w, "ledger_derivations_total", "counter", "Full report recomputations", ledgerStats.Derivations)
	metric(w, "xlsx_cache_hits_total", "counter", "Workbook cache hits", xlsx.Hits)
	metric(w, "xlsx_cache_misses_total", "counter", "Workbook cache misses", xlsx.Misses)
	metric(w, "xlsx_cache_entries", "gauge", "Cached workbooks", xlsx.Size)
	metric(w, "rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateMetrics.Rejected)
	metric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateMetrics.ClientCount)
	metric(w, "suspicious_requests_total", "counter", "Suspicious requests detected", secMetrics.SuspiciousRequests)
	metric(w, "blocked_requests_total", "counter", "Suspicious requests rejected", secMetrics.BlockedRequests)
	metric(w, "uptime_seconds", "gauge", "Server uptime", int64(time.Since(s.startedAt).Seconds()))
}

func metric(w io.Writer, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP finboard_%s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE finboard_%s %s\n", name, kind)
	fmt.Fprintf(w, "finboard_%s %v\n\n", name, value)
}

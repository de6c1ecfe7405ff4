package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), s.settings.StoreTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	// Without a default store the dashboard still works through credential
	// uploads, so only a configured but unreachable store is fatal.
	switch {
	case s.defaultSvc != nil:
		if _, err := s.defaultSvc.ListWorksheets(ctx); err != nil {
			checks["record_store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["record_store"] = "ok"
		}
	case s.settings.AllowUpload:
		checks["record_store"] = "awaiting_credentials"
	default:
		checks["record_store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.sessions.Len(),
		"status": "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Total number of 5xx responses", traceMetrics.ServerErrors)
	counter("invoices_appended_total", "Total number of invoices added", atomic.LoadInt64(&s.appMetrics.appends))
	counter("invoice_edits_saved_total", "Total number of edit grids saved", atomic.LoadInt64(&s.appMetrics.saves))
	counter("invoice_emails_sent_total", "Total invoice emails sent", atomic.LoadInt64(&s.appMetrics.emailsSent))
	counter("invoice_emails_failed_total", "Total invoice emails that failed", atomic.LoadInt64(&s.appMetrics.emailsFailed))
	counter("exports_total", "Total number of exports", atomic.LoadInt64(&s.appMetrics.exports))
	counter("row_actions_failed_total", "Total number of failed row actions", atomic.LoadInt64(&s.appMetrics.actionsFailed))
	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	counter("blocked_requests_total", "Total requests blocked by method", securityMetrics.BlockedRequests)

	gauge("active_sessions", "Currently live dashboard sessions", int64(s.sessions.Len()))
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", int64(s.rateLimiter.ActiveClients()))
	gauge("tracked_caches", "Caches swept by the cleanup loop", int64(s.caches.Len()))

	fmt.Fprintf(w, "# HELP http_response_time_ms Moving average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_ms gauge\n")
	fmt.Fprintf(w, "http_response_time_ms %.2f\n\n", float64(traceMetrics.AverageResponseTime)/1000)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", time.Since(s.appMetrics.uptime).Seconds())
}

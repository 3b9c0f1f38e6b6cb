package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady pings the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients()},
	}
	if err := s.svc.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
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
	limitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	txStats, budgetStats := s.svc.CacheStats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, typ, help string, lines ...string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, typ)
		for _, l := range lines {
			fmt.Fprintf(w, "%s%s\n", name, l)
		}
		fmt.Fprintln(w)
	}

	metric("spendsmart_http_requests_total", "counter", "Total number of HTTP requests",
		fmt.Sprintf(" %d", traceMetrics.TotalRequests))
	metric("spendsmart_http_server_errors_total", "counter", "HTTP responses with a 5xx status",
		fmt.Sprintf(" %d", traceMetrics.ServerErrors))
	metric("spendsmart_http_response_time_avg_microseconds", "gauge", "Average response time",
		fmt.Sprintf(" %d", traceMetrics.AverageResponseTime))
	metric("spendsmart_cache_hits_total", "counter", "Total cache hits",
		fmt.Sprintf(`{cache="transactions"} %d`, txStats.Hits),
		fmt.Sprintf(`{cache="budgets"} %d`, budgetStats.Hits))
	metric("spendsmart_cache_misses_total", "counter", "Total cache misses",
		fmt.Sprintf(`{cache="transactions"} %d`, txStats.Misses),
		fmt.Sprintf(`{cache="budgets"} %d`, budgetStats.Misses))
	metric("spendsmart_rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter",
		fmt.Sprintf(" %d", limitMetrics.Rejected))
	metric("spendsmart_rate_limit_clients", "gauge", "Currently tracked rate limit clients",
		fmt.Sprintf(" %d", limitMetrics.ClientCount))
	metric("spendsmart_suspicious_requests_total", "counter", "Requests matching probe patterns",
		fmt.Sprintf(" %d", securityMetrics.SuspiciousRequests))
	metric("spendsmart_invalid_forwarded_ip_total", "counter", "Unparseable forwarding headers from trusted proxies",
		fmt.Sprintf(" %d", securityMetrics.InvalidIPAttempts))
	metric("spendsmart_uptime_seconds", "gauge", "Process uptime in seconds",
		fmt.Sprintf(" %.0f", time.Since(s.started).Seconds()))
}

package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satproc/warpinit/internal/metrics"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.SetWorkerState("running")
	metrics.IncSignalsForwarded()
	metrics.SetWorkerExitCode(143)
	metrics.SetWorkerResources(12.5, 2048)

	body := scrape(t)

	if !strings.Contains(body, `warpinit_worker_state{state="running"} 1`) {
		t.Fatalf("expected running state gauge in body:\n%s", body)
	}
	if !strings.Contains(body, "warpinit_signals_forwarded_total 1") {
		t.Fatalf("expected forwarded signal counter in body:\n%s", body)
	}
	if !strings.Contains(body, "warpinit_worker_exit_code 143") {
		t.Fatalf("expected exit code gauge in body:\n%s", body)
	}
	if !strings.Contains(body, "warpinit_worker_memory_bytes 2048") {
		t.Fatalf("expected memory gauge in body:\n%s", body)
	}
	if !strings.Contains(body, "warpinit_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}

func TestSetWorkerStateReplacesPreviousState(t *testing.T) {
	metrics.SetWorkerState("running")
	metrics.SetWorkerState("exited")

	body := scrape(t)
	if strings.Contains(body, `warpinit_worker_state{state="running"}`) {
		t.Fatalf("stale state series should be removed:\n%s", body)
	}
	if !strings.Contains(body, `warpinit_worker_state{state="exited"} 1`) {
		t.Fatalf("expected exited state gauge in body:\n%s", body)
	}
}

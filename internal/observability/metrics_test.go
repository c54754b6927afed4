package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/gatewaysync/internal/testutil/testlog"
)

func TestMetricsEndpointExposesAdminCounters(t *testing.T) {
	logger := testlog.Start(t)

	RecordAdminRequest(http.MethodGet, "services", 200, 15*time.Millisecond)
	RecordAdminRequest(http.MethodPost, "services/routes", 0, time.Millisecond)
	RecordAdminRetry(http.MethodPost, "services/routes")
	RecordChange("service", "create", true)

	srv := NewMetricsServer("servicesctl", logger)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{
		`gatewaysync_admin_requests_total{method="GET",resource="services",status="200"}`,
		`gatewaysync_admin_requests_total{method="POST",resource="services/routes",status="error"}`,
		`gatewaysync_admin_retries_total{method="POST",resource="services/routes"}`,
		`gatewaysync_reconcile_changes_total{action="create",kind="service",outcome="ok"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	logger := testlog.Start(t)

	srv := NewMetricsServer("consumersctl", logger)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"app":"consumersctl"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

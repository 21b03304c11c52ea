package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "error"},
		{200, "200"},
		{429, "429"},
	}
	for _, tt := range tests {
		if got := Status(tt.code); got != tt.want {
			t.Errorf("Status(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	UpstreamRequests.WithLabelValues("search", "200").Inc()
	QuotaRejections.WithLabelValues("explore").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, name := range []string{
		"nutricompare_upstream_requests_total",
		"nutricompare_quota_rejections_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

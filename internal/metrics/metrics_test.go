package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsWith_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)
	m.EventsTotal.WithLabelValues("trade").Inc()
	m.RingBufOverflow.Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"mdp_events_total", "mdp_ringbuf_overflow_total"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestHealth_Status(t *testing.T) {
	tests := []struct {
		name                string
		feed, redis, sqlite bool
		wantCode            int
		wantStatus          string
	}{
		{"all up", true, true, true, http.StatusOK, "healthy"},
		{"feed down", false, true, true, http.StatusServiceUnavailable, "degraded"},
		{"storage down", true, false, false, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthStatus()
			h.SetFeedConnected(tt.feed)
			h.SetRedisConnected(tt.redis)
			h.SetSQLiteOK(tt.sqlite)
			h.SetRestored("cold")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["restored_from"] != "cold" {
				t.Errorf("restored_from = %v", body["restored_from"])
			}
		})
	}
}

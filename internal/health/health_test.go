package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/broker-bridge/internal/server"
	"github.com/rickgao/broker-bridge/internal/version"
)

type fixedStats server.Stats

func (f fixedStats) Stats() server.Stats { return server.Stats(f) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		stats      server.Stats
		wantCode   int
		wantStatus string
	}{
		{
			name:       "ready",
			stats:      server.Stats{State: "ready", Requests: 12, Failures: 1, Connections: 2},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "stopped",
			stats:      server.Stats{State: "disconnected"},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Config{Instance: "test-bridge"}, fixedStats(tt.stats), nil)
			ts := httptest.NewServer(h.Handler())
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/health")
			if err != nil {
				t.Fatalf("GET /health: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantCode)
			}

			var body Status
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Requests != tt.stats.Requests || body.Connections != tt.stats.Connections {
				t.Errorf("stats = %+v, want %+v", body.Stats, tt.stats)
			}
			if body.Instance != "test-bridge" || body.Version.Version != version.Version {
				t.Errorf("unexpected identity: %+v", body)
			}
		})
	}
}

func TestUnknownPath(t *testing.T) {
	h := New(Config{Path: "/status"}, fixedStats{State: "ready"}, nil)
	ts := httptest.NewServer(h.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

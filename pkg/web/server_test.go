package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alwell-kevin/voicebridge/pkg/bridge"
)

type fakeStatus struct {
	state bridge.State
	stats bridge.Snapshot
}

func (f *fakeStatus) State() bridge.State    { return f.state }
func (f *fakeStatus) Stats() bridge.Snapshot { return f.stats }

func newTestServer() (*Server, *fakeStatus, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	status := &fakeStatus{
		state: bridge.StateStreaming,
		stats: bridge.Snapshot{FramesForwarded: 42, TurnsTriggered: 3},
	}
	return NewServer(":0", status, reg, nil), status, reg
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if body["state"] != "streaming" {
		t.Errorf("state field = %q, want streaming", body["state"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, _, _ := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/stats", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		State string          `json:"state"`
		Stats bridge.Snapshot `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != "streaming" {
		t.Errorf("state = %q, want streaming", body.State)
	}
	if body.Stats.FramesForwarded != 42 {
		t.Errorf("frames forwarded = %d, want 42", body.Stats.FramesForwarded)
	}
	if body.Stats.TurnsTriggered != 3 {
		t.Errorf("turns triggered = %d, want 3", body.Stats.TurnsTriggered)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = bridge.NewMetrics(reg)

	status := &fakeStatus{state: bridge.StateStreaming}
	s := NewServer(":0", status, reg, nil)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(data), "voicebridge_frames_forwarded_total") {
		t.Error("metrics output missing bridge counters")
	}
}

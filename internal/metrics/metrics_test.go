package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// gathered sums every sample of the named counter or gauge family.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	sum := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SignalsTotal.WithLabelValues("Breakout", "LONG").Inc()
	m.OpenPositions.Set(3)

	if got := gathered(t, reg, "scanner_signals_total"); got != 1 {
		t.Errorf("signals=%v, want 1", got)
	}
	if got := gathered(t, reg, "scanner_open_positions"); got != 3 {
		t.Errorf("open=%v, want 3", got)
	}

	// A second registry accepts a fresh set.
	NewMetrics(prometheus.NewRegistry())
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus()
	h.Require(false, true, false)
	h.RecordCycle(time.Now(), 2, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	// sqlite never probed yet
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code=%d, want 503", rec.Code)
	}

	h.mu.Lock()
	h.SQLiteOK = true
	h.mu.Unlock()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d, want 200", rec.Code)
	}
	var body struct {
		Status        string `json:"status"`
		OpenPositions int    `json:"open_positions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || body.OpenPositions != 2 {
		t.Errorf("body=%+v", body)
	}

	h.RecordCycle(time.Now(), 2, errors.New("boom"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code=%d after failed cycle, want 503", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CyclesSkipped.Inc()

	srv := NewServer(":0", NewHealthStatus(), reg, zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "scanner_cycles_skipped_total 1") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

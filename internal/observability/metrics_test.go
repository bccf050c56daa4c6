package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordTrustActivity(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), nil)

	m.ObserveRecalc(trust.ProfileLender, 10*time.Millisecond, nil)
	m.ObserveRecalc("", time.Millisecond, errors.New("boom"))
	m.ObserveDedupSkip(trust.FamilyPaymentCompleted)
	m.ObserveCascade(&trust.CascadeResult{Updated: 9, Unchanged: 2, Errors: []string{"x"}})
	m.ObserveBackfillErrors("tiers", 0)
	m.ObserveBackfillErrors("scores", 2)

	if got := testutil.ToFloat64(m.RecalcTotal.WithLabelValues("lender", "ok")); got != 1 {
		t.Fatalf("expected one lender recalc, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecalcTotal.WithLabelValues("unknown", "error")); got != 1 {
		t.Fatalf("expected one failed recalc, got %v", got)
	}
	if got := testutil.ToFloat64(m.DedupSkips.WithLabelValues("payment_completed")); got != 1 {
		t.Fatalf("expected one dedup skip, got %v", got)
	}
	if got := testutil.ToFloat64(m.CascadeVouches.WithLabelValues("updated")); got != 9 {
		t.Fatalf("expected 9 cascade updates, got %v", got)
	}
	if got := testutil.ToFloat64(m.BackfillErrors.WithLabelValues("scores")); got != 2 {
		t.Fatalf("expected 2 backfill errors, got %v", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		env, level string
		debug      bool
		json       bool
	}{
		{"production", "", false, true},
		{"local", "", true, false},
		{"local", "warn", false, false},
		{"prod", "DEBUG", true, true},
		{"local", "chatty", true, false},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := newLogger(&buf, tc.env, tc.level)
		logger.Debug("debug line")
		logger.Error("always")
		out := buf.String()
		if strings.Contains(out, "debug line") != tc.debug {
			t.Fatalf("%s/%q: debug emitted=%v, want %v: %s", tc.env, tc.level, !tc.debug, tc.debug, out)
		}
		if strings.HasPrefix(out, "{") != tc.json || !strings.Contains(out, "feyza-trust") {
			t.Fatalf("%s/%q: unexpected format: %s", tc.env, tc.level, out)
		}
	}
}

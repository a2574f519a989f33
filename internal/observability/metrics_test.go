package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQuote(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.QuotesRequested.WithLabelValues("jupiter", "ok"))
	RecordQuote("jupiter", "ok", 0.12)
	after := testutil.ToFloat64(DefaultMetrics.QuotesRequested.WithLabelValues("jupiter", "ok"))

	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestUpdateAttemptsInFlight(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.AttemptsInFlight)
	UpdateAttemptsInFlight(1)
	UpdateAttemptsInFlight(-1)
	if got := testutil.ToFloat64(DefaultMetrics.AttemptsInFlight); got != before {
		t.Errorf("expected gauge back at %v, got %v", before, got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordAttemptFinished("CONFIRMED")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "swap_assistant_attempt_finished_total") {
		t.Error("expected attempt metric in exposition")
	}
}

func TestRecordWSReconnect(t *testing.T) {
	ok := DefaultMetrics.WSReconnects.WithLabelValues("ok")
	failed := DefaultMetrics.WSReconnects.WithLabelValues("error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordWSReconnect(true)
	RecordWSReconnect(false)
	RecordWSReconnect(false)

	if got := testutil.ToFloat64(ok) - okBefore; got != 1 {
		t.Errorf("expected 1 successful reconnect, got %v", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 2 {
		t.Errorf("expected 2 failed reconnects, got %v", got)
	}
}

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordAnalysisRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAnalysisRun("strengths", false)
	c.RecordAnalysisRun("strengths", false)
	c.RecordAnalysisRun("persona", true)

	if got := testutil.ToFloat64(c.analysisRuns.WithLabelValues("strengths", "false")); got != 2 {
		t.Errorf("strengths/false count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.analysisRuns.WithLabelValues("persona", "true")); got != 1 {
		t.Errorf("persona/true count = %v, want 1", got)
	}
}

func TestCollector_RecordTicketConsumed(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTicketConsumed("analysis_normal")
	c.RecordTicketConsumed("analysis_normal")
	c.RecordTicketConsumed("analysis_persona")

	if got := testutil.ToFloat64(c.ticketsConsumed.WithLabelValues("analysis_normal")); got != 2 {
		t.Errorf("analysis_normal count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ticketsConsumed.WithLabelValues("analysis_persona")); got != 1 {
		t.Errorf("analysis_persona count = %v, want 1", got)
	}
}

func TestCollector_RecordCheckoutSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckoutSession("subscription")
	c.RecordCheckoutSession("payment")
	c.RecordCheckoutSession("payment")

	if got := testutil.ToFloat64(c.checkoutSessions.WithLabelValues("subscription")); got != 1 {
		t.Errorf("subscription count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.checkoutSessions.WithLabelValues("payment")); got != 2 {
		t.Errorf("payment count = %v, want 2", got)
	}
}

func TestCollector_RecordReferralCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReferralCompleted()
	c.RecordReferralCompleted()

	if got := testutil.ToFloat64(c.referrals); got != 2 {
		t.Errorf("referrals count = %v, want 2", got)
	}
}

func TestCollector_RecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(429)

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("429")); got != 1 {
		t.Errorf("429 count = %v, want 1", got)
	}
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAnalysisRun("clarity", false)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "careercompass_analysis_runs_total") {
		t.Errorf("scrape output should contain analysis runs metric:\n%s", body)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate metric registration")
		}
	}()
	NewCollector(reg)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/miradorstack/helpdesk/internal/models"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should be ignored: %v", err)
	}
}

func TestObserveQueryNormalisesOutcome(t *testing.T) {
	logged := testutil.ToFloat64(queriesTotal.WithLabelValues(OutcomeLogged))
	failed := testutil.ToFloat64(queriesTotal.WithLabelValues(OutcomeError))

	ObserveQuery(120*time.Millisecond, OutcomeLogged)
	ObserveQuery(-time.Second, "something-else")
	ObserveQuery(time.Second, OutcomeError)

	if got := testutil.ToFloat64(queriesTotal.WithLabelValues(OutcomeLogged)) - logged; got != 2 {
		t.Fatalf("expected 2 logged queries, got %v", got)
	}
	if got := testutil.ToFloat64(queriesTotal.WithLabelValues(OutcomeError)) - failed; got != 1 {
		t.Fatalf("expected 1 failed query, got %v", got)
	}
}

func TestObserveBackendFailureAndIncident(t *testing.T) {
	before := testutil.ToFloat64(backendFailuresTotal.WithLabelValues("timeout"))
	ObserveBackendFailure("timeout")
	if got := testutil.ToFloat64(backendFailuresTotal.WithLabelValues("timeout")) - before; got != 1 {
		t.Fatalf("expected timeout failure counted, got %v", got)
	}

	rec := models.IncidentRecord{Severity: models.SeverityCritical, Department: models.DepartmentNetwork}
	counter := incidentsTotal.WithLabelValues("critical", "network")
	before = testutil.ToFloat64(counter)
	ObserveIncident(rec)
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected incident counted, got %v", got)
	}
}

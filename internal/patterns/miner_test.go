package patterns

import (
	"reflect"
	"testing"
	"time"

	"github.com/miradorstack/helpdesk/internal/models"
)

func record(host string, sev models.Severity, dept models.Department, ts time.Time) models.IncidentRecord {
	return models.IncidentRecord{Hostname: host, Severity: sev, Department: dept, Timestamp: ts}
}

func TestMinerMinesHotspots(t *testing.T) {
	miner := NewMiner(nil, 2)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	records := []models.IncidentRecord{
		record("ws-1", models.SeverityLow, models.DepartmentNetwork, now),
		record("ws-2", models.SeverityCritical, models.DepartmentNetwork, now.Add(time.Hour)),
		record("ws-2", models.SeverityMedium, models.DepartmentNetwork, now.Add(-time.Hour)),
		record("ws-3", models.SeverityHigh, models.DepartmentHardware, now),
		record(models.Unknown, models.SeverityLow, models.DepartmentAccount, now),
	}

	hotspots := miner.Mine(records)
	if len(hotspots) != 3 {
		t.Fatalf("expected 3 hotspots, got %d", len(hotspots))
	}

	top := hotspots[0]
	if top.Department != models.DepartmentNetwork || top.Count != 3 {
		t.Fatalf("unexpected top hotspot %+v", top)
	}
	if top.WorstSeverity != models.SeverityCritical {
		t.Fatalf("expected critical worst severity, got %s", top.WorstSeverity)
	}
	if !top.LastSeen.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected last seen %s", top.LastSeen)
	}
	if !reflect.DeepEqual(top.TopHosts, []string{"ws-2", "ws-1"}) {
		t.Fatalf("unexpected top hosts %v", top.TopHosts)
	}
	if top.Prevalence != 0.6 {
		t.Fatalf("unexpected prevalence %v", top.Prevalence)
	}

	// Equal counts fall back to department priority.
	if hotspots[1].Department != models.DepartmentHardware || hotspots[2].Department != models.DepartmentAccount {
		t.Fatalf("unexpected tie order: %s, %s", hotspots[1].Department, hotspots[2].Department)
	}
	if len(hotspots[2].TopHosts) != 0 {
		t.Fatalf("unknown hosts should not be reported: %v", hotspots[2].TopHosts)
	}
}

func TestMinerEmpty(t *testing.T) {
	if got := NewMiner(nil, 0).Mine(nil); got != nil {
		t.Fatalf("expected nil for empty history, got %v", got)
	}
}

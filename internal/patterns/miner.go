// Package patterns finds recurring incident hotspots in the incident log.
package patterns

import (
	"log/slog"
	"sort"
	"time"

	"github.com/miradorstack/helpdesk/internal/models"
)

// Hotspot aggregates the incidents routed to one department.
type Hotspot struct {
	Department    models.Department
	Count         int
	Prevalence    float64
	WorstSeverity models.Severity
	LastSeen      time.Time
	TopHosts      []string
}

// Miner mines simple frequency-based hotspots from incident history.
type Miner struct {
	logger   *slog.Logger
	maxHosts int
}

// NewMiner constructs a Miner reporting up to maxHosts hosts per hotspot.
func NewMiner(logger *slog.Logger, maxHosts int) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	if maxHosts <= 0 {
		maxHosts = 3
	}
	return &Miner{logger: logger, maxHosts: maxHosts}
}

// Mine groups records by department, most frequent first. Ties go to the
// department that wins classification ties.
func (m *Miner) Mine(records []models.IncidentRecord) []Hotspot {
	if len(records) == 0 {
		return nil
	}

	stats := make(map[models.Department]*departmentAggregate)
	for _, rec := range records {
		agg := ensureAggregate(stats, rec.Department)
		agg.count++
		if rec.Severity.Rank() > agg.worst.Rank() {
			agg.worst = rec.Severity
		}
		if rec.Timestamp.After(agg.lastSeen) {
			agg.lastSeen = rec.Timestamp
		}
		agg.hostCounts[rec.Hostname]++
	}

	hotspots := make([]Hotspot, 0, len(stats))
	for dept, agg := range stats {
		hotspots = append(hotspots, Hotspot{
			Department:    dept,
			Count:         agg.count,
			Prevalence:    float64(agg.count) / float64(len(records)),
			WorstSeverity: agg.worst,
			LastSeen:      agg.lastSeen,
			TopHosts:      agg.topHosts(m.maxHosts),
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Count != hotspots[j].Count {
			return hotspots[i].Count > hotspots[j].Count
		}
		return hotspots[i].Department.Priority() < hotspots[j].Department.Priority()
	})

	m.logger.Debug("mined incident hotspots",
		slog.Int("records", len(records)),
		slog.Int("hotspots", len(hotspots)),
	)
	return hotspots
}

type departmentAggregate struct {
	count      int
	worst      models.Severity
	lastSeen   time.Time
	hostCounts map[string]int
}

func ensureAggregate(m map[models.Department]*departmentAggregate, dept models.Department) *departmentAggregate {
	if !dept.Valid() {
		dept = models.DepartmentOther
	}
	agg, ok := m[dept]
	if !ok {
		agg = &departmentAggregate{hostCounts: make(map[string]int)}
		m[dept] = agg
	}
	return agg
}

func (agg *departmentAggregate) topHosts(limit int) []string {
	hosts := make([]string, 0, len(agg.hostCounts))
	for host := range agg.hostCounts {
		if host == "" || host == models.Unknown {
			continue
		}
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if agg.hostCounts[hosts[i]] != agg.hostCounts[hosts[j]] {
			return agg.hostCounts[hosts[i]] > agg.hostCounts[hosts[j]]
		}
		return hosts[i] < hosts[j]
	})
	if len(hosts) > limit {
		hosts = hosts[:limit]
	}
	return hosts
}

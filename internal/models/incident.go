package models

import (
	"fmt"
	"strings"
	"time"
)

// Unknown is the sentinel stored when a context field could not be collected.
const Unknown = "unknown"

// Severity captures the urgency of an incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so that a higher value is more urgent. Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the closed severity values.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// ParseSeverity accepts a case-insensitive severity name.
func ParseSeverity(value string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q", value)
	}
	return s, nil
}

// Department routes an incident to the owning team.
type Department string

const (
	DepartmentNetwork  Department = "network"
	DepartmentHardware Department = "hardware"
	DepartmentAccount  Department = "account"
	DepartmentSoftware Department = "software"
	DepartmentOther    Department = "other"
)

// Priority orders departments for tie-breaking: lower values win.
// Infrastructure-wide categories come before narrower ones.
func (d Department) Priority() int {
	switch d {
	case DepartmentNetwork:
		return 0
	case DepartmentHardware:
		return 1
	case DepartmentAccount:
		return 2
	case DepartmentSoftware:
		return 3
	case DepartmentOther:
		return 4
	default:
		return -1
	}
}

// Valid reports whether d is one of the closed department values.
func (d Department) Valid() bool { return d.Priority() >= 0 }

// ParseDepartment accepts a case-insensitive department name.
func ParseDepartment(value string) (Department, error) {
	d := Department(strings.ToLower(strings.TrimSpace(value)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown department %q", value)
	}
	return d, nil
}

// Classification is the (severity, department) pair inferred for a question.
type Classification struct {
	Severity   Severity
	Department Department
}

// DefaultClassification is used when no rule matches.
func DefaultClassification() Classification {
	return Classification{Severity: SeverityLow, Department: DepartmentOther}
}

// Valid reports whether both axes hold closed-set values.
func (c Classification) Valid() bool {
	return c.Severity.Valid() && c.Department.Valid()
}

// SystemContext is the ambient metadata captured alongside a question.
type SystemContext struct {
	Username  string
	Hostname  string
	IPAddress string
	Timestamp time.Time
}

// IncidentRecord is the persisted outcome of one helpdesk query. Records are
// immutable once written.
type IncidentRecord struct {
	RecordID   string     `json:"record_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Username   string     `json:"username"`
	Hostname   string     `json:"hostname"`
	IPAddress  string     `json:"ip_address"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Severity   Severity   `json:"severity"`
	Department Department `json:"department"`
}

// Validate checks that every field is populated and both tags are in range.
func (r IncidentRecord) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"record_id", r.RecordID},
		{"username", r.Username},
		{"hostname", r.Hostname},
		{"ip_address", r.IPAddress},
		{"question", strings.TrimSpace(r.Question)},
		{"answer", r.Answer},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is empty", field.name)
		}
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is zero")
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("severity %q out of range", r.Severity)
	}
	if !r.Department.Valid() {
		return fmt.Errorf("department %q out of range", r.Department)
	}
	return nil
}

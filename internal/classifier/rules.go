package classifier

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/helpdesk/internal/models"
)

// RuleSet is the declarative classification policy. Severity and department
// rules are independent tables.
type RuleSet struct {
	Severity    []SeverityRule   `yaml:"severity"`
	Departments []DepartmentRule `yaml:"departments"`
}

// SeverityRule maps a keyword set to a severity.
type SeverityRule struct {
	Severity models.Severity `yaml:"severity"`
	Keywords []string        `yaml:"keywords"`
}

// DepartmentRule maps a keyword set to a department.
type DepartmentRule struct {
	Department models.Department `yaml:"department"`
	Keywords   []string          `yaml:"keywords"`
}

// LoadRules reads a YAML rule pack. An empty path or a missing file yields
// DefaultRules; the bool reports whether the file was used.
func LoadRules(path string) (RuleSet, bool, error) {
	if path == "" {
		return DefaultRules(), false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRules(), false, nil
		}
		return RuleSet{}, false, fmt.Errorf("read rules: %w", err)
	}
	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, false, fmt.Errorf("parse rules: %w", err)
	}
	return rules, true, nil
}

// DefaultRules is the built-in policy used when no rule pack is configured.
func DefaultRules() RuleSet {
	return RuleSet{
		Severity: []SeverityRule{
			{
				Severity: models.SeverityCritical,
				Keywords: []string{
					"outage", "total outage", "entire office", "whole office", "entire company",
					"everyone", "nobody can", "no one can", "all users", "cannot access anything",
					"can't access anything", "data loss", "ransomware", "security breach", "hacked",
					"server is down", "production is down",
				},
			},
			{
				Severity: models.SeverityHigh,
				Keywords: []string{
					"urgent", "immediately", "asap", "crash", "crashed", "crashes", "crashing",
					"fatal", "severe", "can't work at all", "cannot work at all", "unable to work",
					"blue screen", "bsod", "deadline",
				},
			},
			{
				Severity: models.SeverityMedium,
				Keywords: []string{
					"not working", "error", "errors", "problem", "issue", "slow", "intermittent",
					"keeps disconnecting", "freezes", "freezing", "frozen", "stuck", "failed",
					"fails", "broken",
				},
			},
		},
		Departments: []DepartmentRule{
			{
				Department: models.DepartmentNetwork,
				Keywords: []string{
					"network", "wifi", "wi-fi", "wireless", "internet", "vpn", "ethernet", "router",
					"dns", "dhcp", "firewall", "connect", "connection", "connectivity", "proxy",
					"ip address", "lan",
				},
			},
			{
				Department: models.DepartmentHardware,
				Keywords: []string{
					"laptop", "desktop", "computer", "pc", "monitor", "screen", "display", "keyboard",
					"mouse", "printer", "scanner", "battery", "charger", "power", "turn on", "dock",
					"docking station", "headset", "webcam", "usb", "hard drive", "disk", "hardware",
				},
			},
			{
				Department: models.DepartmentAccount,
				Keywords: []string{
					"password", "login", "log in", "sign in", "locked out", "account", "username",
					"mfa", "2fa", "two-factor", "authenticator", "permission", "permissions",
					"access denied", "credentials",
				},
			},
			{
				Department: models.DepartmentSoftware,
				Keywords: []string{
					"software", "install", "installation", "update", "upgrade", "application", "app",
					"program", "excel", "word", "outlook", "teams", "email", "browser", "chrome",
					"license", "driver", "windows", "macos",
				},
			},
		},
	}
}

package alert

import (
	"fmt"
	"strings"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Severities lists all valid severities in ascending order of urgency.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency}
}

// ParseSeverity parses a case-insensitive severity string.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("invalid severity: %q", s)
	}
	return sev, nil
}

// Valid reports whether the severity is one of the known values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency:
		return true
	}
	return false
}

// Color returns the display color used by console clients for this severity.
func (s Severity) Color() string {
	switch s {
	case SeverityInfo:
		return "#2196f3"
	case SeverityWarning:
		return "#ff9800"
	case SeverityCritical:
		return "#f44336"
	case SeverityEmergency:
		return "#9c27b0"
	default:
		return "#9e9e9e"
	}
}

func (s Severity) String() string {
	return string(s)
}

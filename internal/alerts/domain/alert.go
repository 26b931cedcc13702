package alerts

import "time"

const (
	TypeTensionWarning  = "TENSION_WARNING"
	TypeTensionCritical = "TENSION_CRITICAL"
	TypeLifespanWarning = "LIFESPAN_WARNING"
)

const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Alert is one continuous episode of abnormal state for one line.
// Resolved alerts stay in history; they are never deleted.
type Alert struct {
	ID         string    `json:"id"`
	LineID     string    `json:"mooring_line_id"`
	Type       string    `json:"alert_type"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	LastValue  float64   `json:"last_value"`
	Resolved   bool      `json:"is_resolved"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Family groups alert types that dedupe against each other. The two
// tension types escalate and de-escalate within one open episode;
// lifespan warnings form their own episode stream.
func Family(alertType string) string {
	switch alertType {
	case TypeTensionWarning, TypeTensionCritical:
		return "tension"
	case TypeLifespanWarning:
		return "lifespan"
	default:
		return alertType
	}
}

// severityRank orders severities for escalation checks.
var severityRank = map[string]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// SeverityWorse reports whether a is strictly worse than b.
func SeverityWorse(a, b string) bool {
	return severityRank[a] > severityRank[b]
}

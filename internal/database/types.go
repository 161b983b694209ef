package database

import (
	"time"

	"github.com/halcyonops/intel-console/internal/alert"
)

// AuditFields are the shared audit columns maintained on every write.
type AuditFields struct {
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	UpdatedBy string     `db:"updated_by" json:"updated_by"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Alert is a persisted intelligence alert row.
type Alert struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Description    string         `db:"description" json:"description"`
	Severity       alert.Severity `db:"severity" json:"severity"`
	Status         alert.Status   `db:"status" json:"status"`
	Source         string         `db:"source" json:"source"`
	TriggeredAt    time.Time      `db:"triggered_at" json:"triggered_at"`
	AcknowledgedAt *time.Time     `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string        `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *string        `db:"resolved_by" json:"resolved_by,omitempty"`
	Resolution     *string        `db:"resolution" json:"resolution,omitempty"`
	Version        int64          `db:"version" json:"version"`
	AuditFields
}

// Deleted reports whether the row is soft-deleted.
func (a *Alert) Deleted() bool {
	return a.DeletedAt != nil
}

// Filter narrows and bounds alert list queries.
type Filter struct {
	Severity       *alert.Severity
	Status         *alert.Status
	Search         string
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// AlertStats aggregates alert counts by lifecycle stage and severity.
type AlertStats struct {
	Total        int `db:"total" json:"total"`
	Active       int `db:"active" json:"active"`
	Acknowledged int `db:"acknowledged" json:"acknowledged"`
	Resolved     int `db:"resolved" json:"resolved"`
	Escalated    int `db:"escalated" json:"escalated"`
	Info         int `db:"info" json:"info"`
	Warning      int `db:"warning" json:"warning"`
	Critical     int `db:"critical" json:"critical"`
	Emergency    int `db:"emergency" json:"emergency"`
}

package command

import (
	"time"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/database"
)

// AlertView is the presentation-facing projection of a persisted alert.
type AlertView struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Severity       alert.Severity `json:"severity"`
	SeverityColor  string         `json:"severity_color"`
	Status         alert.Status   `json:"status"`
	Source         string         `json:"source"`
	TriggeredAt    time.Time      `json:"triggered_at"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	Resolution     string         `json:"resolution,omitempty"`
	Version        int64          `json:"version"`
	UpdatedAt      time.Time      `json:"updated_at"`
	UpdatedBy      string         `json:"updated_by"`
	CanAcknowledge bool           `json:"can_acknowledge"`
	CanResolve     bool           `json:"can_resolve"`
	CanDelete      bool           `json:"can_delete"`
}

func newAlertView(a *database.Alert) AlertView {
	v := AlertView{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		Severity:       a.Severity,
		SeverityColor:  a.Severity.Color(),
		Status:         a.Status,
		Source:         a.Source,
		TriggeredAt:    a.TriggeredAt,
		AcknowledgedAt: a.AcknowledgedAt,
		ResolvedAt:     a.ResolvedAt,
		Version:        a.Version,
		UpdatedAt:      a.UpdatedAt,
		UpdatedBy:      a.UpdatedBy,
		CanAcknowledge: a.Status == alert.StatusActive,
		CanResolve:     a.Status != alert.StatusResolved,
		CanDelete:      true,
	}
	if a.AcknowledgedBy != nil {
		v.AcknowledgedBy = *a.AcknowledgedBy
	}
	if a.ResolvedBy != nil {
		v.ResolvedBy = *a.ResolvedBy
	}
	if a.Resolution != nil {
		v.Resolution = *a.Resolution
	}
	return v
}

func newAlertViews(alerts []*database.Alert) []AlertView {
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, newAlertView(a))
	}
	return views
}

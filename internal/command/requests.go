package command

import (
	"github.com/halcyonops/intel-console/internal/alert"
)

// CreateAlert records a new alert in Active status.
type CreateAlert struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description" validate:"required"`
	Severity    alert.Severity `json:"severity" validate:"required"`
	Source      string         `json:"source" validate:"required"`
	Actor       string         `json:"actor" validate:"required"`
}

// UpdateAlert applies field edits and/or a lifecycle transition to an
// existing alert. All pointer fields are optional; nil means unchanged.
// ExpectedVersion, when non-zero, must match the stored row version or the
// update fails with a conflict. Acknowledge and resolve actions persist
// through this same request.
type UpdateAlert struct {
	ID              string          `json:"id" validate:"required"`
	Status          *alert.Status   `json:"status,omitempty"`
	Name            *string         `json:"name,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Source          *string         `json:"source,omitempty"`
	Severity        *alert.Severity `json:"severity,omitempty"`
	Resolution      string          `json:"resolution,omitempty"`
	ExpectedVersion int64           `json:"expected_version,omitempty"`
	Actor           string          `json:"actor" validate:"required"`
}

// AcknowledgeAlert moves an alert from Active to Acknowledged.
type AcknowledgeAlert struct {
	ID    string `json:"id" validate:"required"`
	Actor string `json:"actor" validate:"required"`
}

// ResolveAlert moves a non-resolved alert to Resolved. Notes are required.
type ResolveAlert struct {
	ID    string `json:"id" validate:"required"`
	Actor string `json:"actor" validate:"required"`
	Notes string `json:"notes" validate:"required"`
}

// DeleteAlert soft-deletes an alert.
type DeleteAlert struct {
	ID    string `json:"id" validate:"required"`
	Actor string `json:"actor" validate:"required"`
}

// GetAlert fetches a single alert by id.
type GetAlert struct {
	ID string `json:"id" validate:"required"`
}

// ListAlerts fetches alerts matching the optional filters, most recently
// triggered first, capped at Limit rows starting at Offset.
type ListAlerts struct {
	Severity *alert.Severity `json:"severity,omitempty"`
	Status   *alert.Status   `json:"status,omitempty"`
	Search   string          `json:"search,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

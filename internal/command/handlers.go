package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/database"
	"github.com/halcyonops/intel-console/internal/event"
)

// Store is the persistence boundary the handlers operate against.
type Store interface {
	Create(ctx context.Context, a *database.Alert) error
	GetByID(ctx context.Context, id string) (*database.Alert, error)
	Update(ctx context.Context, a *database.Alert, expectedVersion int64) error
	SoftDelete(ctx context.Context, id, actor string) error
	List(ctx context.Context, f database.Filter) ([]*database.Alert, error)
}

// Publisher receives lifecycle events after successful mutations.
type Publisher interface {
	Publish(e event.Event)
}

// DefaultListLimit caps list queries that do not request a row count.
const DefaultListLimit = 100

// Handlers implements one handler per alert use case. All collaborators are
// injected so each use case is independently testable.
type Handlers struct {
	store    Store
	events   Publisher
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewHandlers creates the handler set.
func NewHandlers(store Store, events Publisher, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:    store,
		events:   events,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Register binds every request type to its handler on the dispatcher.
func (h *Handlers) Register(d *Dispatcher) error {
	registrations := []struct {
		req Request
		fn  HandlerFunc
	}{
		{CreateAlert{}, func(ctx context.Context, req Request) (interface{}, error) {
			return h.handleCreate(ctx, req.(CreateAlert))
		}},
		{UpdateAlert{}, func(ctx context.Context, req Request) (interface{}, error) {
			return h.handleUpdate(ctx, req.(UpdateAlert))
		}},
		{AcknowledgeAlert{}, func(ctx context.Context, req Request) (interface{}, error) {
			return h.handleAcknowledge(ctx, req.(AcknowledgeAlert))
		}},
		{ResolveAlert{}, func(ctx context.Context, req Request) (interface{}, error) {
			return h.handleResolve(ctx, req.(ResolveAlert))
		}},
		{DeleteAlert{}, func(ctx context.Context, req Request) (interface{}, error) {
			return nil, h.handleDelete(ctx, req.(DeleteAlert))
		}},
		{GetAlert{}, func(ctx context.Context, req Request) (interface{}, error) {
			return h.handleGet(ctx, req.(GetAlert))
		}},
		{ListAlerts{}, func(ctx context.Context, req Request) (interface{}, error) {
			return h.handleList(ctx, req.(ListAlerts))
		}},
	}

	for _, r := range registrations {
		if err := d.Register(r.req, r.fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) handleCreate(ctx context.Context, req CreateAlert) (AlertView, error) {
	if err := h.checkShape(req); err != nil {
		return AlertView{}, err
	}
	for field, value := range map[string]string{
		"name":        req.Name,
		"description": req.Description,
		"source":      req.Source,
		"actor":       req.Actor,
	} {
		if strings.TrimSpace(value) == "" {
			return AlertView{}, invalid(field, "must not be empty")
		}
	}
	if !req.Severity.Valid() {
		return AlertView{}, invalid("severity", fmt.Sprintf("unknown severity %q", req.Severity))
	}

	now := h.now()
	a := &database.Alert{
		ID:          h.newID(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Severity:    req.Severity,
		Status:      alert.StatusActive,
		Source:      strings.TrimSpace(req.Source),
		TriggeredAt: now,
		Version:     1,
	}
	a.UpdatedBy = req.Actor

	if err := h.store.Create(ctx, a); err != nil {
		return AlertView{}, fmt.Errorf("create alert: %w", err)
	}

	h.publish(event.TypeCreated, a, req.Actor)
	return newAlertView(a), nil
}

func (h *Handlers) handleUpdate(ctx context.Context, req UpdateAlert) (AlertView, error) {
	if err := h.checkShape(req); err != nil {
		return AlertView{}, err
	}

	a, err := h.store.GetByID(ctx, req.ID)
	if err != nil {
		return AlertView{}, h.storeError(req.ID, err)
	}

	if req.ExpectedVersion != 0 && req.ExpectedVersion != a.Version {
		return AlertView{}, &ConflictError{
			ID:              req.ID,
			ExpectedVersion: req.ExpectedVersion,
			ActualVersion:   a.Version,
		}
	}

	eventType := event.TypeUpdated
	actedAt := h.now()

	// Resolved is terminal: a repeat resolve must fail rather than silently
	// bump the version and discard the new notes.
	if req.Status != nil && *req.Status == alert.StatusResolved && a.Status == alert.StatusResolved {
		return AlertView{}, invalid("status", "alert is already resolved")
	}

	if req.Status != nil && *req.Status != a.Status {
		next := *req.Status
		if !next.Valid() {
			return AlertView{}, invalid("status", fmt.Sprintf("unknown status %q", next))
		}
		if !a.Status.CanTransitionTo(next) {
			return AlertView{}, invalid("status",
				fmt.Sprintf("cannot transition from %s to %s", a.Status, next))
		}

		switch next {
		case alert.StatusAcknowledged:
			a.AcknowledgedAt = &actedAt
			actor := req.Actor
			a.AcknowledgedBy = &actor
			eventType = event.TypeAcknowledged
		case alert.StatusResolved:
			notes := strings.TrimSpace(req.Resolution)
			if notes == "" {
				return AlertView{}, invalid("resolution", "resolution notes are required to resolve an alert")
			}
			actor := req.Actor
			a.ResolvedAt = &actedAt
			a.ResolvedBy = &actor
			a.Resolution = &notes
			eventType = event.TypeResolved
		case alert.StatusEscalated:
			eventType = event.TypeEscalated
		}
		a.Status = next
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return AlertView{}, invalid("name", "must not be empty")
		}
		a.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		if strings.TrimSpace(*req.Description) == "" {
			return AlertView{}, invalid("description", "must not be empty")
		}
		a.Description = strings.TrimSpace(*req.Description)
	}
	if req.Source != nil {
		if strings.TrimSpace(*req.Source) == "" {
			return AlertView{}, invalid("source", "must not be empty")
		}
		a.Source = strings.TrimSpace(*req.Source)
	}
	if req.Severity != nil {
		if !req.Severity.Valid() {
			return AlertView{}, invalid("severity", fmt.Sprintf("unknown severity %q", *req.Severity))
		}
		a.Severity = *req.Severity
	}

	a.UpdatedBy = req.Actor

	if err := h.store.Update(ctx, a, a.Version); err != nil {
		return AlertView{}, h.storeError(req.ID, err)
	}

	h.publish(eventType, a, req.Actor)
	return newAlertView(a), nil
}

// handleAcknowledge is a convenience wrapper over the generic update path.
func (h *Handlers) handleAcknowledge(ctx context.Context, req AcknowledgeAlert) (AlertView, error) {
	if err := h.checkShape(req); err != nil {
		return AlertView{}, err
	}
	status := alert.StatusAcknowledged
	return h.handleUpdate(ctx, UpdateAlert{
		ID:     req.ID,
		Status: &status,
		Actor:  req.Actor,
	})
}

// handleResolve is a convenience wrapper over the generic update path.
func (h *Handlers) handleResolve(ctx context.Context, req ResolveAlert) (AlertView, error) {
	if err := h.checkShape(req); err != nil {
		return AlertView{}, err
	}
	if strings.TrimSpace(req.Notes) == "" {
		return AlertView{}, invalid("notes", "resolution notes are required")
	}
	status := alert.StatusResolved
	return h.handleUpdate(ctx, UpdateAlert{
		ID:         req.ID,
		Status:     &status,
		Resolution: req.Notes,
		Actor:      req.Actor,
	})
}

func (h *Handlers) handleDelete(ctx context.Context, req DeleteAlert) error {
	if err := h.checkShape(req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Actor) == "" {
		return invalid("actor", "must not be empty")
	}

	a, err := h.store.GetByID(ctx, req.ID)
	if err != nil {
		return h.storeError(req.ID, err)
	}

	if err := h.store.SoftDelete(ctx, req.ID, req.Actor); err != nil {
		return h.storeError(req.ID, err)
	}

	h.publish(event.TypeDeleted, a, req.Actor)
	return nil
}

func (h *Handlers) handleGet(ctx context.Context, req GetAlert) (AlertView, error) {
	if err := h.checkShape(req); err != nil {
		return AlertView{}, err
	}
	a, err := h.store.GetByID(ctx, req.ID)
	if err != nil {
		return AlertView{}, h.storeError(req.ID, err)
	}
	return newAlertView(a), nil
}

func (h *Handlers) handleList(ctx context.Context, req ListAlerts) ([]AlertView, error) {
	if req.Severity != nil && !req.Severity.Valid() {
		return nil, invalid("severity", fmt.Sprintf("unknown severity %q", *req.Severity))
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", *req.Status))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	alerts, err := h.store.List(ctx, database.Filter{
		Severity: req.Severity,
		Status:   req.Status,
		Search:   strings.TrimSpace(req.Search),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	return newAlertViews(alerts), nil
}

// checkShape runs the struct-tag validation shared by all requests.
func (h *Handlers) checkShape(req Request) error {
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid(strings.ToLower(verrs[0].Field()), "is required")
		}
		return invalid("", err.Error())
	}
	return nil
}

// storeError maps persistence sentinels onto the command error taxonomy.
func (h *Handlers) storeError(id string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return &NotFoundError{ID: id}
	case errors.Is(err, database.ErrVersionConflict):
		return &ConflictError{ID: id}
	default:
		h.logger.Error("Alert store operation failed", "alert_id", id, "error", err)
		return fmt.Errorf("alert store: %w", err)
	}
}

func (h *Handlers) publish(t event.Type, a *database.Alert, actor string) {
	if h.events == nil {
		return
	}
	h.events.Publish(event.Event{
		Type:       t,
		AlertID:    a.ID,
		Name:       a.Name,
		Severity:   a.Severity,
		Status:     a.Status,
		Source:     a.Source,
		Actor:      actor,
		OccurredAt: h.now(),
	})
}

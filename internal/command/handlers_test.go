package command

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/database"
	"github.com/halcyonops/intel-console/internal/event"
)

// memStore is an in-memory Store with the same version and soft-delete
// semantics as the Postgres repository.
type memStore struct {
	mu         sync.Mutex
	rows       map[string]*database.Alert
	lastFilter database.Filter
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*database.Alert)}
}

func (s *memStore) Create(ctx context.Context, a *database.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Version == 0 {
		a.Version = 1
	}
	cp := *a
	s.rows[a.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*database.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.DeletedAt != nil {
		return nil, database.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *memStore) Update(ctx context.Context, a *database.Alert, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[a.ID]
	if !ok || row.DeletedAt != nil {
		return database.ErrNotFound
	}
	if row.Version != expectedVersion {
		return database.ErrVersionConflict
	}
	cp := *a
	cp.CreatedAt = row.CreatedAt
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	s.rows[a.ID] = &cp
	a.Version = cp.Version
	a.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *memStore) SoftDelete(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.DeletedAt != nil {
		return database.ErrNotFound
	}
	now := time.Now().UTC()
	row.DeletedAt = &now
	row.UpdatedAt = now
	row.UpdatedBy = actor
	return nil
}

func (s *memStore) List(ctx context.Context, f database.Filter) ([]*database.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = f

	var out []*database.Alert
	for _, row := range s.rows {
		if row.DeletedAt != nil && !f.IncludeDeleted {
			continue
		}
		if f.Severity != nil && row.Severity != *f.Severity {
			continue
		}
		if f.Status != nil && row.Status != *f.Status {
			continue
		}
		if f.Search != "" && !matchesSearch(row, f.Search) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// matchesSearch mirrors the repository's case-insensitive ILIKE match over
// name, description and source.
func matchesSearch(row *database.Alert, search string) bool {
	needle := strings.ToLower(search)
	for _, field := range []string{row.Name, row.Description, row.Source} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// row returns the raw stored row, soft-deleted ones included.
func (s *memStore) row(id string) *database.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type busSpy struct {
	mu     sync.Mutex
	events []event.Event
}

func (b *busSpy) Publish(e event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *busSpy) types() []event.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]event.Type, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.Type)
	}
	return types
}

func newTestHandlers(store Store) (*Handlers, *busSpy) {
	spy := &busSpy{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandlers(store, spy, logger), spy
}

func seedAlert(t *testing.T, store *memStore, status alert.Status) *database.Alert {
	t.Helper()
	a := &database.Alert{
		ID:          "alert-1",
		Name:        "CPU load",
		Description: "CPU above threshold on node-7",
		Severity:    alert.SeverityWarning,
		Status:      status,
		Source:      "node-7",
		TriggeredAt: time.Now().UTC(),
		Version:     1,
	}
	a.UpdatedBy = "seed"
	require.NoError(t, store.Create(context.Background(), a))
	return a
}

func TestCreateAlert(t *testing.T) {
	store := newMemStore()
	h, spy := newTestHandlers(store)

	view, err := h.handleCreate(context.Background(), CreateAlert{
		Name:        "Disk full",
		Description: "Disk usage above 95%",
		Severity:    alert.SeverityCritical,
		Source:      "node-12",
		Actor:       "alice",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "Disk full", view.Name)
	assert.Equal(t, alert.StatusActive, view.Status)
	assert.Equal(t, alert.SeverityCritical, view.Severity)
	assert.Equal(t, alert.SeverityCritical.Color(), view.SeverityColor)
	assert.EqualValues(t, 1, view.Version)
	assert.False(t, view.TriggeredAt.IsZero())
	assert.True(t, view.CanAcknowledge)
	assert.True(t, view.CanResolve)

	require.Len(t, spy.events, 1)
	assert.Equal(t, event.TypeCreated, spy.events[0].Type)
	assert.Equal(t, view.ID, spy.events[0].AlertID)
	assert.Equal(t, "alice", spy.events[0].Actor)
}

func TestCreateAlertValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateAlert
		field string
	}{
		{"missing name", CreateAlert{Description: "d", Severity: alert.SeverityInfo, Source: "s", Actor: "a"}, "name"},
		{"blank name", CreateAlert{Name: "   ", Description: "d", Severity: alert.SeverityInfo, Source: "s", Actor: "a"}, "name"},
		{"missing description", CreateAlert{Name: "n", Severity: alert.SeverityInfo, Source: "s", Actor: "a"}, "description"},
		{"missing source", CreateAlert{Name: "n", Description: "d", Severity: alert.SeverityInfo, Actor: "a"}, "source"},
		{"missing actor", CreateAlert{Name: "n", Description: "d", Severity: alert.SeverityInfo, Source: "s"}, "actor"},
		{"unknown severity", CreateAlert{Name: "n", Description: "d", Severity: "fatal", Source: "s", Actor: "a"}, "severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			h, spy := newTestHandlers(store)

			_, err := h.handleCreate(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "want validation error, got %v", err)
			assert.Contains(t, err.Error(), tt.field)
			assert.Empty(t, spy.events)
		})
	}
}

func TestUpdateAlertTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    alert.Status
		to      alert.Status
		allowed bool
	}{
		{"active to acknowledged", alert.StatusActive, alert.StatusAcknowledged, true},
		{"active to resolved", alert.StatusActive, alert.StatusResolved, true},
		{"active to escalated", alert.StatusActive, alert.StatusEscalated, true},
		{"acknowledged to resolved", alert.StatusAcknowledged, alert.StatusResolved, true},
		{"acknowledged to escalated", alert.StatusAcknowledged, alert.StatusEscalated, true},
		{"escalated to acknowledged", alert.StatusEscalated, alert.StatusAcknowledged, true},
		{"escalated to resolved", alert.StatusEscalated, alert.StatusResolved, true},
		{"acknowledged back to active", alert.StatusAcknowledged, alert.StatusActive, false},
		{"resolved to active", alert.StatusResolved, alert.StatusActive, false},
		{"resolved to escalated", alert.StatusResolved, alert.StatusEscalated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			h, _ := newTestHandlers(store)
			a := seedAlert(t, store, tt.from)

			to := tt.to
			req := UpdateAlert{ID: a.ID, Status: &to, Actor: "alice"}
			if to == alert.StatusResolved {
				req.Resolution = "handled"
			}

			view, err := h.handleUpdate(context.Background(), req)
			if !tt.allowed {
				require.Error(t, err)
				assert.True(t, IsValidation(err), "want validation error, got %v", err)
				assert.Equal(t, tt.from, store.row(a.ID).Status, "denied transition must not persist")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, view.Status)
			assert.EqualValues(t, 2, view.Version)
		})
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	store := newMemStore()
	h, spy := newTestHandlers(store)
	a := seedAlert(t, store, alert.StatusActive)

	view, err := h.handleAcknowledge(context.Background(), AcknowledgeAlert{ID: a.ID, Actor: "alice"})
	require.NoError(t, err)

	assert.Equal(t, alert.StatusAcknowledged, view.Status)
	assert.Equal(t, "alice", view.AcknowledgedBy)
	require.NotNil(t, view.AcknowledgedAt)
	assert.False(t, view.CanAcknowledge)
	assert.True(t, view.CanResolve)
	assert.EqualValues(t, 2, view.Version)

	require.Len(t, spy.events, 1)
	assert.Equal(t, event.TypeAcknowledged, spy.events[0].Type)
}

func TestResolveRequiresNotes(t *testing.T) {
	store := newMemStore()
	h, _ := newTestHandlers(store)
	a := seedAlert(t, store, alert.StatusActive)

	_, err := h.handleResolve(context.Background(), ResolveAlert{ID: a.ID, Actor: "bob", Notes: "   "})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, alert.StatusActive, store.row(a.ID).Status)

	status := alert.StatusResolved
	_, err = h.handleUpdate(context.Background(), UpdateAlert{ID: a.ID, Status: &status, Actor: "bob"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestResolveAlreadyResolvedFails(t *testing.T) {
	store := newMemStore()
	h, spy := newTestHandlers(store)

	notes := "first fix"
	bob := "bob"
	resolvedAt := time.Now().UTC()
	a := &database.Alert{
		ID:          "alert-1",
		Name:        "CPU load",
		Description: "CPU above threshold on node-7",
		Severity:    alert.SeverityWarning,
		Status:      alert.StatusResolved,
		Source:      "node-7",
		TriggeredAt: resolvedAt.Add(-time.Hour),
		ResolvedAt:  &resolvedAt,
		ResolvedBy:  &bob,
		Resolution:  &notes,
		Version:     1,
	}
	require.NoError(t, store.Create(context.Background(), a))

	_, err := h.handleResolve(context.Background(), ResolveAlert{ID: a.ID, Actor: "carol", Notes: "second fix"})
	require.Error(t, err)
	assert.True(t, IsValidation(err), "want validation error, got %v", err)

	// The stored resolution, resolver and version are untouched.
	row := store.row(a.ID)
	assert.Equal(t, "first fix", *row.Resolution)
	assert.Equal(t, "bob", *row.ResolvedBy)
	assert.EqualValues(t, 1, row.Version)
	assert.Empty(t, spy.events)

	// The generic update path refuses a repeat resolve too.
	status := alert.StatusResolved
	_, err = h.handleUpdate(context.Background(), UpdateAlert{
		ID:         a.ID,
		Status:     &status,
		Resolution: "second fix",
		Actor:      "carol",
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestUpdateAlertVersionConflict(t *testing.T) {
	store := newMemStore()
	h, spy := newTestHandlers(store)
	a := seedAlert(t, store, alert.StatusActive)

	// Bump the stored version behind the caller's back.
	name := "renamed"
	_, err := h.handleUpdate(context.Background(), UpdateAlert{ID: a.ID, Name: &name, Actor: "alice"})
	require.NoError(t, err)

	_, err = h.handleUpdate(context.Background(), UpdateAlert{
		ID:              a.ID,
		Name:            &name,
		ExpectedVersion: 1,
		Actor:           "bob",
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err), "want conflict error, got %v", err)

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.EqualValues(t, 1, ce.ExpectedVersion)
	assert.EqualValues(t, 2, ce.ActualVersion)

	// Only the first update published an event.
	assert.Equal(t, []event.Type{event.TypeUpdated}, spy.types())
}

func TestUpdateAlertFieldValidation(t *testing.T) {
	store := newMemStore()
	h, _ := newTestHandlers(store)
	a := seedAlert(t, store, alert.StatusActive)

	blank := "  "
	_, err := h.handleUpdate(context.Background(), UpdateAlert{ID: a.ID, Name: &blank, Actor: "alice"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	bad := alert.Severity("fatal")
	_, err = h.handleUpdate(context.Background(), UpdateAlert{ID: a.ID, Severity: &bad, Actor: "alice"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.EqualValues(t, 1, store.row(a.ID).Version, "failed updates must not bump the version")
}

func TestUpdateAlertNotFound(t *testing.T) {
	store := newMemStore()
	h, _ := newTestHandlers(store)

	status := alert.StatusAcknowledged
	_, err := h.handleUpdate(context.Background(), UpdateAlert{ID: "missing", Status: &status, Actor: "alice"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDeleteAlertIsSoft(t *testing.T) {
	store := newMemStore()
	h, spy := newTestHandlers(store)
	a := seedAlert(t, store, alert.StatusActive)

	err := h.handleDelete(context.Background(), DeleteAlert{ID: a.ID, Actor: "alice"})
	require.NoError(t, err)

	_, err = h.handleGet(context.Background(), GetAlert{ID: a.ID})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	// The row survives the delete with the deletion mark set.
	row := store.row(a.ID)
	require.NotNil(t, row)
	assert.NotNil(t, row.DeletedAt)
	assert.Equal(t, "alice", row.UpdatedBy)

	require.Len(t, spy.events, 1)
	assert.Equal(t, event.TypeDeleted, spy.events[0].Type)
	assert.Equal(t, a.Name, spy.events[0].Name)

	// Deleting twice reports not found.
	err = h.handleDelete(context.Background(), DeleteAlert{ID: a.ID, Actor: "alice"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestListAlertsDefaultsAndFilters(t *testing.T) {
	store := newMemStore()
	h, _ := newTestHandlers(store)

	_, err := h.handleList(context.Background(), ListAlerts{})
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, store.lastFilter.Limit)
	assert.False(t, store.lastFilter.IncludeDeleted)

	bad := alert.Severity("fatal")
	_, err = h.handleList(context.Background(), ListAlerts{Severity: &bad})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	badStatus := alert.Status("reopened")
	_, err = h.handleList(context.Background(), ListAlerts{Status: &badStatus})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestListAlertsFiltersOrderAndCap(t *testing.T) {
	store := newMemStore()
	h, _ := newTestHandlers(store)
	ctx := context.Background()
	base := time.Now().UTC()

	seed := func(id, name string, severity alert.Severity, status alert.Status, age time.Duration) {
		a := &database.Alert{
			ID:          id,
			Name:        name,
			Description: "reported by monitoring",
			Severity:    severity,
			Status:      status,
			Source:      "node-7",
			TriggeredAt: base.Add(-age),
			Version:     1,
		}
		a.UpdatedBy = "seed"
		require.NoError(t, store.Create(ctx, a))
	}

	seed("a-old", "Disk full", alert.SeverityCritical, alert.StatusActive, 3*time.Hour)
	seed("a-new", "Disk latency", alert.SeverityCritical, alert.StatusActive, 1*time.Hour)
	seed("a-mid", "Disk errors", alert.SeverityCritical, alert.StatusActive, 2*time.Hour)
	seed("a-warn", "Disk warning", alert.SeverityWarning, alert.StatusActive, 30*time.Minute)
	seed("a-done", "Disk failure", alert.SeverityCritical, alert.StatusResolved, 15*time.Minute)
	seed("a-cpu", "CPU load", alert.SeverityCritical, alert.StatusActive, 10*time.Minute)
	seed("a-gone", "Disk gone", alert.SeverityCritical, alert.StatusActive, 5*time.Minute)
	require.NoError(t, store.SoftDelete(ctx, "a-gone", "seed"))

	severity := alert.SeverityCritical
	status := alert.StatusActive
	views, err := h.handleList(ctx, ListAlerts{
		Severity: &severity,
		Status:   &status,
		Search:   "disk",
		Limit:    2,
	})
	require.NoError(t, err)

	// Filters are conjunctive, ordering is most recently triggered first,
	// and the cap applies after filtering.
	require.Len(t, views, 2)
	assert.Equal(t, "a-new", views[0].ID)
	assert.Equal(t, "a-mid", views[1].ID)

	// Without the cap the oldest match appears last.
	views, err = h.handleList(ctx, ListAlerts{Severity: &severity, Status: &status, Search: "disk"})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "a-old", views[2].ID)
}

func TestAlertLifecycleThroughDispatcher(t *testing.T) {
	store := newMemStore()
	h, spy := newTestHandlers(store)
	d := NewDispatcher()
	require.NoError(t, h.Register(d))
	ctx := context.Background()

	created, err := Send[AlertView](ctx, d, CreateAlert{
		Name:        "Disk full",
		Description: "Disk usage above 95% on node-12",
		Severity:    alert.SeverityCritical,
		Source:      "node-12",
		Actor:       "monitor",
	})
	require.NoError(t, err)
	assert.Equal(t, alert.StatusActive, created.Status)

	acked, err := Send[AlertView](ctx, d, AcknowledgeAlert{ID: created.ID, Actor: "alice"})
	require.NoError(t, err)
	assert.Equal(t, alert.StatusAcknowledged, acked.Status)
	assert.Equal(t, "alice", acked.AcknowledgedBy)
	assert.EqualValues(t, 2, acked.Version)

	resolved, err := Send[AlertView](ctx, d, ResolveAlert{ID: created.ID, Actor: "bob", Notes: "Disk cleaned"})
	require.NoError(t, err)
	assert.Equal(t, alert.StatusResolved, resolved.Status)
	assert.Equal(t, "bob", resolved.ResolvedBy)
	assert.Equal(t, "Disk cleaned", resolved.Resolution)
	assert.EqualValues(t, 3, resolved.Version)
	assert.False(t, resolved.CanResolve)

	_, err = d.Send(ctx, DeleteAlert{ID: created.ID, Actor: "bob"})
	require.NoError(t, err)

	_, err = d.Send(ctx, GetAlert{ID: created.ID})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	assert.Equal(t, []event.Type{
		event.TypeCreated,
		event.TypeAcknowledged,
		event.TypeResolved,
		event.TypeDeleted,
	}, spy.types())
}

func TestRegisterCoversEveryRequest(t *testing.T) {
	h, _ := newTestHandlers(newMemStore())
	d := NewDispatcher()
	require.NoError(t, h.Register(d))

	assert.Equal(t, []string{
		"command.AcknowledgeAlert",
		"command.CreateAlert",
		"command.DeleteAlert",
		"command.GetAlert",
		"command.ListAlerts",
		"command.ResolveAlert",
		"command.UpdateAlert",
	}, d.RegisteredTypes())
}

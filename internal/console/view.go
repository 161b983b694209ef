// Package console holds the presentation-facing state of the alert list: a
// filtered, bounded snapshot of alert DTOs kept current by re-querying
// through the command dispatcher. It never filters client-side and never
// talks to the repository directly.
package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/command"
	"github.com/halcyonops/intel-console/internal/config"
)

// Sender dispatches command/query requests. *command.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, req command.Request) (interface{}, error)
}

// Snapshot is the bindable state exposed to the rendering layer.
type Snapshot struct {
	Alerts  []command.AlertView
	Loading bool
	Message string

	Severity *alert.Severity
	Status   *alert.Status
	Search   string
}

// ListView drives the alert list screen. Every filter change triggers a
// debounced re-fetch; every action round-trips through the dispatcher and
// reloads so the visible state always reflects the store.
type ListView struct {
	send     Sender
	actor    string
	logger   *slog.Logger
	debounce time.Duration
	limit    int

	mu       sync.Mutex
	severity *alert.Severity
	status   *alert.Status
	search   string
	alerts   []command.AlertView
	loading  bool
	message  string
	timer    *time.Timer
	gen      uint64
	onChange func()
}

// Option configures a ListView.
type Option func(*ListView)

// WithDebounce overrides the filter debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(v *ListView) { v.debounce = d }
}

// WithLimit overrides the list row cap.
func WithLimit(n int) Option {
	return func(v *ListView) { v.limit = n }
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func()) Option {
	return func(v *ListView) { v.onChange = fn }
}

// FromConfig derives view options from the console configuration section.
// Zero values keep the built-in defaults.
func FromConfig(cfg config.ConsoleConfig) []Option {
	var opts []Option
	if cfg.DebounceInterval > 0 {
		opts = append(opts, WithDebounce(cfg.DebounceInterval))
	}
	if cfg.ListLimit > 0 {
		opts = append(opts, WithLimit(cfg.ListLimit))
	}
	return opts
}

// NewListView creates a view bound to the given acting user.
func NewListView(send Sender, actor string, logger *slog.Logger, opts ...Option) *ListView {
	v := &ListView{
		send:     send,
		actor:    actor,
		logger:   logger,
		debounce: 300 * time.Millisecond,
		limit:    command.DefaultListLimit,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Snapshot returns a copy of the current bindable state.
func (v *ListView) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	alerts := make([]command.AlertView, len(v.alerts))
	copy(alerts, v.alerts)
	return Snapshot{
		Alerts:   alerts,
		Loading:  v.loading,
		Message:  v.message,
		Severity: v.severity,
		Status:   v.status,
		Search:   v.search,
	}
}

// SetSeverity changes the severity filter and schedules a re-fetch.
func (v *ListView) SetSeverity(ctx context.Context, s *alert.Severity) {
	v.mu.Lock()
	v.severity = s
	v.mu.Unlock()
	v.scheduleReload(ctx)
}

// SetStatus changes the status filter and schedules a re-fetch.
func (v *ListView) SetStatus(ctx context.Context, s *alert.Status) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
	v.scheduleReload(ctx)
}

// SetSearch changes the free-text search and schedules a re-fetch.
func (v *ListView) SetSearch(ctx context.Context, search string) {
	v.mu.Lock()
	v.search = search
	v.mu.Unlock()
	v.scheduleReload(ctx)
}

// scheduleReload coalesces rapid filter changes into one query.
func (v *ListView) scheduleReload(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = time.AfterFunc(v.debounce, func() {
		v.Reload(ctx)
	})
}

// Reload fetches the alert list with the current filters. Results from a
// fetch that was superseded by a newer one are discarded.
func (v *ListView) Reload(ctx context.Context) {
	v.mu.Lock()
	v.gen++
	myGen := v.gen
	v.loading = true
	req := command.ListAlerts{
		Severity: v.severity,
		Status:   v.status,
		Search:   v.search,
		Limit:    v.limit,
	}
	v.mu.Unlock()
	v.notify()

	res, err := v.send.Send(ctx, req)

	v.mu.Lock()
	defer func() {
		v.mu.Unlock()
		v.notify()
	}()

	if myGen != v.gen {
		return
	}
	v.loading = false

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		v.message = userMessage(err, v.logger)
		return
	}

	alerts, ok := res.([]command.AlertView)
	if !ok {
		v.message = "operation failed"
		return
	}
	v.alerts = alerts
	v.message = ""
}

// Create issues a create command and reloads on success.
func (v *ListView) Create(ctx context.Context, name, description string, severity alert.Severity, source string) {
	v.action(ctx, command.CreateAlert{
		Name:        name,
		Description: description,
		Severity:    severity,
		Source:      source,
		Actor:       v.actor,
	})
}

// Acknowledge issues an acknowledge command and reloads on success.
func (v *ListView) Acknowledge(ctx context.Context, id string) {
	v.action(ctx, command.AcknowledgeAlert{ID: id, Actor: v.actor})
}

// Resolve issues a resolve command and reloads on success.
func (v *ListView) Resolve(ctx context.Context, id, notes string) {
	v.action(ctx, command.ResolveAlert{ID: id, Actor: v.actor, Notes: notes})
}

// Delete issues a soft-delete command and reloads on success.
func (v *ListView) Delete(ctx context.Context, id string) {
	v.action(ctx, command.DeleteAlert{ID: id, Actor: v.actor})
}

// action dispatches a mutation, then reloads so the visible list reflects the
// store-confirmed state. The loading flag is cleared on every path.
func (v *ListView) action(ctx context.Context, req command.Request) {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()
	v.notify()

	_, err := v.send.Send(ctx, req)

	if err != nil {
		v.mu.Lock()
		v.loading = false
		v.message = userMessage(err, v.logger)
		v.mu.Unlock()
		v.notify()
		return
	}

	v.mu.Lock()
	v.message = ""
	v.mu.Unlock()
	v.Reload(ctx)
}

func (v *ListView) notify() {
	v.mu.Lock()
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// userMessage maps expected command errors onto user-visible text; anything
// unexpected is logged and reported generically.
func userMessage(err error, logger *slog.Logger) string {
	switch {
	case command.IsValidation(err), command.IsNotFound(err), command.IsConflict(err):
		return err.Error()
	default:
		if logger != nil {
			logger.Error("Alert operation failed", "error", err)
		}
		return "operation failed"
	}
}

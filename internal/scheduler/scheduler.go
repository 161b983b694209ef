// Package scheduler runs the periodic maintenance tasks of the alert
// console: escalating unattended alerts and purging old soft-deleted rows.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/command"
	"github.com/halcyonops/intel-console/internal/config"
	"github.com/halcyonops/intel-console/internal/database"
)

// schedulerActor is recorded as the acting user for automated mutations.
const schedulerActor = "scheduler"

// MaintenanceStore is the repository surface the scheduler needs.
type MaintenanceStore interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*database.Alert, error)
	Cleanup(ctx context.Context, retentionDays int) (int, error)
}

// Scheduler manages periodic tasks. Escalations go through the dispatcher so
// the lifecycle transition guard applies to automated moves too.
type Scheduler struct {
	config     *config.Config
	logger     *slog.Logger
	cron       *cron.Cron
	dispatcher *command.Dispatcher
	store      MaintenanceStore
}

// NewScheduler creates a new scheduler
func NewScheduler(
	cfg *config.Config,
	logger *slog.Logger,
	dispatcher *command.Dispatcher,
	store MaintenanceStore,
) (*Scheduler, error) {
	s := &Scheduler{
		config:     cfg,
		logger:     logger,
		cron:       cron.New(cron.WithLocation(time.UTC)),
		dispatcher: dispatcher,
		store:      store,
	}

	if _, err := s.cron.AddFunc(
		every(cfg.Scheduler.EscalationCheckInterval),
		func() { s.runEscalation(context.Background()) },
	); err != nil {
		return nil, fmt.Errorf("failed to schedule escalation task: %w", err)
	}

	if _, err := s.cron.AddFunc(
		every(cfg.Scheduler.CleanupInterval),
		func() { s.runCleanup(context.Background()) },
	); err != nil {
		return nil, fmt.Errorf("failed to schedule cleanup task: %w", err)
	}

	return s, nil
}

// Start starts the scheduled tasks.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler",
		"escalation_check_interval", s.config.Scheduler.EscalationCheckInterval,
		"cleanup_interval", s.config.Scheduler.CleanupInterval)
	s.cron.Start()
}

// Stop stops the scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// runEscalation escalates active alerts nobody has touched within the
// configured window.
func (s *Scheduler) runEscalation(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.config.Alerting.EscalationAfter)
	stale, err := s.store.ListStale(ctx, cutoff, s.config.Alerting.EscalationBatchSize)
	if err != nil {
		s.logger.Error("Failed to list stale alerts", "error", err)
		return
	}

	escalated := 0
	for _, a := range stale {
		status := alert.StatusEscalated
		_, err := s.dispatcher.Send(ctx, command.UpdateAlert{
			ID:     a.ID,
			Status: &status,
			Actor:  schedulerActor,
		})
		if err != nil {
			// Not-found and conflict just mean someone got there first.
			if command.IsNotFound(err) || command.IsConflict(err) || command.IsValidation(err) {
				continue
			}
			s.logger.Error("Failed to escalate alert", "alert_id", a.ID, "error", err)
			continue
		}
		escalated++
	}

	if escalated > 0 {
		s.logger.Info("Escalated stale alerts", "count", escalated)
	}
}

// runCleanup purges soft-deleted alerts past retention.
func (s *Scheduler) runCleanup(ctx context.Context) {
	purged, err := s.store.Cleanup(ctx, s.config.Scheduler.RetentionDays)
	if err != nil {
		s.logger.Error("Failed to cleanup alerts", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("Purged soft-deleted alerts", "count", purged)
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

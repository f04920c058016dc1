package app

import (
	"context"
	"fmt"
	"time"

	"rent_autopay/internal/domain/schedule"
	"rent_autopay/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

type entryHandler func(ctx context.Context, e *schedule.Entry, now time.Time) error

// timedMonitor holds what both monitors share: reading the entry set and
// walking it sequentially with per-entry isolation.
type timedMonitor struct {
	name     string
	kind     schedule.Kind
	triggers TriggerSchedule
	repo     schedule.Repository
	clock    Clock
	logger   *logrus.Entry
}

// scan runs handle for every active entry. A store failure aborts the whole
// tick and is returned; a failing entry is logged and the scan moves on.
func (m *timedMonitor) scan(ctx context.Context, handle entryHandler) error {
	started := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues(m.name).Observe(time.Since(started).Seconds())
	}()

	now := m.clock.Now()
	entries, err := m.repo.ListActive(ctx, m.kind)
	if err != nil {
		metrics.TicksSkipped.WithLabelValues(m.name).Inc()
		m.logger.WithError(err).Error("Could not read schedule entries. Skipping tick until next interval.")
		return fmt.Errorf("%s tick skipped: %w", m.name, err)
	}

	failed := 0
	for _, e := range entries {
		if err := m.handleIsolated(ctx, e, now, handle); err != nil {
			failed++
			m.logger.WithFields(logrus.Fields{
				"entry_id":  e.ID,
				"tenant_id": e.TenantID,
			}).WithError(err).Error("Failed to handle schedule entry")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"entries": len(entries),
		"failed":  failed,
		"now":     now.Format(time.RFC3339),
	}).Debug("Tick finished")
	return nil
}

func (m *timedMonitor) handleIsolated(ctx context.Context, e *schedule.Entry, now time.Time, handle entryHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling entry: %v", r)
		}
	}()
	return handle(ctx, e, now)
}

// firedActions evaluates the trigger schedule against the entry's due day in its own timezone.
func (m *timedMonitor) firedActions(e *schedule.Entry, now time.Time) (int, []TriggerAction) {
	days := schedule.DaysUntil(e.DueAt, now, e.Location())
	return days, m.triggers.Fired(days)
}

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/relay/internal/process"
	"github.com/me/relay/pkg/model"
)

// publishTimeout bounds a single status write so a locked database cannot
// stall the scheduler.
const publishTimeout = 5 * time.Second

// RunPublisher records unit status changes of one run.
type RunPublisher struct {
	store  Store
	runID  string
	now    func() time.Time
	logger *slog.Logger
}

// NewRunPublisher creates a publisher bound to runID.
func NewRunPublisher(st Store, runID string, logger *slog.Logger) *RunPublisher {
	return &RunPublisher{
		store:  st,
		runID:  runID,
		now:    time.Now,
		logger: logger.With("component", "run-publisher", "run_id", runID),
	}
}

// PublishUnitStatus implements process.Publisher.
func (p *RunPublisher) PublishUnitStatus(ev process.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	rec := &model.UnitRecord{
		RunID:        p.runID,
		Name:         ev.Name,
		Status:       ev.Status,
		Result:       ev.Result,
		DependsOn:    ev.DependsOn,
		DelayMinutes: ev.DelayMinutes,
		SkippedBy:    ev.SkippedBy,
		DurationMs:   ev.Duration.Milliseconds(),
		UpdatedAt:    p.now(),
		FinishedAt:   ev.FinishedAt,
	}
	p.logger.Debug("publish unit status", "unit", ev.Name, "status", ev.Status)
	return p.store.UpsertUnit(ctx, rec)
}

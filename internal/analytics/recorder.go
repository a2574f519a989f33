// Package analytics records swap pipeline stage outcomes to the execution event store.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

// insertTimeout bounds a single event insert.
const insertTimeout = 3 * time.Second

// Recorder writes execution events. Failures are logged and never
// surface to the swap pipeline. A nil Recorder discards events.
type Recorder struct {
	store  storage.ExecutionEventStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. Returns nil when store is nil.
func NewRecorder(store storage.ExecutionEventStore, logger *zap.Logger) *Recorder {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:  store,
		logger: logger.Named("analytics"),
		now:    time.Now,
	}
}

// Record stamps the event ID and timestamp and stores the event.
func (r *Recorder) Record(ctx context.Context, e *domain.ExecutionEvent) {
	if r == nil || e == nil {
		return
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.TimestampMs == 0 {
		e.TimestampMs = r.now().UnixMilli()
	}

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()

	if err := r.store.Insert(insertCtx, e); err != nil {
		r.logger.Warn("execution event dropped",
			zap.String("attempt_id", e.AttemptID),
			zap.String("stage", string(e.Stage)),
			zap.Error(err))
	}
}

// Outcome maps a stage error to an event outcome and error kind.
func Outcome(err error) (outcome, kind string) {
	if err == nil {
		return domain.OutcomeOK, ""
	}
	return domain.OutcomeError, string(domain.KindOf(err))
}

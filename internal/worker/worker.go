// Package worker reacts to transaction import events: it recomputes the
// affected user's month and logs a reconciliation summary, so budget drift
// and newly pending obligations surface right after every import.
package worker

import (
	"context"
	"fmt"
	"time"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/services"
)

// Store is the snapshot source the worker reads from.
type Store interface {
	Snapshot(ctx context.Context, userID int64) (core.Snapshot, error)
}

type Worker struct {
	store  Store
	engine *services.Engine
	logger *log.Logger
	now    func() time.Time
}

func New(store Store, engine *services.Engine, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Worker{
		store:  store,
		engine: engine,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleImported recomputes the importing user's current month. Errors
// bubble up so the message is requeued and retried.
func (w *Worker) HandleImported(msg *amqp.ImportedMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := w.store.Snapshot(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("snapshot for user %d: %w", msg.UserID, err)
	}

	now := w.now()
	month := core.MonthOf(now)
	overview := w.engine.Overview(snap, month)
	pending := w.engine.PendingPayments(snap, now)

	overBudget := 0
	for _, row := range overview.Categories {
		if row.Status == services.StatusOver {
			overBudget++
		}
	}

	w.logger.Info("month recomputed after import",
		log.FieldOperation, log.OpImport,
		log.FieldUserID, msg.UserID,
		log.FieldMonth, month.String(),
		"batch_id", msg.BatchID,
		"imported", msg.Count,
		"spent", overview.Totals.Spent.String(),
		"budget", overview.Totals.Budget.String(),
		"over_budget_categories", overBudget,
		"pending_payments", pending.Count)

	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendsmart/internal/amqp"
	"spendsmart/internal/core"
	applog "spendsmart/internal/log"
	"spendsmart/internal/notify"
	"spendsmart/internal/ports"
	"spendsmart/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// LedgerReader is the store surface the worker reads from.
type LedgerReader interface {
	ports.TransactionStore
	ports.BudgetStore
	ListUsers(ctx context.Context) ([]core.User, error)
}

// EventWorker reacts to ledger events: it mirrors transactions into a
// spreadsheet and raises an alert when a category goes over budget.
type EventWorker struct {
	store    LedgerReader
	mirror   sheets.Mirror
	notifier notify.Notifier
}

// NewEventWorker builds a worker. A nil mirror disables the spreadsheet
// copy; a nil notifier disables alerts.
func NewEventWorker(store LedgerReader, mirror sheets.Mirror, notifier notify.Notifier) *EventWorker {
	return &EventWorker{
		store:    store,
		mirror:   mirror,
		notifier: notifier,
	}
}

// HandleEvent processes one ledger event from AMQP. A returned error makes
// the consumer requeue the message.
func (w *EventWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldEvent, e.Kind,
		applog.FieldOwner, e.Owner)

	switch e.Kind {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		return w.handleTransaction(ctx, e.Owner, e.Transaction.ID)
	case amqp.TransactionDeleted:
		return w.clearRow(ctx, e.Transaction.ID)
	case amqp.BudgetSet:
		return w.checkBudget(ctx, e.Owner, e.Budget.Category)
	default:
		return fmt.Errorf("unsupported event kind %q", e.Kind)
	}
}

func (w *EventWorker) handleTransaction(ctx context.Context, owner, id int64) error {
	// the stored record is authoritative; the event may be stale
	tx, err := w.store.GetTransaction(ctx, owner, id)
	if errors.Is(err, ports.ErrNotFound) {
		slog.InfoContext(ctx, "Transaction no longer exists, skipping", applog.FieldOwner, owner, applog.FieldTransactionID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.upsertRow(gctx, tx) })
	if tx.Type == core.Expense {
		g.Go(func() error { return w.checkBudget(gctx, owner, tx.Category) })
	}
	return g.Wait()
}

func (w *EventWorker) upsertRow(ctx context.Context, tx core.Transaction) error {
	if w.mirror == nil {
		return nil
	}
	ref, err := w.mirror.Upsert(ctx, tx)
	if err != nil {
		return fmt.Errorf("mirror transaction %d: %w", tx.ID, err)
	}
	slog.InfoContext(ctx, "Mirrored transaction",
		applog.FieldTransactionID, tx.ID,
		"sheets_ref", ref,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (w *EventWorker) clearRow(ctx context.Context, id int64) error {
	if w.mirror == nil {
		return nil
	}
	if err := w.mirror.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear mirrored transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Cleared mirrored transaction", applog.FieldTransactionID, id)
	return nil
}

// checkBudget compares the category's expense total with its limit and
// alerts when the limit is exceeded. Categories without a budget are ignored.
func (w *EventWorker) checkBudget(ctx context.Context, owner int64, category string) error {
	if w.notifier == nil {
		return nil
	}

	var (
		budgets map[string]core.Money
		txs     []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = w.store.ListBudgets(gctx, owner)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = w.store.ListTransactions(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load ledger for budget check: %w", err)
	}

	limit, ok := budgets[category]
	if !ok {
		return nil
	}
	spent := core.CategorySpend(txs, category)
	if spent.Cents <= limit.Cents {
		return nil
	}

	alert := notify.Alert{Owner: owner, Category: category, Spent: spent, Limit: limit}
	if err := w.notifier.Notify(ctx, alert); err != nil {
		// alert delivery is best effort; requeueing would re-mirror the row
		slog.ErrorContext(ctx, "Failed to send over-budget alert",
			applog.FieldOwner, owner,
			applog.FieldCategory, category,
			applog.FieldError, err)
		return nil
	}
	slog.InfoContext(ctx, "Sent over-budget alert",
		applog.FieldOwner, owner,
		applog.FieldCategory, category,
		"spent_cents", spent.Cents,
		"limit_cents", limit.Cents)
	return nil
}

// Backfill mirrors every stored transaction. The worker runs it at startup
// to recover rows missed while it was down.
func (w *EventWorker) Backfill(ctx context.Context) error {
	if w.mirror == nil {
		return nil
	}

	users, err := w.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users for backfill: %w", err)
	}
	owners := []int64{0}
	for _, u := range users {
		owners = append(owners, u.ID)
	}

	successCount := 0
	errorCount := 0
	for _, owner := range owners {
		txs, err := w.store.ListTransactions(ctx, owner)
		if err != nil {
			return fmt.Errorf("list transactions for backfill: %w", err)
		}
		for _, tx := range txs {
			if err := w.upsertRow(ctx, tx); err != nil {
				slog.ErrorContext(ctx, "Failed to mirror transaction during backfill",
					applog.FieldTransactionID, tx.ID, applog.FieldError, err)
				errorCount++
				continue
			}
			successCount++
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"owners", len(owners),
		"synced", successCount,
		"errors", errorCount)
	return nil
}

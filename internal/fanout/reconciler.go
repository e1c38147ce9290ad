// Package fanout maintains the denormalized per-user expense index so that
// "list my expenses" is one index-range read per viewer instead of a scan of
// every expense.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/storage"
)

// Reconciler keeps the fan-out rows for each expense equal to the accounts
// resolvable from that expense's participant emails. It is a materialized
// view: the whole index can be rebuilt by replaying every expense.
type Reconciler struct {
	store storage.Store
}

// NewReconciler creates a Reconciler backed by the given store.
func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile makes the fan-out rows for expenseID exactly match targetUserIDs:
// rows for added viewers are inserted, rows for removed viewers deleted.
// Called with the authoritative viewer set after every expense mutation.
func (r *Reconciler) Reconcile(ctx context.Context, expenseID string, targetUserIDs []string) error {
	current, err := r.store.ListFanoutUserIDs(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("failed to read fanout rows: %w", err)
	}

	currentSet := toSet(current)
	targetSet := toSet(targetUserIDs)

	var added, removed int
	for userID := range targetSet {
		if _, ok := currentSet[userID]; ok {
			continue
		}
		if err := r.store.InsertFanoutRow(ctx, userID, expenseID); err != nil {
			return fmt.Errorf("failed to insert fanout row for %s: %w", userID, err)
		}
		added++
	}
	for userID := range currentSet {
		if _, ok := targetSet[userID]; ok {
			continue
		}
		if err := r.store.DeleteFanoutRow(ctx, userID, expenseID); err != nil {
			return fmt.Errorf("failed to delete fanout row for %s: %w", userID, err)
		}
		removed++
	}

	if added > 0 || removed > 0 {
		slog.Debug("fanout reconciled",
			"expense_id", expenseID,
			"added", added,
			"removed", removed,
		)
	}
	return nil
}

// ReconcileExpense derives the target viewer set for one expense from its
// denormalized participant emails and reconciles against it. Emails without
// a live account are skipped; they gain visibility when the member links.
func (r *Reconciler) ReconcileExpense(ctx context.Context, expenseID string) error {
	expense, err := r.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}

	var userIDs []string
	for _, email := range identity.NormalizeSet(expense.ParticipantEmails) {
		account, err := r.store.GetAccountByEmail(ctx, email)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve participant %s: %w", email, err)
		}
		userIDs = append(userIDs, account.ID)
	}
	return r.Reconcile(ctx, expenseID, userIDs)
}

// Rebuild replays every expense through ReconcileExpense. Safe to run at any
// time; the index converges to the derivable state.
func (r *Reconciler) Rebuild(ctx context.Context) (int, error) {
	ids, err := r.store.ListExpenseIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	for _, id := range ids {
		if err := r.ReconcileExpense(ctx, id); err != nil {
			return 0, fmt.Errorf("rebuild stopped at expense %s: %w", id, err)
		}
	}
	slog.Info("fanout index rebuilt", "expenses", len(ids))
	return len(ids), nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

package fanout

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
	"github.com/divvyup/divvy/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "divvy-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func fanoutUsers(t *testing.T, store storage.Store, expenseID string) []string {
	t.Helper()
	ids, err := store.ListFanoutUserIDs(context.Background(), expenseID)
	if err != nil {
		t.Fatalf("ListFanoutUserIDs failed: %v", err)
	}
	sort.Strings(ids)
	return ids
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	reconciler := NewReconciler(store)

	expense := &models.Expense{
		Description:   "Dinner",
		Amount:        30,
		PayerMemberID: "m1",
		Participants:  []models.ExpenseParticipant{{MemberID: "m1", Name: "One", Share: 30}},
		OwnerEmail:    "one@example.com",
	}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	t.Run("inserts rows for a fresh target set", func(t *testing.T) {
		if err := reconciler.Reconcile(ctx, expense.ID, []string{"u1", "u2"}); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		got := fanoutUsers(t, store, expense.ID)
		if !reflect.DeepEqual(got, []string{"u1", "u2"}) {
			t.Errorf("got %v, want [u1 u2]", got)
		}
	})

	t.Run("applies the symmetric difference on change", func(t *testing.T) {
		if err := reconciler.Reconcile(ctx, expense.ID, []string{"u2", "u3"}); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		got := fanoutUsers(t, store, expense.ID)
		if !reflect.DeepEqual(got, []string{"u2", "u3"}) {
			t.Errorf("got %v, want [u2 u3]", got)
		}
	})

	t.Run("is idempotent for an unchanged set", func(t *testing.T) {
		if err := reconciler.Reconcile(ctx, expense.ID, []string{"u3", "u2"}); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		got := fanoutUsers(t, store, expense.ID)
		if !reflect.DeepEqual(got, []string{"u2", "u3"}) {
			t.Errorf("got %v, want [u2 u3]", got)
		}
	})

	t.Run("empty target set clears the index", func(t *testing.T) {
		if err := reconciler.Reconcile(ctx, expense.ID, nil); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if got := fanoutUsers(t, store, expense.ID); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})
}

func TestReconcileExpense(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	reconciler := NewReconciler(store)

	ana := models.NewAccount("ana@example.com", "Ana", "hash")
	if err := store.CreateAccount(ctx, ana); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	// One resolvable email, one that has no account yet.
	expense := &models.Expense{
		Description:       "Rent",
		Amount:            100,
		PayerMemberID:     ana.CanonicalMemberID,
		Participants:      []models.ExpenseParticipant{{MemberID: ana.CanonicalMemberID, Name: "Ana", Share: 100}},
		ParticipantEmails: []string{"ana@example.com", "nobody@example.com"},
		OwnerEmail:        "ana@example.com",
	}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if err := reconciler.ReconcileExpense(ctx, expense.ID); err != nil {
		t.Fatalf("ReconcileExpense failed: %v", err)
	}
	got := fanoutUsers(t, store, expense.ID)
	if !reflect.DeepEqual(got, []string{ana.ID}) {
		t.Errorf("got %v, want [%s]", got, ana.ID)
	}

	t.Run("rebuild converges to the same index", func(t *testing.T) {
		// Corrupt the index, then rebuild from the expenses.
		if err := store.InsertFanoutRow(ctx, "stale-user", expense.ID); err != nil {
			t.Fatalf("InsertFanoutRow failed: %v", err)
		}
		n, err := reconciler.Rebuild(ctx)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if n != 1 {
			t.Errorf("rebuilt %d expenses, want 1", n)
		}
		got := fanoutUsers(t, store, expense.ID)
		if !reflect.DeepEqual(got, []string{ana.ID}) {
			t.Errorf("got %v, want [%s]", got, ana.ID)
		}
	})
}

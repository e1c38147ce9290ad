package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// indexReconciler is a test stand-in for the production fan-out reconciler:
// it inserts index rows for resolvable participant emails and never prunes.
type indexReconciler struct{ store storage.Store }

func (r indexReconciler) ReconcileExpense(ctx context.Context, expenseID string) error {
	expense, err := r.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	for _, email := range expense.ParticipantEmails {
		account, err := r.store.GetAccountByEmail(ctx, email)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := r.store.InsertFanoutRow(ctx, account.ID, expense.ID); err != nil {
			return err
		}
	}
	return nil
}

func createAccount(t *testing.T, store storage.Store, email, name string) *models.Account {
	t.Helper()
	account := models.NewAccount(email, name, "hash")
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func createInvite(t *testing.T, store storage.Store, creator *models.Account, targetID, targetName string, expiresAt int64) *models.InviteToken {
	t.Helper()
	token := &models.InviteToken{
		ID:               uuid.New().String(),
		CreatorAccountID: creator.ID,
		CreatorEmail:     creator.Email,
		TargetMemberID:   targetID,
		TargetName:       targetName,
		ExpiresAt:        expiresAt,
		CreatedAt:        time.Now().Unix(),
	}
	if err := store.CreateInvite(context.Background(), token); err != nil {
		t.Fatalf("CreateInvite failed: %v", err)
	}
	return token
}

// TestClaimPipeline walks the whole linking flow: Ana tracked her roommate as
// the placeholder "Alice" in her friend list, a group and an expense. Alice
// then signs up and claims Ana's invite. Every record keeps its member ID;
// only names, linkage and visibility change.
func TestClaimPipeline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pipeline := NewClaimPipeline(store, NewMerger(store), indexReconciler{store})

	ana := createAccount(t, store, "ana@example.com", "Ana")
	placeholder := "placeholder-alice"
	addFriendRow(t, store, ana.Email, placeholder, "Alice", "")

	group := &models.Group{
		Name:       "Apartment",
		OwnerEmail: ana.Email,
		Members: []models.GroupMember{
			{MemberID: ana.CanonicalMemberID, Name: "Ana", LinkedEmail: ana.Email},
			{MemberID: placeholder, Name: "Alice"},
		},
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	expense := &models.Expense{
		GroupID:       group.ID,
		Description:   "Groceries",
		Amount:        40,
		PayerMemberID: ana.CanonicalMemberID,
		Participants: []models.ExpenseParticipant{
			{MemberID: ana.CanonicalMemberID, Name: "Ana", Share: 20},
			{MemberID: placeholder, Name: "Alice", Share: 20},
		},
		ParticipantEmails: []string{ana.Email},
		OwnerEmail:        ana.Email,
	}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	future := time.Now().Add(time.Hour).Unix()
	token := createInvite(t, store, ana, placeholder, "Alice", future)

	alice := createAccount(t, store, "alice@example.com", "Alice Chen")

	result, err := pipeline.Claim(ctx, token.ID, alice)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	t.Run("placeholder becomes an alias of the claimer", func(t *testing.T) {
		if result.CanonicalMemberID != alice.CanonicalMemberID {
			t.Errorf("canonical = %s, want %s", result.CanonicalMemberID, alice.CanonicalMemberID)
		}
		resolved, err := ResolveCanonical(ctx, store, placeholder)
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if resolved != alice.CanonicalMemberID {
			t.Errorf("resolved = %s, want %s", resolved, alice.CanonicalMemberID)
		}

		reloaded, err := store.GetAccountByID(ctx, alice.ID)
		if err != nil {
			t.Fatalf("GetAccountByID failed: %v", err)
		}
		if !reloaded.HasAlias(placeholder) {
			t.Errorf("alias cache %v missing %s", reloaded.AliasMemberIDs, placeholder)
		}
	})

	t.Run("creator's friend row is linked with the real name", func(t *testing.T) {
		if result.FriendsLinked != 1 {
			t.Errorf("FriendsLinked = %d, want 1", result.FriendsLinked)
		}
		row, err := store.GetFriend(ctx, ana.Email, placeholder)
		if err != nil {
			t.Fatalf("GetFriend failed: %v", err)
		}
		if !row.HasLinkedAccount {
			t.Error("expected row to be linked")
		}
		if row.LinkedAccountID != alice.ID {
			t.Errorf("LinkedAccountID = %s, want %s", row.LinkedAccountID, alice.ID)
		}
		if row.DisplayName != "Alice Chen" {
			t.Errorf("DisplayName = %s, want Alice Chen", row.DisplayName)
		}
	})

	t.Run("claimer gains a reciprocal friend row", func(t *testing.T) {
		row, err := store.GetFriend(ctx, alice.Email, ana.CanonicalMemberID)
		if err != nil {
			t.Fatalf("GetFriend failed: %v", err)
		}
		if !row.HasLinkedAccount || row.LinkedAccountID != ana.ID {
			t.Errorf("reciprocal row not linked to creator: %+v", row)
		}
	})

	t.Run("group member is renamed but keeps its ID", func(t *testing.T) {
		if result.GroupsRenamed != 1 {
			t.Errorf("GroupsRenamed = %d, want 1", result.GroupsRenamed)
		}
		reloaded, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !reloaded.HasMemberID(placeholder) {
			t.Fatal("placeholder member ID was rewritten; snapshots must keep their IDs")
		}
		for _, m := range reloaded.Members {
			if m.MemberID == placeholder {
				if m.Name != "Alice Chen" {
					t.Errorf("member name = %s, want Alice Chen", m.Name)
				}
				if m.LinkedEmail != alice.Email {
					t.Errorf("member linked email = %s, want %s", m.LinkedEmail, alice.Email)
				}
			}
		}
	})

	t.Run("expense visibility is backfilled", func(t *testing.T) {
		if result.ExpensesBackfilled != 1 {
			t.Errorf("ExpensesBackfilled = %d, want 1", result.ExpensesBackfilled)
		}
		reloaded, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !Contains(reloaded.ParticipantEmails, alice.Email) {
			t.Errorf("emails %v missing %s", reloaded.ParticipantEmails, alice.Email)
		}
	})

	t.Run("claimer's expense index gains the backfilled expense", func(t *testing.T) {
		ids, err := store.ListExpenseIDsForUser(ctx, alice.ID)
		if err != nil {
			t.Fatalf("ListExpenseIDsForUser failed: %v", err)
		}
		if !Contains(ids, expense.ID) {
			t.Errorf("index %v missing backfilled expense %s", ids, expense.ID)
		}
	})

	t.Run("re-claiming by the same account converges", func(t *testing.T) {
		again, err := pipeline.Claim(ctx, token.ID, alice)
		if err != nil {
			t.Fatalf("repeated Claim failed: %v", err)
		}
		if again.FriendsLinked != 0 {
			t.Errorf("FriendsLinked = %d on retry, want 0", again.FriendsLinked)
		}
		if again.ExpensesBackfilled != 0 {
			t.Errorf("ExpensesBackfilled = %d on retry, want 0", again.ExpensesBackfilled)
		}
	})

	t.Run("a different account cannot claim the same token", func(t *testing.T) {
		eve := createAccount(t, store, "eve@example.com", "Eve")
		_, err := pipeline.Claim(ctx, token.ID, eve)
		if !errors.Is(err, storage.ErrAlreadyClaimed) {
			t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
		}
	})
}

func TestClaimPreconditions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pipeline := NewClaimPipeline(store, NewMerger(store), indexReconciler{store})

	creator := createAccount(t, store, "creator@example.com", "Creator")
	claimer := createAccount(t, store, "claimer@example.com", "Claimer")
	future := time.Now().Add(time.Hour).Unix()

	t.Run("unknown token", func(t *testing.T) {
		_, err := pipeline.Claim(ctx, "no-such-token", claimer)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Unix()
		token := createInvite(t, store, creator, "expired-target", "Someone", past)
		_, err := pipeline.Claim(ctx, token.ID, claimer)
		if !errors.Is(err, storage.ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
	})

	t.Run("creator cannot claim their own invite", func(t *testing.T) {
		token := createInvite(t, store, creator, "self-target", "Someone", future)
		_, err := pipeline.Claim(ctx, token.ID, creator)
		if !errors.Is(err, storage.ErrSelfClaim) {
			t.Fatalf("expected ErrSelfClaim, got %v", err)
		}
	})

	t.Run("placeholder already bound to another account", func(t *testing.T) {
		other := createAccount(t, store, "other@example.com", "Other")
		merger := NewMerger(store)
		if _, err := merger.MergeIDs(ctx, "taken-target", other.CanonicalMemberID, creator.Email); err != nil {
			t.Fatalf("MergeIDs failed: %v", err)
		}

		token := createInvite(t, store, creator, "taken-target", "Someone", future)
		_, err := pipeline.Claim(ctx, token.ID, claimer)
		if !errors.Is(err, storage.ErrAlreadyLinked) {
			t.Fatalf("expected ErrAlreadyLinked, got %v", err)
		}
	})
}

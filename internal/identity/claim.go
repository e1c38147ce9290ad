package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// ClaimResult reports what a successful invite claim touched.
type ClaimResult struct {
	// CanonicalMemberID is the claimer's canonical member ID (unchanged by
	// the claim; the placeholder becomes its alias).
	CanonicalMemberID string

	// AliasMemberIDs is the claimer's alias set after the claim.
	AliasMemberIDs []string

	// FriendsLinked, GroupsRenamed and ExpensesBackfilled count the
	// denormalized records updated during fan-out, for logging and audit.
	FriendsLinked      int64
	GroupsRenamed      int64
	ExpensesBackfilled int64
}

// ExpenseReconciler converges an expense's per-user index rows after its
// visibility list changes.
type ExpenseReconciler interface {
	ReconcileExpense(ctx context.Context, expenseID string) error
}

// ClaimPipeline binds a newly authenticated account to a pre-existing member
// placeholder: the highest-risk transaction in the system.
//
// The guarded preconditions (token state, self-claim, cross-link) and the
// single-writer claimed_by transition fail fast with no partial writes.
// Everything after that is a fan-out over potentially many friend rows,
// groups and expenses; each step is independently idempotent, so a failure
// partway through is recovered by re-invoking the whole claim.
type ClaimPipeline struct {
	store      storage.Store
	merger     *Merger
	reconciler ExpenseReconciler
}

// NewClaimPipeline creates a ClaimPipeline backed by the given store.
func NewClaimPipeline(store storage.Store, merger *Merger, reconciler ExpenseReconciler) *ClaimPipeline {
	return &ClaimPipeline{store: store, merger: merger, reconciler: reconciler}
}

// Claim executes the pipeline for the given token on behalf of claimer.
// claimer must be the authenticated caller's account, loaded server-side.
func (p *ClaimPipeline) Claim(ctx context.Context, tokenID string, claimer *models.Account) (*ClaimResult, error) {
	token, err := p.store.GetInvite(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if token.Claimed() && token.ClaimedBy != claimer.ID {
		return nil, storage.ErrAlreadyClaimed
	}
	if token.Expired(time.Now()) && !token.Claimed() {
		return nil, storage.ErrExpired
	}
	if token.CreatorAccountID == claimer.ID {
		return nil, storage.ErrSelfClaim
	}

	placeholder := Normalize(token.TargetMemberID)

	// Cross-link check: if the placeholder already resolves to another
	// account's canonical ID, this token can never be claimed.
	resolved, err := ResolveCanonical(ctx, p.store, placeholder)
	if err != nil {
		return nil, err
	}
	if owner, err := p.store.GetAccountByCanonicalMemberID(ctx, resolved); err == nil {
		if owner.ID != claimer.ID {
			return nil, fmt.Errorf("%w: member %s belongs to another account",
				storage.ErrAlreadyLinked, placeholder)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// Single-writer transition. A retry by the same account passes; a racing
	// claim by anyone else loses here.
	if err := p.store.ClaimInvite(ctx, tokenID, claimer.ID); err != nil {
		return nil, err
	}

	// From here on every step is idempotent fan-out.
	if resolved != claimer.CanonicalMemberID {
		if _, err := p.merger.MergeIDs(ctx, placeholder, claimer.CanonicalMemberID, claimer.Email); err != nil {
			return nil, fmt.Errorf("failed to alias placeholder: %w", err)
		}
	}

	if err := p.store.AppendAliasMemberID(ctx, claimer.ID, placeholder); err != nil {
		return nil, fmt.Errorf("failed to cache alias: %w", err)
	}

	result := &ClaimResult{CanonicalMemberID: claimer.CanonicalMemberID}

	// Back-propagate the real identity into every unlinked friend row that
	// represents the placeholder: the creator's and those of every account
	// sharing a group with it.
	result.FriendsLinked, err = p.store.LinkFriendRows(ctx, placeholder, claimer)
	if err != nil {
		return nil, fmt.Errorf("failed to link friend rows: %w", err)
	}

	if err := p.ensureReciprocalFriend(ctx, token, claimer); err != nil {
		return nil, err
	}

	// Group snapshots keep their member IDs; only the displayed name and
	// linked email change.
	result.GroupsRenamed, err = p.store.RenameGroupMember(ctx, placeholder, claimer.DisplayName, claimer.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to rename group member: %w", err)
	}

	result.ExpensesBackfilled, err = p.backfillExpenses(ctx, placeholder, claimer)
	if err != nil {
		return nil, err
	}

	account, err := p.store.GetAccountByID(ctx, claimer.ID)
	if err != nil {
		return nil, err
	}
	result.AliasMemberIDs = account.AliasMemberIDs

	slog.Info("invite claimed",
		"token", tokenID,
		"placeholder", placeholder,
		"claimer", claimer.ID,
		"friends_linked", result.FriendsLinked,
		"groups_renamed", result.GroupsRenamed,
		"expenses_backfilled", result.ExpensesBackfilled,
	)
	return result, nil
}

// ensureReciprocalFriend creates (if absent) a friend row so the claimer also
// sees the invite's creator.
func (p *ClaimPipeline) ensureReciprocalFriend(ctx context.Context, token *models.InviteToken, claimer *models.Account) error {
	creator, err := p.store.GetAccountByID(ctx, token.CreatorAccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Creator deleted their account between invite and claim; the
			// claim still stands, there is just nobody to befriend.
			return nil
		}
		return err
	}

	if _, err := p.store.GetFriend(ctx, claimer.Email, creator.CanonicalMemberID); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	now := time.Now().Unix()
	return p.store.UpsertFriend(ctx, &models.Friend{
		OwnerEmail:         Normalize(claimer.Email),
		MemberID:           creator.CanonicalMemberID,
		DisplayName:        creator.DisplayName,
		HasLinkedAccount:   true,
		LinkedAccountID:    creator.ID,
		LinkedAccountEmail: Normalize(creator.Email),
		LinkedMemberID:     creator.CanonicalMemberID,
		Status:             string(models.FriendStatusFriend),
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}

// backfillExpenses adds the claimer's email to the visibility list of every
// expense involving the placeholder, links the matching participant entries,
// and reconciles each expense's per-user index so the claimer's expense list
// picks them up immediately. Every store call skips work already done, so
// retries converge.
func (p *ClaimPipeline) backfillExpenses(ctx context.Context, placeholder string, claimer *models.Account) (int64, error) {
	expenses, err := p.store.ListExpensesInvolvingMember(ctx, placeholder)
	if err != nil {
		return 0, fmt.Errorf("failed to list expenses for %s: %w", placeholder, err)
	}

	var touched int64
	for _, exp := range expenses {
		added, err := p.store.AddExpenseVisibility(ctx, exp.ID, claimer.Email)
		if err != nil {
			return touched, fmt.Errorf("failed to backfill expense %s: %w", exp.ID, err)
		}
		if added {
			touched++
		}
		if err := p.reconciler.ReconcileExpense(ctx, exp.ID); err != nil {
			return touched, fmt.Errorf("failed to reconcile expense %s: %w", exp.ID, err)
		}
	}

	if _, err := p.store.LinkExpenseParticipants(ctx, placeholder, claimer); err != nil {
		return touched, fmt.Errorf("failed to link expense participants: %w", err)
	}
	return touched, nil
}

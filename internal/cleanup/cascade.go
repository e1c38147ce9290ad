// Package cleanup performs ordered teardown of an account's data graph, for
// user- or admin-initiated deletion and for the orphan janitor. Every path is
// safe to re-run: a retry after partial failure repeats deletes that now
// affect zero rows.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// Counts reports rows affected per entity type, for auditability.
type Counts struct {
	FriendsDeleted    int64 `json:"friends_deleted"`
	FriendsUnlinked   int64 `json:"friends_unlinked"`
	GroupsDeleted     int64 `json:"groups_deleted"`
	MembersUnlinked   int64 `json:"group_members_unlinked"`
	ExpensesDeleted   int64 `json:"expenses_deleted"`
	AliasEdgesDeleted int64 `json:"alias_edges_deleted"`
	InvitesDeleted    int64 `json:"invites_deleted"`
	FanoutRowsDeleted int64 `json:"fanout_rows_deleted"`
	VisibilityRemoved int64 `json:"visibility_removed"`
}

// Deleter tears down account data in two modes: self-delete preserves shared
// expense history, hard delete removes everything the account owns.
type Deleter struct {
	store storage.Store
}

// NewDeleter creates a Deleter backed by the given store.
func NewDeleter(store storage.Store) *Deleter {
	return &Deleter{store: store}
}

// SelfDelete removes the departing account while preserving expense history:
// other users' friend rows pointing at it revert to unlinked placeholders,
// its own friend list and fan-out rows disappear, and the account row goes.
// Group and expense snapshots are left alone.
func (d *Deleter) SelfDelete(ctx context.Context, account *models.Account) (Counts, error) {
	var counts Counts
	email := identity.Normalize(account.Email)

	unlinked, err := d.store.UnlinkFriendsLinkedTo(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to unlink friend rows: %w", err)
	}
	counts.FriendsUnlinked = unlinked

	deleted, err := d.store.DeleteFriendsByOwner(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to delete friend list: %w", err)
	}
	counts.FriendsDeleted = deleted

	counts.FanoutRowsDeleted, err = d.store.DeleteFanoutByUser(ctx, account.ID)
	if err != nil {
		return counts, fmt.Errorf("failed to delete fanout rows: %w", err)
	}

	counts.InvitesDeleted, err = d.store.DeleteInvitesByAccount(ctx, account.ID)
	if err != nil {
		return counts, fmt.Errorf("failed to delete invites: %w", err)
	}

	if err := d.store.DeleteAccount(ctx, account.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return counts, fmt.Errorf("failed to delete account: %w", err)
	}

	slog.Info("account self-deleted",
		"account_id", account.ID,
		"friends_deleted", counts.FriendsDeleted,
		"friends_unlinked", counts.FriendsUnlinked,
	)
	return counts, nil
}

// HardDelete fully removes everything attached to the given email: the
// friend list, owned groups and their expenses, owned standalone expenses,
// alias edges at either endpoint of the account's canonical ID, outstanding
// invites, fan-out rows, visibility entries, and every other account's
// reference to it (including the defensive reverse-link scan).
//
// It works whether or not an account row still exists, so the janitor can
// use the identical teardown for orphaned data.
func (d *Deleter) HardDelete(ctx context.Context, email string) (Counts, error) {
	var counts Counts
	email = identity.Normalize(email)

	account, err := d.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		account = nil
	} else if err != nil {
		return counts, err
	}

	// Linked member IDs recorded on friend rows locate the alias edges once
	// the unlink below has wiped them, and work with or without an account
	// row.
	memberIDs, err := d.store.MemberIDsLinkedTo(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to collect linked member IDs: %w", err)
	}
	if account != nil {
		memberIDs = append(memberIDs, account.CanonicalMemberID)
	}

	counts.FriendsUnlinked, err = d.store.UnlinkFriendsLinkedTo(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to unlink friend rows: %w", err)
	}

	counts.FriendsDeleted, err = d.store.DeleteFriendsByOwner(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to delete friend list: %w", err)
	}

	counts.MembersUnlinked, err = d.store.UnlinkGroupMembers(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to unlink group members: %w", err)
	}

	// Owned groups take their expenses with them.
	groups, err := d.store.ListGroupsByOwner(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to list owned groups: %w", err)
	}
	for _, group := range groups {
		expenses, err := d.store.ListExpensesByGroup(ctx, group.ID)
		if err != nil {
			return counts, fmt.Errorf("failed to list expenses of group %s: %w", group.ID, err)
		}
		for _, exp := range expenses {
			if err := d.deleteExpense(ctx, exp.ID, &counts); err != nil {
				return counts, err
			}
		}
		if err := d.store.DeleteGroup(ctx, group.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return counts, fmt.Errorf("failed to delete group %s: %w", group.ID, err)
		}
		counts.GroupsDeleted++
	}

	// Owned standalone expenses.
	expenses, err := d.store.ListExpensesByOwner(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to list owned expenses: %w", err)
	}
	for _, exp := range expenses {
		if err := d.deleteExpense(ctx, exp.ID, &counts); err != nil {
			return counts, err
		}
	}

	counts.VisibilityRemoved, err = d.store.RemoveExpenseVisibility(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to remove expense visibility: %w", err)
	}

	seen := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		edges, err := d.store.DeleteAliasEdgesTouching(ctx, id)
		if err != nil {
			return counts, fmt.Errorf("failed to delete alias edges of %s: %w", id, err)
		}
		counts.AliasEdgesDeleted += edges
	}

	counts.InvitesDeleted, err = d.store.DeleteInvitesByCreatorEmail(ctx, email)
	if err != nil {
		return counts, fmt.Errorf("failed to delete created invites: %w", err)
	}

	if account != nil {
		claimed, err := d.store.DeleteInvitesByAccount(ctx, account.ID)
		if err != nil {
			return counts, fmt.Errorf("failed to delete claimed invites: %w", err)
		}
		counts.InvitesDeleted += claimed

		fanout, err := d.store.DeleteFanoutByUser(ctx, account.ID)
		if err != nil {
			return counts, fmt.Errorf("failed to delete fanout rows: %w", err)
		}
		counts.FanoutRowsDeleted = fanout

		if err := d.store.DeleteAccount(ctx, account.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return counts, fmt.Errorf("failed to delete account: %w", err)
		}
	}

	slog.Info("account hard-deleted",
		"email", email,
		"had_account_row", account != nil,
		"groups_deleted", counts.GroupsDeleted,
		"expenses_deleted", counts.ExpensesDeleted,
		"alias_edges_deleted", counts.AliasEdgesDeleted,
	)
	return counts, nil
}

// CleanupOrphan runs the hard-delete teardown for an email that was observed
// to have no account. Existence is re-checked first: a user re-registering
// between observation and cleanup makes the "orphan" valid again, in which
// case nothing is touched and skipped=true is returned.
func (d *Deleter) CleanupOrphan(ctx context.Context, email string) (Counts, bool, error) {
	email = identity.Normalize(email)

	if _, err := d.store.GetAccountByEmail(ctx, email); err == nil {
		return Counts{}, true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Counts{}, false, err
	}

	counts, err := d.HardDelete(ctx, email)
	return counts, false, err
}

func (d *Deleter) deleteExpense(ctx context.Context, expenseID string, counts *Counts) error {
	removed, err := d.store.DeleteFanoutByExpense(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete fanout of expense %s: %w", expenseID, err)
	}
	counts.FanoutRowsDeleted += removed

	if err := d.store.DeleteExpense(ctx, expenseID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete expense %s: %w", expenseID, err)
	}
	counts.ExpensesDeleted++
	return nil
}

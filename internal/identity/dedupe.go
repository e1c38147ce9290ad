package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// Deduplicator collapses a viewer's friend rows into one logical row per
// real identity at read time. It never writes: stale duplicate rows stay in
// storage and are hidden again on the next read.
type Deduplicator struct {
	store storage.Store
}

// NewDeduplicator creates a Deduplicator backed by the given store.
func NewDeduplicator(store storage.Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// candidate is one friend row annotated with its resolved identity.
type candidate struct {
	row     models.Friend
	key     string   // identity key: linked account ID, else own member ID
	aliases []string // equivalence set of the resolved identity
	linked  bool     // still resolvable to a live account
}

// ListFriends returns the viewer's deduplicated friend list.
//
// Rows are grouped by identity key: for a linked row, the linked account's
// ID (looked up by email with a legacy member-ID fallback); any row, linked
// or not, whose member ID falls inside that account's alias set joins the
// same group. Within a group one winner is chosen by precedence: linked over
// unlinked, richer alias set over sparser, newer updated_at over older.
//
// A linked row whose target account no longer exists is demoted to an
// unlinked row in the response rather than surfaced as an error; the janitor
// repairs the storage side later.
//
// Rows whose status is pending or rejected are not part of the friend list
// and are skipped before grouping.
func (d *Deduplicator) ListFriends(ctx context.Context, viewerEmail string) ([]models.FriendView, error) {
	rows, err := d.store.ListFriends(ctx, Normalize(viewerEmail))
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}

	candidates := make([]candidate, 0, len(rows))
	// member ID → identity key, learned from linked rows first.
	keyByMember := map[string]string{}
	aliasesByKey := map[string][]string{}

	for _, row := range rows {
		if !StatusAccepted(row.Status) {
			continue
		}
		c := candidate{row: row, key: Normalize(row.MemberID)}

		if row.HasLinkedAccount {
			account, err := d.lookupLinkedAccount(ctx, row)
			if err != nil {
				return nil, err
			}
			if account == nil {
				// Orphaned link: demote in the response, no write.
				slog.Debug("demoting friend row with dead link",
					"owner", row.OwnerEmail,
					"member_id", row.MemberID,
					"linked_email", row.LinkedAccountEmail,
				)
				c.row.HasLinkedAccount = false
				c.row.LinkedAccountID = ""
				c.row.LinkedAccountEmail = ""
				c.row.LinkedMemberID = ""
			} else {
				c.key = account.ID
				c.linked = true
				c.aliases, err = EquivalentIDs(ctx, d.store, account.CanonicalMemberID)
				if err != nil {
					return nil, err
				}
				for _, id := range c.aliases {
					keyByMember[id] = c.key
				}
				aliasesByKey[c.key] = unionSets(aliasesByKey[c.key], c.aliases)
			}
		}
		candidates = append(candidates, c)
	}

	// Second pass: pull unlinked rows into the linked identity groups their
	// member IDs belong to.
	groups := map[string][]candidate{}
	order := []string{}
	for _, c := range candidates {
		key := c.key
		if !c.linked {
			if k, ok := keyByMember[Normalize(c.row.MemberID)]; ok {
				key = k
			}
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	views := make([]models.FriendView, 0, len(groups))
	for _, key := range order {
		winner := pickWinner(groups[key])
		view := models.FriendView{
			MemberID:           winner.row.MemberID,
			DisplayName:        winner.row.DisplayName,
			Nickname:           winner.row.Nickname,
			HasLinkedAccount:   winner.linked,
			LinkedAccountID:    winner.row.LinkedAccountID,
			LinkedAccountEmail: winner.row.LinkedAccountEmail,
			UpdatedAt:          winner.row.UpdatedAt,
		}

		// Enrich with the union of member IDs in the group so callers can
		// test "same person" without re-querying.
		ids := aliasesByKey[key]
		for _, c := range groups[key] {
			ids = unionSets(ids, []string{Normalize(c.row.MemberID)})
		}
		sort.Strings(ids)
		view.AliasMemberIDs = ids

		views = append(views, view)
	}
	return views, nil
}

// lookupLinkedAccount resolves a linked row to its account, email first and
// the deprecated member-ID path second. Returns nil (no error) when the
// account is gone.
func (d *Deduplicator) lookupLinkedAccount(ctx context.Context, row models.Friend) (*models.Account, error) {
	if row.LinkedAccountEmail != "" {
		account, err := d.store.GetAccountByEmail(ctx, Normalize(row.LinkedAccountEmail))
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	if row.LinkedMemberID != "" {
		account, err := d.store.LookupAccountByMemberID(ctx, row.LinkedMemberID)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// pickWinner applies the precedence order: linked beats unlinked, richer
// alias set beats sparser, newer updated_at beats older. Ties fall back to
// member ID so the result is deterministic.
func pickWinner(group []candidate) candidate {
	winner := group[0]
	for _, c := range group[1:] {
		switch {
		case c.linked != winner.linked:
			if c.linked {
				winner = c
			}
		case len(c.aliases) != len(winner.aliases):
			if len(c.aliases) > len(winner.aliases) {
				winner = c
			}
		case c.row.UpdatedAt != winner.row.UpdatedAt:
			if c.row.UpdatedAt > winner.row.UpdatedAt {
				winner = c
			}
		default:
			if c.row.MemberID < winner.row.MemberID {
				winner = c
			}
		}
	}
	return winner
}

// unionSets merges b into a, preserving a's order and skipping duplicates.
func unionSets(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			a = append(a, s)
		}
	}
	return a
}

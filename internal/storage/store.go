// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/divvyup/divvy/internal/models"
)

// Store defines the interface for identity and ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the engine or service layers.
//
// Every mutation executes in its own transaction: invariant checks that guard
// a write (single outgoing alias edge, no cycle, single-writer invite claim)
// are re-checked inside that transaction, so concurrent callers racing on the
// same edge observe ErrConflict rather than corruption.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account. Emails are unique
	// (case-insensitive); duplicates return ErrConflict.
	CreateAccount(ctx context.Context, account *models.Account) error

	// GetAccountByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if absent.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// GetAccountByID retrieves an account by ID.
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)

	// GetAccountByCanonicalMemberID retrieves the account whose canonical
	// member ID equals memberID.
	GetAccountByCanonicalMemberID(ctx context.Context, memberID string) (*models.Account, error)

	// LookupAccountByMemberID resolves a member ID to an account using the
	// canonical index first, then the alias cache, then a fallback scan of
	// the deprecated linked_member_id column. The fallback exists only for
	// rows written before canonical member IDs and goes away once migration
	// completes.
	LookupAccountByMemberID(ctx context.Context, memberID string) (*models.Account, error)

	// AppendAliasMemberID adds memberID to an account's cached alias set.
	// Adding an ID already present is a no-op.
	AppendAliasMemberID(ctx context.Context, accountID, memberID string) error

	// DeleteAccount removes the account row and its alias cache.
	DeleteAccount(ctx context.Context, accountID string) error

	// --- Alias edges ---

	// AliasTarget returns the canonical member ID the given alias points at,
	// or ok=false if the ID has no outgoing edge.
	AliasTarget(ctx context.Context, memberID string) (target string, ok bool, err error)

	// AliasesOf returns every member ID with an edge pointing at canonicalID.
	AliasesOf(ctx context.Context, canonicalID string) ([]string, error)

	// CreateAliasEdge inserts the edge alias → canonical. Inside the insert
	// transaction it re-checks that the alias has no outgoing edge to a
	// different target (ErrConflict) and that walking from canonical does not
	// reach alias (ErrConflict, cycle). Returns created=false when an
	// identical edge already exists.
	CreateAliasEdge(ctx context.Context, alias, canonical, createdBy string) (created bool, err error)

	// DeleteAliasEdgesTouching removes every edge where memberID appears as
	// either endpoint, returning the number removed.
	DeleteAliasEdgesTouching(ctx context.Context, memberID string) (int64, error)

	// --- Friend rows ---

	// UpsertFriend inserts or replaces a friend row keyed by
	// (owner email, member ID).
	UpsertFriend(ctx context.Context, friend *models.Friend) error

	// GetFriend retrieves one friend row. Returns ErrNotFound if absent.
	GetFriend(ctx context.Context, ownerEmail, memberID string) (*models.Friend, error)

	// ListFriends returns all friend rows belonging to one viewer.
	ListFriends(ctx context.Context, ownerEmail string) ([]models.Friend, error)

	// ListFriendsByMemberID returns friend rows across all owners whose
	// member ID equals memberID.
	ListFriendsByMemberID(ctx context.Context, memberID string) ([]models.Friend, error)

	// LinkFriendRows sets linkage fields and the real display name on every
	// not-yet-linked friend row representing memberID, clearing nicknames
	// that now equal the real name (the original nickname is preserved in an
	// audit column). Returns the number of rows updated; already-linked rows
	// are untouched, so the call is idempotent.
	LinkFriendRows(ctx context.Context, memberID string, account *models.Account) (int64, error)

	// DeleteFriend removes one friend row.
	DeleteFriend(ctx context.Context, ownerEmail, memberID string) error

	// DeleteFriendsByOwner removes a viewer's entire friend list.
	DeleteFriendsByOwner(ctx context.Context, ownerEmail string) (int64, error)

	// UnlinkFriendsLinkedTo clears linkage on every friend row, across all
	// owners, that points at the given account email. This is the defensive
	// reverse-link scan used during teardown; rows keep their display name
	// but revert to unlinked placeholders.
	UnlinkFriendsLinkedTo(ctx context.Context, email string) (int64, error)

	// MemberIDsLinkedTo returns the distinct linked member IDs on rows linked
	// to the email. Teardown uses them to find alias edges when the account
	// row is already gone.
	MemberIDsLinkedTo(ctx context.Context, email string) ([]string, error)

	// SampleFriendRows returns a bounded page of friend rows for the janitor.
	SampleFriendRows(ctx context.Context, limit int) ([]models.Friend, error)

	// --- Groups ---

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	ListGroupsByOwner(ctx context.Context, ownerEmail string) ([]models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, groupID string) error

	// ListGroupsContainingMember returns groups whose member snapshot
	// contains the exact member ID. Equivalence is resolved by the caller.
	ListGroupsContainingMember(ctx context.Context, memberID string) ([]models.Group, error)

	// RenameGroupMember rewrites the embedded member *name* (never the ID)
	// for memberID in every group snapshot containing it, and records the
	// linked email. Returns the number of snapshot entries updated.
	RenameGroupMember(ctx context.Context, memberID, newName, linkedEmail string) (int64, error)

	// UnlinkGroupMembers clears the linked email on every group snapshot
	// entry pointing at it, so teardown leaves no dangling account
	// references. Returns the number of entries updated.
	UnlinkGroupMembers(ctx context.Context, email string) (int64, error)

	// SampleGroups returns a bounded page of groups for the janitor.
	SampleGroups(ctx context.Context, limit int) ([]models.Group, error)

	// --- Expenses ---

	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesInvolvingMember returns expenses whose participant snapshot
	// contains the exact member ID.
	ListExpensesInvolvingMember(ctx context.Context, memberID string) ([]models.Expense, error)

	ListExpensesByOwner(ctx context.Context, ownerEmail string) ([]models.Expense, error)
	ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)

	// ListExpenseIDs returns every expense ID, for full fan-out rebuilds.
	ListExpenseIDs(ctx context.Context) ([]string, error)

	// AddExpenseVisibility adds an email to the expense's denormalized
	// visibility list. Returns added=false if already present.
	AddExpenseVisibility(ctx context.Context, expenseID, email string) (added bool, err error)

	// RemoveExpenseVisibility removes the email from every expense's
	// visibility list, returning the number of entries removed.
	RemoveExpenseVisibility(ctx context.Context, email string) (int64, error)

	// LinkExpenseParticipants sets linkage fields on every participant
	// snapshot entry matching memberID. Idempotent.
	LinkExpenseParticipants(ctx context.Context, memberID string, account *models.Account) (int64, error)

	// --- Fan-out index ---

	// ListFanoutUserIDs returns the current viewer set for an expense.
	ListFanoutUserIDs(ctx context.Context, expenseID string) ([]string, error)

	// InsertFanoutRow adds one (viewer, expense) pair. Idempotent.
	InsertFanoutRow(ctx context.Context, userID, expenseID string) error

	// DeleteFanoutRow removes one (viewer, expense) pair.
	DeleteFanoutRow(ctx context.Context, userID, expenseID string) error

	// DeleteFanoutByExpense removes every fan-out row for an expense.
	DeleteFanoutByExpense(ctx context.Context, expenseID string) (int64, error)

	// DeleteFanoutByUser removes every fan-out row for a viewer.
	DeleteFanoutByUser(ctx context.Context, userID string) (int64, error)

	// ListExpenseIDsForUser returns the expense IDs visible to a viewer,
	// newest first. This is the O(1)-per-user read path the index exists for.
	ListExpenseIDsForUser(ctx context.Context, userID string) ([]string, error)

	// --- Invite tokens ---

	CreateInvite(ctx context.Context, token *models.InviteToken) error

	// GetInvite retrieves a token by ID. Returns ErrNotFound if absent.
	GetInvite(ctx context.Context, tokenID string) (*models.InviteToken, error)

	// ClaimInvite performs the single-writer pending → claimed transition.
	// Claiming a token already claimed by the same account succeeds (retry);
	// claimed by anyone else returns ErrAlreadyClaimed.
	ClaimInvite(ctx context.Context, tokenID, accountID string) error

	// DeleteInvitesByAccount removes tokens the account created or claimed.
	DeleteInvitesByAccount(ctx context.Context, accountID string) (int64, error)

	// DeleteInvitesByCreatorEmail removes tokens created under the email,
	// keyed on the denormalized creator_email so teardown works without an
	// account row.
	DeleteInvitesByCreatorEmail(ctx context.Context, email string) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}

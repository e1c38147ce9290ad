package models

// FriendStatus classifies a friend row's relationship state. Stored values
// predate the enum, so the empty string and unknown legacy strings are both
// representable; classification lives in the identity package.
type FriendStatus string

const (
	// FriendStatusPending marks an outstanding friend request.
	FriendStatusPending FriendStatus = "pending"
	// FriendStatusFriend marks an accepted relationship.
	FriendStatusFriend FriendStatus = "friend"
	// FriendStatusRejected marks a declined request.
	FriendStatusRejected FriendStatus = "rejected"
	// FriendStatusLegacyUnset marks rows written before status existed.
	FriendStatusLegacyUnset FriendStatus = "legacy_unset"
)

// Friend is one viewer's knowledge of one other person, keyed by
// (OwnerEmail, MemberID). Several rows owned by the same viewer may resolve
// to the same real identity; deduplication happens at read time.
type Friend struct {
	// OwnerEmail is the email of the account whose friend list this row
	// belongs to.
	OwnerEmail string

	// MemberID is the member ID this row represents. May be a placeholder or
	// a canonical ID.
	MemberID string

	// DisplayName is the name shown for this friend. Replaced with the real
	// account name when the member links.
	DisplayName string

	// Nickname is an optional viewer-chosen name.
	Nickname string

	// OriginalNickname preserves the nickname as it was before a link event
	// cleared it, for audit.
	OriginalNickname string

	// HasLinkedAccount is true once this row is bound to a real account.
	HasLinkedAccount bool

	// LinkedAccountID is the ID of the linked account, if any.
	LinkedAccountID string

	// LinkedAccountEmail is the email of the linked account, if any.
	LinkedAccountEmail string

	// LinkedMemberID is the linked account's canonical member ID, if known.
	LinkedMemberID string

	// Status is the raw stored relationship state; see FriendStatus.
	Status string

	// CreatedAt is the Unix timestamp when the row was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last change.
	UpdatedAt int64
}

// FriendView is one deduplicated logical friend as returned to callers.
// It is derived at read time and never stored.
type FriendView struct {
	MemberID           string
	DisplayName        string
	Nickname           string
	HasLinkedAccount   bool
	LinkedAccountID    string
	LinkedAccountEmail string

	// AliasMemberIDs is the union of member IDs known to refer to this
	// person, so callers can test identity without re-querying.
	AliasMemberIDs []string

	UpdatedAt int64
}

package models

import "time"

// InviteToken is a short-lived, single-use capability binding a creator, a
// target member placeholder, and an expiry. The only mutation it ever
// receives is the pending → claimed transition, guarded by ClaimedBy.
type InviteToken struct {
	// ID is the token value itself (UUID format).
	ID string

	// CreatorAccountID is the account that issued the invite.
	CreatorAccountID string

	// CreatorEmail is the issuing account's email.
	CreatorEmail string

	// TargetMemberID is the placeholder the claimer will be bound to.
	TargetMemberID string

	// TargetName is the placeholder's display name, for anonymous preview.
	TargetName string

	// ClaimedBy is the account ID that claimed the token, or empty while
	// pending. Set exactly once.
	ClaimedBy string

	// ClaimedAt is the Unix timestamp of the claim, or zero.
	ClaimedAt int64

	// ExpiresAt is the Unix timestamp after which the token is unusable.
	ExpiresAt int64

	// CreatedAt is the Unix timestamp when the token was issued.
	CreatedAt int64
}

// Expired reports whether the token's deadline has passed at the given time.
func (t *InviteToken) Expired(now time.Time) bool {
	return now.Unix() >= t.ExpiresAt
}

// Claimed reports whether the token has been used.
func (t *InviteToken) Claimed() bool {
	return t.ClaimedBy != ""
}

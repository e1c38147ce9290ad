package models

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a registered user. Every account has exactly one
// canonical member ID; placeholders that were claimed by this account are
// recorded both as alias edges and in the denormalized AliasMemberIDs cache.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// AuthSubject is the stable subject ID from the authentication provider.
	AuthSubject string

	// Email is the account's email address (unique, case-insensitive).
	Email string

	// DisplayName is the name shown to other users.
	DisplayName string

	// PasswordHash is the bcrypt hash for password authentication.
	PasswordHash string

	// CanonicalMemberID is the authoritative member ID for this person.
	CanonicalMemberID string

	// AliasMemberIDs is a denormalized cache of member IDs this account has
	// claimed. The alias edge table is the source of truth.
	AliasMemberIDs []string

	// LinkedMemberID is a deprecated legacy field kept for rows written
	// before canonical member IDs existed. Lookups fall back to it when the
	// canonical index misses.
	LinkedMemberID string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last profile or identity change.
	UpdatedAt int64
}

// NewAccount creates an account with generated IDs and current timestamps.
func NewAccount(email, displayName, passwordHash string) *Account {
	now := time.Now().Unix()
	return &Account{
		ID:                uuid.New().String(),
		AuthSubject:       uuid.New().String(),
		Email:             email,
		DisplayName:       displayName,
		PasswordHash:      passwordHash,
		CanonicalMemberID: uuid.New().String(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HasAlias reports whether memberID is in the cached alias set.
func (a *Account) HasAlias(memberID string) bool {
	for _, id := range a.AliasMemberIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

package storage

import "errors"

// Sentinel errors for the identity engine. Callers branch on these with
// errors.Is; the HTTP layer maps them to status codes in one place.
var (
	// ErrNotFound indicates a missing account, token, friend row or group.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a violated identity invariant: an alias cycle,
	// re-pointing an existing alias at a different target, or a cross-link
	// between accounts.
	ErrConflict = errors.New("conflict")

	// ErrExpired indicates an invite token past its deadline.
	ErrExpired = errors.New("invite expired")

	// ErrAlreadyClaimed indicates an invite token already used by another
	// account.
	ErrAlreadyClaimed = errors.New("invite already claimed")

	// ErrAlreadyLinked indicates an identity already bound to a real account
	// where an unlinked one was required.
	ErrAlreadyLinked = errors.New("identity already linked to an account")

	// ErrSelfClaim indicates an account claiming an invite it created.
	ErrSelfClaim = errors.New("cannot claim own invite")

	// ErrUnauthenticated indicates a request without a verified caller.
	ErrUnauthenticated = errors.New("unauthenticated")
)

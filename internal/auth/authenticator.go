package auth

import (
	"context"

	"github.com/divvyup/divvy/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password,
// passkeys, OAuth, etc.) without changing the service layer code. The rest of
// the system consumes only the verified account identity it produces.
type Authenticator interface {
	// Register creates a new account with the given email and credential.
	// The credential format depends on the implementation.
	// Returns the created account or an error if registration fails.
	Register(ctx context.Context, email, displayName, credential string) (*models.Account, error)

	// Authenticate verifies the credentials and returns the account if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.Account, error)

	// ValidateCredential checks if the credential meets the implementation's
	// requirements.
	ValidateCredential(credential string) error
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

const accountColumns = "id, auth_subject, email, display_name, password_hash, canonical_member_id, linked_member_id, created_at, updated_at"

// CreateAccount inserts a new account. Duplicate emails and canonical member
// IDs surface as storage.ErrConflict.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, auth_subject, email, display_name, password_hash, canonical_member_id, linked_member_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.AuthSubject,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		account.CanonicalMemberID,
		account.LinkedMemberID,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email already registered", storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByEmail retrieves an account by its (normalized) email address.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, "email = ?", email)
}

// GetAccountByID retrieves an account by its ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id = ?", id)
}

// GetAccountByCanonicalMemberID retrieves the account owning the canonical member ID.
func (s *SQLiteStore) GetAccountByCanonicalMemberID(ctx context.Context, memberID string) (*models.Account, error) {
	return s.getAccount(ctx, "canonical_member_id = ?", memberID)
}

// LookupAccountByMemberID resolves a member ID to its account: canonical
// index first, then the alias cache, finally the deprecated linked_member_id
// column. The last branch is the backward-compatible path for rows written
// before canonical member IDs; delete it once migration completes.
func (s *SQLiteStore) LookupAccountByMemberID(ctx context.Context, memberID string) (*models.Account, error) {
	account, err := s.GetAccountByCanonicalMemberID(ctx, memberID)
	if err == nil {
		return account, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	account, err = s.getAccount(ctx,
		"id = (SELECT account_id FROM account_alias_cache WHERE member_id = ?)", memberID)
	if err == nil {
		return account, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	return s.getAccount(ctx, "linked_member_id = ?", memberID)
}

// AppendAliasMemberID adds memberID to the account's cached alias set.
func (s *SQLiteStore) AppendAliasMemberID(ctx context.Context, accountID, memberID string) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO account_alias_cache (account_id, member_id) VALUES (?, ?)",
		accountID, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to cache alias member id: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		_, err = s.db.ExecContext(ctx,
			"UPDATE accounts SET updated_at = ? WHERE id = ?",
			time.Now().Unix(), accountID,
		)
		if err != nil {
			return fmt.Errorf("failed to touch account: %w", err)
		}
	}
	return nil
}

// DeleteAccount removes the account row; the alias cache goes with it via
// the foreign key cascade.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) getAccount(ctx context.Context, where string, args ...any) (*models.Account, error) {
	account := &models.Account{}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+where, args...,
	).Scan(
		&account.ID,
		&account.AuthSubject,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.CanonicalMemberID,
		&account.LinkedMemberID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id FROM account_alias_cache WHERE account_id = ? ORDER BY member_id",
		account.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get alias cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alias cache: %w", err)
		}
		account.AliasMemberIDs = append(account.AliasMemberIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alias cache: %w", err)
	}
	return account, nil
}

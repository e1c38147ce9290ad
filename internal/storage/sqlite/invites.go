package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// CreateInvite persists an invite token.
func (s *SQLiteStore) CreateInvite(ctx context.Context, token *models.InviteToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt == 0 {
		token.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO invite_tokens (id, creator_account_id, creator_email, target_member_id, target_name, claimed_by, claimed_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.CreatorAccountID,
		token.CreatorEmail,
		token.TargetMemberID,
		token.TargetName,
		token.ClaimedBy,
		token.ClaimedAt,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetInvite retrieves a token by ID.
func (s *SQLiteStore) GetInvite(ctx context.Context, tokenID string) (*models.InviteToken, error) {
	token := &models.InviteToken{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, creator_account_id, creator_email, target_member_id, target_name, claimed_by, claimed_at, expires_at, created_at FROM invite_tokens WHERE id = ?",
		tokenID,
	).Scan(
		&token.ID,
		&token.CreatorAccountID,
		&token.CreatorEmail,
		&token.TargetMemberID,
		&token.TargetName,
		&token.ClaimedBy,
		&token.ClaimedAt,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return token, nil
}

// ClaimInvite performs the pending → claimed transition as a single guarded
// update: it succeeds only if the token is unclaimed or already claimed by
// the same account, so exactly one of two racing claimers wins.
func (s *SQLiteStore) ClaimInvite(ctx context.Context, tokenID, accountID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invite_tokens
		 SET claimed_by = ?, claimed_at = CASE WHEN claimed_at = 0 THEN ? ELSE claimed_at END
		 WHERE id = ? AND (claimed_by = '' OR claimed_by = ?)`,
		accountID, time.Now().Unix(), tokenID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetInvite(ctx, tokenID); err != nil {
			return err
		}
		return storage.ErrAlreadyClaimed
	}
	return nil
}

// DeleteInvitesByCreatorEmail removes tokens created under the email. Keyed
// on the denormalized creator_email so teardown works when the creator's
// account row is already gone.
func (s *SQLiteStore) DeleteInvitesByCreatorEmail(ctx context.Context, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM invite_tokens WHERE creator_email = ?", email,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invites by creator: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteInvitesByAccount removes tokens the account created or claimed.
func (s *SQLiteStore) DeleteInvitesByAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM invite_tokens WHERE creator_account_id = ? OR claimed_by = ?",
		accountID, accountID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invites: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

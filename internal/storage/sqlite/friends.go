package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

const friendColumns = "owner_email, member_id, display_name, nickname, original_nickname, has_linked_account, linked_account_id, linked_account_email, linked_member_id, status, created_at, updated_at"

// UpsertFriend inserts or replaces a friend row.
func (s *SQLiteStore) UpsertFriend(ctx context.Context, friend *models.Friend) error {
	query := `
		INSERT OR REPLACE INTO account_friends
		(owner_email, member_id, display_name, nickname, original_nickname, has_linked_account, linked_account_id, linked_account_email, linked_member_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		friend.OwnerEmail,
		friend.MemberID,
		friend.DisplayName,
		friend.Nickname,
		friend.OriginalNickname,
		friend.HasLinkedAccount,
		friend.LinkedAccountID,
		friend.LinkedAccountEmail,
		friend.LinkedMemberID,
		friend.Status,
		friend.CreatedAt,
		friend.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert friend: %w", err)
	}
	return nil
}

// GetFriend retrieves one friend row by its composite key.
func (s *SQLiteStore) GetFriend(ctx context.Context, ownerEmail, memberID string) (*models.Friend, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+friendColumns+" FROM account_friends WHERE owner_email = ? AND member_id = ?",
		ownerEmail, memberID,
	)
	friend, err := scanFriend(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friend: %w", err)
	}
	return friend, nil
}

// ListFriends returns every friend row owned by one viewer.
func (s *SQLiteStore) ListFriends(ctx context.Context, ownerEmail string) ([]models.Friend, error) {
	return s.listFriendsWhere(ctx, "owner_email = ?", ownerEmail)
}

// ListFriendsByMemberID returns friend rows across all owners for one member ID.
func (s *SQLiteStore) ListFriendsByMemberID(ctx context.Context, memberID string) ([]models.Friend, error) {
	return s.listFriendsWhere(ctx, "member_id = ?", memberID)
}

// LinkFriendRows binds every not-yet-linked row for memberID to the account.
// Nicknames equal to the account's real name are cleared, with the previous
// value kept in original_nickname for audit. Already-linked rows are left
// untouched so retries converge.
func (s *SQLiteStore) LinkFriendRows(ctx context.Context, memberID string, account *models.Account) (int64, error) {
	query := `
		UPDATE account_friends SET
			has_linked_account = 1,
			linked_account_id = ?,
			linked_account_email = ?,
			linked_member_id = ?,
			display_name = ?,
			original_nickname = CASE WHEN nickname = ? THEN nickname ELSE original_nickname END,
			nickname = CASE WHEN nickname = ? THEN '' ELSE nickname END,
			updated_at = ?
		WHERE member_id = ? AND has_linked_account = 0
	`
	res, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.CanonicalMemberID,
		account.DisplayName,
		account.DisplayName,
		account.DisplayName,
		time.Now().Unix(),
		memberID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to link friend rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteFriend removes one friend row.
func (s *SQLiteStore) DeleteFriend(ctx context.Context, ownerEmail, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM account_friends WHERE owner_email = ? AND member_id = ?",
		ownerEmail, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete friend: %w", err)
	}
	return nil
}

// DeleteFriendsByOwner removes a viewer's whole friend list.
func (s *SQLiteStore) DeleteFriendsByOwner(ctx context.Context, ownerEmail string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM account_friends WHERE owner_email = ?", ownerEmail,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete friend list: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UnlinkFriendsLinkedTo reverts every row linked to the email back to an
// unlinked placeholder. The linked_account_email index covers the common
// case; the linked_member_id clause is the defensive scan for legacy rows
// that never had the email recorded.
func (s *SQLiteStore) UnlinkFriendsLinkedTo(ctx context.Context, email string) (int64, error) {
	query := `
		UPDATE account_friends SET
			has_linked_account = 0,
			linked_account_id = '',
			linked_account_email = '',
			linked_member_id = '',
			updated_at = ?
		WHERE linked_account_email = ?
		   OR (linked_account_email = '' AND linked_member_id != '' AND linked_member_id IN
		       (SELECT canonical_member_id FROM accounts WHERE email = ?))
	`
	res, err := s.db.ExecContext(ctx, query, time.Now().Unix(), email, email)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink friend rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// MemberIDsLinkedTo returns the distinct linked member IDs recorded on rows
// linked to the email. Teardown uses them to locate alias edges when the
// account row itself no longer exists.
func (s *SQLiteStore) MemberIDsLinkedTo(ctx context.Context, email string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT linked_member_id FROM account_friends WHERE linked_account_email = ? AND linked_member_id != ''",
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked member IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan linked member ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate linked member IDs: %w", err)
	}
	return ids, nil
}

// SampleFriendRows returns a bounded page for the janitor.
func (s *SQLiteStore) SampleFriendRows(ctx context.Context, limit int) ([]models.Friend, error) {
	return s.listFriendsWhere(ctx, "1=1 ORDER BY updated_at LIMIT ?", limit)
}

func (s *SQLiteStore) listFriendsWhere(ctx context.Context, where string, args ...any) ([]models.Friend, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+friendColumns+" FROM account_friends WHERE "+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var friends []models.Friend
	for rows.Next() {
		friend, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, *friend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}
	return friends, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFriend(row scanner) (*models.Friend, error) {
	friend := &models.Friend{}
	err := row.Scan(
		&friend.OwnerEmail,
		&friend.MemberID,
		&friend.DisplayName,
		&friend.Nickname,
		&friend.OriginalNickname,
		&friend.HasLinkedAccount,
		&friend.LinkedAccountID,
		&friend.LinkedAccountEmail,
		&friend.LinkedMemberID,
		&friend.Status,
		&friend.CreatedAt,
		&friend.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return friend, nil
}

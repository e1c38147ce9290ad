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

// CreateGroup persists a group and its member snapshot.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, owner_email, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, group.OwnerEmail, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertGroupMembers(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group including its member snapshot.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, owner_email, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.OwnerEmail, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if err := s.loadGroupMembers(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroupsByOwner returns every group created by the owner.
func (s *SQLiteStore) ListGroupsByOwner(ctx context.Context, ownerEmail string) ([]models.Group, error) {
	return s.listGroupsWhere(ctx, "owner_email = ?", ownerEmail)
}

// UpdateGroup replaces the group row and its member snapshot.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE groups SET name = ? WHERE id = ?",
		group.Name, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ?", group.ID); err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}
	if err := insertGroupMembers(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; members cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListGroupsContainingMember returns groups whose snapshot contains the
// exact member ID. Equivalence resolution is the caller's job.
func (s *SQLiteStore) ListGroupsContainingMember(ctx context.Context, memberID string) ([]models.Group, error) {
	return s.listGroupsWhere(ctx,
		"id IN (SELECT group_id FROM group_members WHERE member_id = ?)", memberID)
}

// RenameGroupMember rewrites the snapshot *name* for memberID everywhere it
// appears. Member IDs are never touched.
func (s *SQLiteStore) RenameGroupMember(ctx context.Context, memberID, newName, linkedEmail string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE group_members SET name = ?, linked_email = ? WHERE member_id = ?",
		newName, linkedEmail, memberID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to rename group member: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UnlinkGroupMembers clears the linked email on every snapshot entry
// pointing at it. Names and member IDs stay.
func (s *SQLiteStore) UnlinkGroupMembers(ctx context.Context, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE group_members SET linked_email = '' WHERE linked_email = ?", email,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink group members: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SampleGroups returns a bounded page for the janitor.
func (s *SQLiteStore) SampleGroups(ctx context.Context, limit int) ([]models.Group, error) {
	return s.listGroupsWhere(ctx, "1=1 ORDER BY created_at LIMIT ?", limit)
}

func (s *SQLiteStore) listGroupsWhere(ctx context.Context, where string, args ...any) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, owner_email, created_at FROM groups WHERE "+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.OwnerEmail, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	for i := range groups {
		if err := s.loadGroupMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *SQLiteStore) loadGroupMembers(ctx context.Context, group *models.Group) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, name, linked_email FROM group_members WHERE group_id = ? ORDER BY member_id",
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.MemberID, &m.Name, &m.LinkedEmail); err != nil {
			return fmt.Errorf("failed to scan group member: %w", err)
		}
		group.Members = append(group.Members, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate group members: %w", err)
	}
	return nil
}

func insertGroupMembers(ctx context.Context, tx *sql.Tx, group *models.Group) error {
	for i := range group.Members {
		m := &group.Members[i]
		if m.MemberID == "" {
			m.MemberID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, member_id, name, linked_email) VALUES (?, ?, ?, ?)",
			group.ID, m.MemberID, m.Name, m.LinkedEmail,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}
	return nil
}

package sqlite

import (
	"context"
	"fmt"
	"time"
)

// ListFanoutUserIDs returns the current viewer set for an expense.
func (s *SQLiteStore) ListFanoutUserIDs(ctx context.Context, expenseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM user_expenses WHERE expense_id = ? ORDER BY user_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fanout rows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan fanout row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fanout rows: %w", err)
	}
	return ids, nil
}

// InsertFanoutRow adds one (viewer, expense) pair. Idempotent.
func (s *SQLiteStore) InsertFanoutRow(ctx context.Context, userID, expenseID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO user_expenses (user_id, expense_id, updated_at) VALUES (?, ?, ?)",
		userID, expenseID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fanout row: %w", err)
	}
	return nil
}

// DeleteFanoutRow removes one (viewer, expense) pair.
func (s *SQLiteStore) DeleteFanoutRow(ctx context.Context, userID, expenseID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_expenses WHERE user_id = ? AND expense_id = ?",
		userID, expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete fanout row: %w", err)
	}
	return nil
}

// DeleteFanoutByExpense removes every fan-out row for an expense.
func (s *SQLiteStore) DeleteFanoutByExpense(ctx context.Context, expenseID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_expenses WHERE expense_id = ?", expenseID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fanout rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteFanoutByUser removes every fan-out row for a viewer.
func (s *SQLiteStore) DeleteFanoutByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_expenses WHERE user_id = ?", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fanout rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListExpenseIDsForUser returns the viewer's expense list, newest first.
func (s *SQLiteStore) ListExpenseIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT expense_id FROM user_expenses WHERE user_id = ? ORDER BY updated_at DESC, expense_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user expense: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user expenses: %w", err)
	}
	return ids, nil
}

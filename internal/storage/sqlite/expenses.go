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

// CreateExpense persists an expense with its participant snapshot and
// visibility list.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses (id, group_id, description, amount, payer_member_id, owner_email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.GroupID, expense.Description, expense.Amount,
		expense.PayerMemberID, expense.OwnerEmail, expense.CreatedAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertExpenseChildren(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense including participants and visibility list.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, description, amount, payer_member_id, owner_email, created_at, updated_at FROM expenses WHERE id = ?",
		expenseID,
	).Scan(
		&expense.ID, &expense.GroupID, &expense.Description, &expense.Amount,
		&expense.PayerMemberID, &expense.OwnerEmail, &expense.CreatedAt, &expense.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadExpenseChildren(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense replaces the expense row and both child sets.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET description = ?, amount = ?, payer_member_id = ?, updated_at = ? WHERE id = ?",
		expense.Description, expense.Amount, expense.PayerMemberID, expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM expense_participants WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM expense_emails WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to clear visibility list: %w", err)
	}
	if err := insertExpenseChildren(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense; children cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListExpensesInvolvingMember returns expenses whose participant snapshot
// contains the exact member ID.
func (s *SQLiteStore) ListExpensesInvolvingMember(ctx context.Context, memberID string) ([]models.Expense, error) {
	return s.listExpensesWhere(ctx,
		"id IN (SELECT expense_id FROM expense_participants WHERE member_id = ?)", memberID)
}

// ListExpensesByOwner returns standalone expenses recorded by the owner.
func (s *SQLiteStore) ListExpensesByOwner(ctx context.Context, ownerEmail string) ([]models.Expense, error) {
	return s.listExpensesWhere(ctx, "owner_email = ? AND group_id = ''", ownerEmail)
}

// ListExpensesByGroup returns a group's expenses.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	return s.listExpensesWhere(ctx, "group_id = ?", groupID)
}

// ListExpenseIDs returns every expense ID.
func (s *SQLiteStore) ListExpenseIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM expenses ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list expense ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense ids: %w", err)
	}
	return ids, nil
}

// AddExpenseVisibility adds an email to the visibility list. Idempotent.
func (s *SQLiteStore) AddExpenseVisibility(ctx context.Context, expenseID, email string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO expense_emails (expense_id, email) VALUES (?, ?)",
		expenseID, email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add expense visibility: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveExpenseVisibility strips the email from every visibility list.
func (s *SQLiteStore) RemoveExpenseVisibility(ctx context.Context, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM expense_emails WHERE email = ?", email,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove expense visibility: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LinkExpenseParticipants records the linked email on every participant
// snapshot entry for memberID.
func (s *SQLiteStore) LinkExpenseParticipants(ctx context.Context, memberID string, account *models.Account) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE expense_participants SET linked_email = ? WHERE member_id = ?",
		account.Email, memberID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to link expense participants: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) listExpensesWhere(ctx context.Context, where string, args ...any) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, description, amount, payer_member_id, owner_email, created_at, updated_at FROM expenses WHERE "+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount,
			&e.PayerMemberID, &e.OwnerEmail, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		if err := s.loadExpenseChildren(ctx, &expenses[i]); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func (s *SQLiteStore) loadExpenseChildren(ctx context.Context, expense *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, name, share, linked_email FROM expense_participants WHERE expense_id = ? ORDER BY member_id",
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	for rows.Next() {
		var p models.ExpenseParticipant
		if err := rows.Scan(&p.MemberID, &p.Name, &p.Share, &p.LinkedEmail); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		expense.Participants = append(expense.Participants, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}

	emailRows, err := s.db.QueryContext(ctx,
		"SELECT email FROM expense_emails WHERE expense_id = ? ORDER BY email",
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get visibility list: %w", err)
	}
	defer emailRows.Close()

	for emailRows.Next() {
		var email string
		if err := emailRows.Scan(&email); err != nil {
			return fmt.Errorf("failed to scan visibility email: %w", err)
		}
		expense.ParticipantEmails = append(expense.ParticipantEmails, email)
	}
	if err := emailRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate visibility emails: %w", err)
	}
	return nil
}

func insertExpenseChildren(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for i := range expense.Participants {
		p := &expense.Participants[i]
		if p.MemberID == "" {
			p.MemberID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, member_id, name, share, linked_email) VALUES (?, ?, ?, ?, ?)",
			expense.ID, p.MemberID, p.Name, p.Share, p.LinkedEmail,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	for _, email := range expense.ParticipantEmails {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO expense_emails (expense_id, email) VALUES (?, ?)",
			expense.ID, email,
		)
		if err != nil {
			return fmt.Errorf("failed to insert visibility email: %w", err)
		}
	}
	return nil
}

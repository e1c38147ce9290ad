package models

// ExpenseParticipant is one entry in an expense's embedded participant
// snapshot. As with group members, the MemberID is never rewritten after an
// alias is created; only linkage fields and names change.
type ExpenseParticipant struct {
	// MemberID identifies the participant (placeholder or canonical).
	MemberID string

	// Name is the display name snapshot.
	Name string

	// Share is the amount this participant owes for the expense.
	Share float64

	// LinkedEmail is the email of the linked account, if any.
	LinkedEmail string
}

// Expense represents one shared expense. ParticipantEmails is the
// denormalized visibility list driving the per-user fan-out index.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the owning group, or empty for a standalone expense.
	GroupID string

	// Description is the human-readable label.
	Description string

	// Amount is the total amount of the expense.
	Amount float64

	// PayerMemberID is the member ID of whoever paid.
	PayerMemberID string

	// Participants is the embedded participant snapshot.
	Participants []ExpenseParticipant

	// ParticipantEmails lists account emails that should see this expense.
	ParticipantEmails []string

	// OwnerEmail is the email of the account that recorded the expense.
	OwnerEmail string

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last change.
	UpdatedAt int64
}

// FanoutRow is one (viewer, expense) pair in the materialized per-user
// expense index. The full set for an expense must equal the accounts
// resolvable from its participant list at last reconciliation.
type FanoutRow struct {
	UserID    string
	ExpenseID string
	UpdatedAt int64
}

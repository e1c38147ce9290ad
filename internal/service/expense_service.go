package service

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divvyup/divvy/internal/calculator"
	"github.com/divvyup/divvy/internal/fanout"
	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// ExpenseService manages expenses. Every write is followed by a fan-out
// reconciliation so the per-user expense index tracks the participant list.
type ExpenseService struct {
	store      storage.Store
	reconciler *fanout.Reconciler
}

// NewExpenseService creates a new expense service.
func NewExpenseService(store storage.Store, reconciler *fanout.Reconciler) *ExpenseService {
	return &ExpenseService{
		store:      store,
		reconciler: reconciler,
	}
}

type participantBody struct {
	MemberID    string  `json:"member_id,omitempty"`
	Name        string  `json:"name"`
	Share       float64 `json:"share,omitempty"`
	LinkedEmail string  `json:"linked_email,omitempty"`
}

type expenseRequest struct {
	GroupID       string            `json:"group_id,omitempty"`
	Description   string            `json:"description"`
	Amount        float64           `json:"amount"`
	PayerMemberID string            `json:"payer_member_id"`
	Participants  []participantBody `json:"participants"`

	// SplitEqually replaces any provided shares with an equal split of the
	// total amount.
	SplitEqually bool `json:"split_equally,omitempty"`
}

type expenseBody struct {
	ID            string            `json:"id"`
	GroupID       string            `json:"group_id,omitempty"`
	Description   string            `json:"description"`
	Amount        float64           `json:"amount"`
	PayerMemberID string            `json:"payer_member_id"`
	Participants  []participantBody `json:"participants"`
	CreatedAt     int64             `json:"created_at"`
	UpdatedAt     int64             `json:"updated_at"`
}

// Create records an expense and reconciles its visibility fan-out.
func (s *ExpenseService) Create(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	expense, err := s.expenseFromRequest(&req, email)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	expense.ID = uuid.New().String()
	now := time.Now().Unix()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	if err := s.store.CreateExpense(r.Context(), expense); err != nil {
		slog.Error("Failed to create expense", "owner", email, "error", err)
		respondError(w, err)
		return
	}
	if err := s.reconciler.ReconcileExpense(r.Context(), expense.ID); err != nil {
		slog.Error("Fan-out reconciliation failed", "expense_id", expense.ID, "error", err)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "owner", email, "amount", expense.Amount)
	respondJSON(w, http.StatusCreated, toExpenseBody(expense))
}

// Get returns one expense visible to the caller.
func (s *ExpenseService) Get(w http.ResponseWriter, r *http.Request) {
	expense, err := s.authorizedExpense(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toExpenseBody(expense))
}

// List returns the expenses visible to the caller, newest activity first,
// served from the materialized per-user index.
func (s *ExpenseService) List(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	ids, err := s.store.ListExpenseIDsForUser(r.Context(), accountID)
	if err != nil {
		slog.Error("Failed to list visible expenses", "account_id", accountID, "error", err)
		respondError(w, err)
		return
	}

	bodies := make([]expenseBody, 0, len(ids))
	for _, id := range ids {
		expense, err := s.store.GetExpense(r.Context(), id)
		if err != nil {
			// A stale index row can outlive its expense briefly; skip it.
			slog.Warn("Indexed expense missing", "expense_id", id, "error", err)
			continue
		}
		bodies = append(bodies, toExpenseBody(expense))
	}
	respondJSON(w, http.StatusOK, map[string][]expenseBody{"expenses": bodies})
}

// Update replaces an expense and re-reconciles the fan-out, adding index rows
// for new participants and removing rows for dropped ones.
func (s *ExpenseService) Update(w http.ResponseWriter, r *http.Request) {
	existing, err := s.authorizedExpense(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	expense, err := s.expenseFromRequest(&req, existing.OwnerEmail)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	expense.ID = existing.ID
	expense.CreatedAt = existing.CreatedAt
	expense.UpdatedAt = time.Now().Unix()
	if expense.GroupID == "" {
		expense.GroupID = existing.GroupID
	}

	if err := s.store.UpdateExpense(r.Context(), expense); err != nil {
		slog.Error("Failed to update expense", "expense_id", expense.ID, "error", err)
		respondError(w, err)
		return
	}
	if err := s.reconciler.ReconcileExpense(r.Context(), expense.ID); err != nil {
		slog.Error("Fan-out reconciliation failed", "expense_id", expense.ID, "error", err)
	}
	respondJSON(w, http.StatusOK, toExpenseBody(expense))
}

// Delete removes an expense and its fan-out rows.
func (s *ExpenseService) Delete(w http.ResponseWriter, r *http.Request) {
	expense, err := s.authorizedExpense(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if _, err := s.store.DeleteFanoutByExpense(r.Context(), expense.ID); err != nil {
		slog.Error("Failed to clear expense fan-out", "expense_id", expense.ID, "error", err)
		respondError(w, err)
		return
	}
	if err := s.store.DeleteExpense(r.Context(), expense.ID); err != nil {
		slog.Error("Failed to delete expense", "expense_id", expense.ID, "error", err)
		respondError(w, err)
		return
	}
	slog.Info("Expense deleted", "expense_id", expense.ID)
	w.WriteHeader(http.StatusNoContent)
}

// expenseFromRequest validates the payload and builds the expense model,
// applying an equal split when requested or when no shares were provided.
func (s *ExpenseService) expenseFromRequest(req *expenseRequest, ownerEmail string) (*models.Expense, error) {
	if req.Description == "" {
		return nil, errors.New("description is required")
	}
	if req.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if len(req.Participants) == 0 {
		return nil, errors.New("at least one participant is required")
	}
	payer := identity.Normalize(req.PayerMemberID)
	if payer == "" {
		return nil, errors.New("payer_member_id is required")
	}

	splitEqually := req.SplitEqually
	if !splitEqually {
		total := 0.0
		for _, p := range req.Participants {
			total += p.Share
		}
		if total == 0 {
			splitEqually = true
		}
	}

	var shares []float64
	if splitEqually {
		var err error
		shares, err = calculator.EqualShares(req.Amount, len(req.Participants))
		if err != nil {
			return nil, err
		}
	}

	participants := make([]models.ExpenseParticipant, 0, len(req.Participants))
	emails := make([]string, 0, len(req.Participants)+1)
	emails = append(emails, ownerEmail)
	for i, p := range req.Participants {
		id := identity.Normalize(p.MemberID)
		if id == "" {
			id = uuid.New().String()
		}
		share := p.Share
		if splitEqually {
			share = shares[i]
		}
		participants = append(participants, models.ExpenseParticipant{
			MemberID:    id,
			Name:        p.Name,
			Share:       share,
			LinkedEmail: p.LinkedEmail,
		})
		if p.LinkedEmail != "" {
			emails = append(emails, p.LinkedEmail)
		}
	}

	return &models.Expense{
		GroupID:           req.GroupID,
		Description:       req.Description,
		Amount:            req.Amount,
		PayerMemberID:     payer,
		Participants:      participants,
		ParticipantEmails: identity.NormalizeSet(emails),
		OwnerEmail:        ownerEmail,
	}, nil
}

// authorizedExpense loads the expense from the URL and checks the caller owns
// it or appears in its visibility list.
func (s *ExpenseService) authorizedExpense(r *http.Request) (*models.Expense, error) {
	_, email, err := caller(r)
	if err != nil {
		return nil, err
	}

	expenseID := chi.URLParam(r, "expenseID")
	expense, err := s.store.GetExpense(r.Context(), expenseID)
	if err != nil {
		return nil, err
	}
	if expense.OwnerEmail == email {
		return expense, nil
	}
	for _, e := range expense.ParticipantEmails {
		if e == email {
			return expense, nil
		}
	}
	return nil, storage.ErrNotFound
}

func toExpenseBody(expense *models.Expense) expenseBody {
	participants := make([]participantBody, 0, len(expense.Participants))
	for _, p := range expense.Participants {
		participants = append(participants, participantBody{
			MemberID:    p.MemberID,
			Name:        p.Name,
			Share:       p.Share,
			LinkedEmail: p.LinkedEmail,
		})
	}
	return expenseBody{
		ID:            expense.ID,
		GroupID:       expense.GroupID,
		Description:   expense.Description,
		Amount:        expense.Amount,
		PayerMemberID: expense.PayerMemberID,
		Participants:  participants,
		CreatedAt:     expense.CreatedAt,
		UpdatedAt:     expense.UpdatedAt,
	}
}

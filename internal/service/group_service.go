package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divvyup/divvy/internal/calculator"
	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// GroupService manages groups and computes group balances. Balances are
// keyed by canonical member ID so expenses recorded against a placeholder
// and expenses recorded against the claimed account aggregate together.
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a new group service.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

type groupMemberBody struct {
	MemberID    string `json:"member_id,omitempty"`
	Name        string `json:"name"`
	LinkedEmail string `json:"linked_email,omitempty"`
}

type groupRequest struct {
	Name    string            `json:"name"`
	Members []groupMemberBody `json:"members"`
}

type groupBody struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Members   []groupMemberBody `json:"members"`
	CreatedAt int64             `json:"created_at"`
}

// Create creates a group. Members without a member_id get a generated
// placeholder ID.
func (s *GroupService) Create(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		respondBadRequest(w, "name is required")
		return
	}
	if len(req.Members) == 0 {
		respondBadRequest(w, "at least one member is required")
		return
	}

	group := &models.Group{
		ID:         uuid.New().String(),
		Name:       req.Name,
		OwnerEmail: email,
		Members:    toGroupMembers(req.Members),
		CreatedAt:  time.Now().Unix(),
	}
	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		slog.Error("Failed to create group", "owner", email, "error", err)
		respondError(w, err)
		return
	}

	slog.Info("Group created", "group_id", group.ID, "owner", email, "members", len(group.Members))
	respondJSON(w, http.StatusCreated, toGroupBody(group))
}

// Get returns one group the caller owns or belongs to.
func (s *GroupService) Get(w http.ResponseWriter, r *http.Request) {
	group, err := s.authorizedGroup(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toGroupBody(group))
}

// List returns the caller's groups.
func (s *GroupService) List(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	groups, err := s.store.ListGroupsByOwner(r.Context(), email)
	if err != nil {
		slog.Error("Failed to list groups", "owner", email, "error", err)
		respondError(w, err)
		return
	}

	bodies := make([]groupBody, 0, len(groups))
	for i := range groups {
		bodies = append(bodies, toGroupBody(&groups[i]))
	}
	respondJSON(w, http.StatusOK, map[string][]groupBody{"groups": bodies})
}

// Update replaces a group's name and member snapshot.
func (s *GroupService) Update(w http.ResponseWriter, r *http.Request) {
	group, err := s.authorizedGroup(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.Name != "" {
		group.Name = req.Name
	}
	if len(req.Members) > 0 {
		group.Members = toGroupMembers(req.Members)
	}

	if err := s.store.UpdateGroup(r.Context(), group); err != nil {
		slog.Error("Failed to update group", "group_id", group.ID, "error", err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toGroupBody(group))
}

// Delete removes a group. Expenses in the group are left for the cascade
// deleter; group deletion alone does not erase spending history.
func (s *GroupService) Delete(w http.ResponseWriter, r *http.Request) {
	group, err := s.authorizedGroup(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.store.DeleteGroup(r.Context(), group.ID); err != nil {
		slog.Error("Failed to delete group", "group_id", group.ID, "error", err)
		respondError(w, err)
		return
	}
	slog.Info("Group deleted", "group_id", group.ID)
	w.WriteHeader(http.StatusNoContent)
}

type balanceBody struct {
	MemberID   string  `json:"member_id"`
	NetBalance float64 `json:"net_balance"`
	TotalPaid  float64 `json:"total_paid"`
	TotalOwed  float64 `json:"total_owed"`
}

type debtBody struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type balancesResponse struct {
	Balances    []balanceBody `json:"balances"`
	Settlements []debtBody    `json:"settlements"`
}

// Balances computes per-member balances for a group. Every payer and
// participant ID is first resolved to its canonical form so amounts recorded
// under a placeholder merge with amounts recorded under the linked account.
func (s *GroupService) Balances(w http.ResponseWriter, r *http.Request) {
	group, err := s.authorizedGroup(r)
	if err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.store.ListExpensesByGroup(r.Context(), group.ID)
	if err != nil {
		slog.Error("Failed to list group expenses", "group_id", group.ID, "error", err)
		respondError(w, err)
		return
	}

	input := make([]calculator.ExpenseForBalance, 0, len(expenses))
	for _, exp := range expenses {
		payer, err := identity.ResolveCanonical(r.Context(), s.store, exp.PayerMemberID)
		if err != nil {
			respondError(w, err)
			return
		}
		shares := make(map[string]float64, len(exp.Participants))
		for _, p := range exp.Participants {
			canonical, err := identity.ResolveCanonical(r.Context(), s.store, p.MemberID)
			if err != nil {
				respondError(w, err)
				return
			}
			shares[canonical] += p.Share
		}
		input = append(input, calculator.ExpenseForBalance{
			PayerID: payer,
			Amount:  exp.Amount,
			Shares:  shares,
		})
	}

	balances, debts := calculator.CalculateGroupBalances(input)
	resp := balancesResponse{
		Balances:    make([]balanceBody, 0, len(balances)),
		Settlements: make([]debtBody, 0, len(debts)),
	}
	for _, b := range balances {
		resp.Balances = append(resp.Balances, balanceBody{
			MemberID:   b.MemberID,
			NetBalance: b.NetBalance,
			TotalPaid:  b.TotalPaid,
			TotalOwed:  b.TotalOwed,
		})
	}
	for _, d := range debts {
		resp.Settlements = append(resp.Settlements, debtBody{From: d.From, To: d.To, Amount: d.Amount})
	}
	respondJSON(w, http.StatusOK, resp)
}

// authorizedGroup loads the group from the URL and checks the caller owns it
// or appears in its member snapshot through any equivalent member ID.
func (s *GroupService) authorizedGroup(r *http.Request) (*models.Group, error) {
	accountID, email, err := caller(r)
	if err != nil {
		return nil, err
	}

	groupID := chi.URLParam(r, "groupID")
	group, err := s.store.GetGroup(r.Context(), groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerEmail == email {
		return group, nil
	}

	account, err := s.store.GetAccountByID(r.Context(), accountID)
	if err != nil {
		return nil, err
	}
	ids, err := identity.EquivalentIDs(r.Context(), s.store, account.CanonicalMemberID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if group.HasMemberID(id) {
			return group, nil
		}
	}
	for _, m := range group.Members {
		if m.LinkedEmail == email {
			return group, nil
		}
	}
	return nil, storage.ErrNotFound
}

func toGroupMembers(bodies []groupMemberBody) []models.GroupMember {
	members := make([]models.GroupMember, 0, len(bodies))
	for _, m := range bodies {
		id := identity.Normalize(m.MemberID)
		if id == "" {
			id = uuid.New().String()
		}
		members = append(members, models.GroupMember{
			MemberID:    id,
			Name:        m.Name,
			LinkedEmail: m.LinkedEmail,
		})
	}
	return members
}

func toGroupBody(group *models.Group) groupBody {
	members := make([]groupMemberBody, 0, len(group.Members))
	for _, m := range group.Members {
		members = append(members, groupMemberBody{
			MemberID:    m.MemberID,
			Name:        m.Name,
			LinkedEmail: m.LinkedEmail,
		})
	}
	return groupBody{
		ID:        group.ID,
		Name:      group.Name,
		Members:   members,
		CreatedAt: group.CreatedAt,
	}
}

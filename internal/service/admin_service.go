package service

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/divvyup/divvy/internal/cleanup"
	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/janitor"
	"github.com/divvyup/divvy/internal/storage"
)

// AdminService hosts account deletion and the operator entry points. Self
// deletion is soft: shared history survives and the deleted person's rows in
// other lists become unlinked placeholders again. The admin hard delete and
// the janitor erase everything the account owned.
type AdminService struct {
	store   storage.Store
	deleter *cleanup.Deleter
	janitor *janitor.Janitor
}

// NewAdminService creates a new admin service.
func NewAdminService(store storage.Store, deleter *cleanup.Deleter, jan *janitor.Janitor) *AdminService {
	return &AdminService{
		store:   store,
		deleter: deleter,
		janitor: jan,
	}
}

// DeleteSelf removes the calling account while preserving shared history.
func (s *AdminService) DeleteSelf(w http.ResponseWriter, r *http.Request) {
	accountID, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	account, err := s.store.GetAccountByID(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}

	slog.Info("Self delete request", "account_id", accountID, "email", email)

	counts, err := s.deleter.SelfDelete(r.Context(), account)
	if err != nil {
		slog.Error("Self delete failed", "account_id", accountID, "error", err)
		respondError(w, err)
		return
	}

	slog.Info("Account deleted",
		"account_id", accountID,
		"friends_deleted", counts.FriendsDeleted,
		"friends_unlinked", counts.FriendsUnlinked)
	respondJSON(w, http.StatusOK, counts)
}

// HardDelete erases an account and everything it owned, including groups,
// expenses, alias edges, and invites. Works for emails with no surviving
// account row, which is how orphaned references get purged by hand.
func (s *AdminService) HardDelete(w http.ResponseWriter, r *http.Request) {
	email := identity.Normalize(chi.URLParam(r, "email"))
	if email == "" {
		respondBadRequest(w, "email is required")
		return
	}

	slog.Info("Hard delete request", "email", email)

	counts, err := s.deleter.HardDelete(r.Context(), email)
	if err != nil {
		slog.Error("Hard delete failed", "email", email, "error", err)
		respondError(w, err)
		return
	}

	slog.Info("Account hard-deleted",
		"email", email,
		"groups_deleted", counts.GroupsDeleted,
		"expenses_deleted", counts.ExpensesDeleted,
		"alias_edges_deleted", counts.AliasEdgesDeleted)
	respondJSON(w, http.StatusOK, counts)
}

// RunJanitor triggers one janitor sweep immediately and returns its report.
func (s *AdminService) RunJanitor(w http.ResponseWriter, r *http.Request) {
	slog.Info("Manual janitor run requested")

	report, err := s.janitor.RunOnce(r.Context())
	if err != nil {
		slog.Error("Janitor run failed", "error", err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

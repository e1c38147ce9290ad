package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// FriendService manages a viewer's friend list. Reads go through the
// deduplicator so rows that resolve to the same person appear once.
type FriendService struct {
	store  storage.Store
	dedupe *identity.Deduplicator
}

// NewFriendService creates a new friend service.
func NewFriendService(store storage.Store, dedupe *identity.Deduplicator) *FriendService {
	return &FriendService{
		store:  store,
		dedupe: dedupe,
	}
}

type friendBody struct {
	MemberID           string   `json:"member_id"`
	DisplayName        string   `json:"display_name"`
	Nickname           string   `json:"nickname,omitempty"`
	HasLinkedAccount   bool     `json:"has_linked_account"`
	LinkedAccountID    string   `json:"linked_account_id,omitempty"`
	LinkedAccountEmail string   `json:"linked_account_email,omitempty"`
	AliasMemberIDs     []string `json:"alias_member_ids,omitempty"`
	UpdatedAt          int64    `json:"updated_at"`
}

type listFriendsResponse struct {
	Friends []friendBody `json:"friends"`
}

// List returns the caller's deduplicated friend list.
func (s *FriendService) List(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	views, err := s.dedupe.ListFriends(r.Context(), email)
	if err != nil {
		slog.Error("Failed to list friends", "owner", email, "error", err)
		respondError(w, err)
		return
	}

	friends := make([]friendBody, 0, len(views))
	for _, v := range views {
		friends = append(friends, friendBody{
			MemberID:           v.MemberID,
			DisplayName:        v.DisplayName,
			Nickname:           v.Nickname,
			HasLinkedAccount:   v.HasLinkedAccount,
			LinkedAccountID:    v.LinkedAccountID,
			LinkedAccountEmail: v.LinkedAccountEmail,
			AliasMemberIDs:     v.AliasMemberIDs,
			UpdatedAt:          v.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, listFriendsResponse{Friends: friends})
}

type addFriendRequest struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname,omitempty"`
}

// Add creates an unlinked placeholder friend row. The generated member ID can
// later be bound to a real account through an invite claim or a merge.
func (s *FriendService) Add(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req addFriendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.DisplayName == "" {
		respondBadRequest(w, "display_name is required")
		return
	}

	now := time.Now().Unix()
	row := &models.Friend{
		OwnerEmail:  email,
		MemberID:    uuid.New().String(),
		DisplayName: req.DisplayName,
		Nickname:    req.Nickname,
		Status:      string(models.FriendStatusFriend),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.UpsertFriend(r.Context(), row); err != nil {
		slog.Error("Failed to add friend", "owner", email, "error", err)
		respondError(w, err)
		return
	}

	slog.Info("Friend added", "owner", email, "member_id", row.MemberID)
	respondJSON(w, http.StatusCreated, friendBody{
		MemberID:    row.MemberID,
		DisplayName: row.DisplayName,
		Nickname:    row.Nickname,
		UpdatedAt:   row.UpdatedAt,
	})
}

// Remove deletes one of the caller's friend rows.
func (s *FriendService) Remove(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	memberID := identity.Normalize(chi.URLParam(r, "memberID"))
	if memberID == "" {
		respondBadRequest(w, "member ID is required")
		return
	}

	if err := s.store.DeleteFriend(r.Context(), email, memberID); err != nil {
		slog.Error("Failed to remove friend", "owner", email, "member_id", memberID, "error", err)
		respondError(w, err)
		return
	}

	slog.Info("Friend removed", "owner", email, "member_id", memberID)
	w.WriteHeader(http.StatusNoContent)
}

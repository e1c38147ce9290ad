package service

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/metrics"
	"github.com/divvyup/divvy/internal/middleware"
	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

// InviteService issues invite tokens for placeholder members, serves the
// anonymous preview, and runs the claim pipeline.
type InviteService struct {
	store    storage.Store
	pipeline *identity.ClaimPipeline
	ttl      time.Duration
}

// NewInviteService creates a new invite service. ttl bounds how long issued
// tokens stay claimable.
func NewInviteService(store storage.Store, pipeline *identity.ClaimPipeline, ttl time.Duration) *InviteService {
	return &InviteService{
		store:    store,
		pipeline: pipeline,
		ttl:      ttl,
	}
}

type createInviteRequest struct {
	TargetMemberID string `json:"target_member_id"`
}

type inviteBody struct {
	Token          string `json:"token"`
	TargetMemberID string `json:"target_member_id"`
	TargetName     string `json:"target_name"`
	CreatorEmail   string `json:"creator_email"`
	Claimed        bool   `json:"claimed"`
	ExpiresAt      int64  `json:"expires_at"`
	CreatedAt      int64  `json:"created_at"`
}

// Create issues an invite token for one of the caller's unlinked friend rows.
func (s *InviteService) Create(w http.ResponseWriter, r *http.Request) {
	accountID, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req createInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	targetID := identity.Normalize(req.TargetMemberID)
	if targetID == "" {
		respondBadRequest(w, "target_member_id is required")
		return
	}

	friend, err := s.store.GetFriend(r.Context(), email, targetID)
	if err != nil {
		slog.Warn("Invite target not in creator's friend list", "creator", email, "target", targetID, "error", err)
		respondError(w, err)
		return
	}
	if friend.HasLinkedAccount {
		respondError(w, storage.ErrAlreadyLinked)
		return
	}

	now := time.Now()
	token := &models.InviteToken{
		ID:               uuid.New().String(),
		CreatorAccountID: accountID,
		CreatorEmail:     email,
		TargetMemberID:   targetID,
		TargetName:       friend.DisplayName,
		ExpiresAt:        now.Add(s.ttl).Unix(),
		CreatedAt:        now.Unix(),
	}
	if err := s.store.CreateInvite(r.Context(), token); err != nil {
		slog.Error("Failed to create invite", "creator", email, "target", targetID, "error", err)
		respondError(w, err)
		return
	}

	slog.Info("Invite created", "token", token.ID, "creator", email, "target", targetID)
	respondJSON(w, http.StatusCreated, toInviteBody(token))
}

// Preview returns what a token is for without requiring authentication, so
// the landing page can show "Alice invited you to be Bob" before sign-up.
// Expired and claimed tokens still preview; only Claim rejects them.
func (s *InviteService) Preview(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "token")
	if tokenID == "" {
		respondBadRequest(w, "token is required")
		return
	}

	token, err := s.store.GetInvite(r.Context(), tokenID)
	if err != nil {
		respondError(w, err)
		return
	}

	body := toInviteBody(token)
	// The anonymous view never exposes the creator's email.
	if middleware.GetAccountID(r.Context()) == "" {
		body.CreatorEmail = ""
	}
	respondJSON(w, http.StatusOK, body)
}

type claimResponse struct {
	CanonicalMemberID  string   `json:"canonical_member_id"`
	AliasMemberIDs     []string `json:"alias_member_ids"`
	FriendsLinked      int64    `json:"friends_linked"`
	GroupsRenamed      int64    `json:"groups_renamed"`
	ExpensesBackfilled int64    `json:"expenses_backfilled"`
}

// Claim binds the invite's placeholder to the calling account and fans the
// linkage out across friend rows, group snapshots, and expense visibility.
func (s *InviteService) Claim(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	tokenID := chi.URLParam(r, "token")
	if tokenID == "" {
		respondBadRequest(w, "token is required")
		return
	}

	claimer, err := s.store.GetAccountByID(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}

	slog.Info("Claim request", "token", tokenID, "claimer", claimer.ID)

	result, err := s.pipeline.Claim(r.Context(), tokenID, claimer)
	if err != nil {
		metrics.ClaimsTotal.WithLabelValues(claimFailureLabel(err)).Inc()
		slog.Error("Claim failed", "token", tokenID, "claimer", claimer.ID, "error", err)
		respondError(w, err)
		return
	}

	metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
	slog.Info("Invite claimed",
		"token", tokenID,
		"claimer", claimer.ID,
		"friends_linked", result.FriendsLinked,
		"groups_renamed", result.GroupsRenamed,
		"expenses_backfilled", result.ExpensesBackfilled)
	respondJSON(w, http.StatusOK, claimResponse{
		CanonicalMemberID:  result.CanonicalMemberID,
		AliasMemberIDs:     result.AliasMemberIDs,
		FriendsLinked:      result.FriendsLinked,
		GroupsRenamed:      result.GroupsRenamed,
		ExpensesBackfilled: result.ExpensesBackfilled,
	})
}

func claimFailureLabel(err error) string {
	switch {
	case errors.Is(err, storage.ErrExpired):
		return "expired"
	case errors.Is(err, storage.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, storage.ErrSelfClaim):
		return "self_claim"
	case errors.Is(err, storage.ErrAlreadyLinked):
		return "already_linked"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func toInviteBody(token *models.InviteToken) inviteBody {
	return inviteBody{
		Token:          token.ID,
		TargetMemberID: token.TargetMemberID,
		TargetName:     token.TargetName,
		CreatorEmail:   token.CreatorEmail,
		Claimed:        token.Claimed(),
		ExpiresAt:      token.ExpiresAt,
		CreatedAt:      token.CreatedAt,
	}
}

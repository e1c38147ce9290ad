package service

import (
	"log/slog"
	"net/http"

	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/metrics"
	"github.com/divvyup/divvy/internal/storage"
)

// IdentityService exposes canonical ID resolution and the two merge
// operations: linking an arbitrary member ID into a canonical one, and
// collapsing two unlinked friend rows.
type IdentityService struct {
	store  storage.Store
	merger *identity.Merger
}

// NewIdentityService creates a new identity service.
func NewIdentityService(store storage.Store, merger *identity.Merger) *IdentityService {
	return &IdentityService{
		store:  store,
		merger: merger,
	}
}

type resolveResponse struct {
	MemberID      string   `json:"member_id"`
	CanonicalID   string   `json:"canonical_id"`
	EquivalentIDs []string `json:"equivalent_ids"`
}

// Resolve walks the alias graph from a member ID to its canonical ID and
// returns the full equivalence set.
func (s *IdentityService) Resolve(w http.ResponseWriter, r *http.Request) {
	memberID := identity.Normalize(r.URL.Query().Get("member_id"))
	if memberID == "" {
		respondBadRequest(w, "member_id is required")
		return
	}

	canonical, err := identity.ResolveCanonical(r.Context(), s.store, memberID)
	if err != nil {
		slog.Error("Failed to resolve member ID", "member_id", memberID, "error", err)
		respondError(w, err)
		return
	}

	equivalents, err := identity.EquivalentIDs(r.Context(), s.store, memberID)
	if err != nil {
		slog.Error("Failed to list equivalent IDs", "member_id", memberID, "error", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resolveResponse{
		MemberID:      memberID,
		CanonicalID:   canonical,
		EquivalentIDs: equivalents,
	})
}

type mergeRequest struct {
	SourceMemberID string `json:"source_member_id"`
	TargetMemberID string `json:"target_member_id"`
}

type mergeResponse struct {
	CanonicalID    string `json:"canonical_id"`
	AlreadyExisted bool   `json:"already_existed"`
}

// Merge records that source_member_id refers to the same person as
// target_member_id. Repeating an identical merge is a no-op.
func (s *IdentityService) Merge(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req mergeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.SourceMemberID == "" || req.TargetMemberID == "" {
		respondBadRequest(w, "source_member_id and target_member_id are required")
		return
	}

	slog.Info("Merge request", "source", req.SourceMemberID, "target", req.TargetMemberID, "actor", email)

	result, err := s.merger.MergeIDs(r.Context(), req.SourceMemberID, req.TargetMemberID, email)
	if err != nil {
		metrics.MergesTotal.WithLabelValues("error").Inc()
		slog.Error("Merge failed", "source", req.SourceMemberID, "target", req.TargetMemberID, "error", err)
		respondError(w, err)
		return
	}

	if result.AlreadyExisted {
		metrics.MergesTotal.WithLabelValues("noop").Inc()
	} else {
		metrics.MergesTotal.WithLabelValues("merged").Inc()
	}
	respondJSON(w, http.StatusOK, mergeResponse{
		CanonicalID:    result.CanonicalID,
		AlreadyExisted: result.AlreadyExisted,
	})
}

type friendsMergeRequest struct {
	KeepMemberID  string `json:"keep_member_id"`
	MergeMemberID string `json:"merge_member_id"`
}

// MergeFriends collapses two of the caller's unlinked friend rows into one.
// The kept row inherits a nickname if it has none, and an alias edge records
// the equivalence so past expenses still resolve.
func (s *IdentityService) MergeFriends(w http.ResponseWriter, r *http.Request) {
	_, email, err := caller(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req friendsMergeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.KeepMemberID == "" || req.MergeMemberID == "" {
		respondBadRequest(w, "keep_member_id and merge_member_id are required")
		return
	}

	slog.Info("Friends merge request", "keep", req.KeepMemberID, "merge", req.MergeMemberID, "owner", email)

	result, err := s.merger.MergeUnlinkedFriends(r.Context(), email, req.KeepMemberID, req.MergeMemberID)
	if err != nil {
		metrics.MergesTotal.WithLabelValues("error").Inc()
		slog.Error("Friends merge failed", "keep", req.KeepMemberID, "merge", req.MergeMemberID, "error", err)
		respondError(w, err)
		return
	}

	metrics.MergesTotal.WithLabelValues("merged").Inc()
	respondJSON(w, http.StatusOK, mergeResponse{
		CanonicalID:    result.CanonicalID,
		AlreadyExisted: result.AlreadyExisted,
	})
}

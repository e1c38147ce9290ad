package models

// AliasEdge declares one member ID equivalent to another. Edges are directed
// (alias → canonical) and functional: a member ID has at most one outgoing
// edge, enforced by the primary key on AliasMemberID. Edges are never updated
// in place; re-pointing an alias is a conflict that must be resolved
// explicitly.
type AliasEdge struct {
	// AliasMemberID is the member ID being declared an alias.
	AliasMemberID string

	// CanonicalMemberID is the member ID the alias resolves to.
	CanonicalMemberID string

	// CreatedBy is the email of the account that created the edge.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the edge was created.
	CreatedAt int64
}

package models

// GroupMember is one entry in a group's embedded member snapshot. The ID is
// immutable once written: when a placeholder is claimed, only the Name is
// rewritten; equivalence is resolved through the alias graph at read time.
type GroupMember struct {
	// MemberID identifies the member (placeholder or canonical).
	MemberID string

	// Name is the display name snapshot for this member.
	Name string

	// LinkedEmail is the email of the linked account, if the member has one.
	LinkedEmail string
}

// Group represents a recurring set of people who split expenses together.
// The member list is a denormalized snapshot; it is not re-normalized when
// aliases are created.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group.
	Name string

	// OwnerEmail is the email of the account that created the group.
	OwnerEmail string

	// Members is the embedded member snapshot.
	Members []GroupMember

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMemberID reports whether the snapshot contains the exact member ID.
// Callers checking whether a *person* is in the group must test every ID in
// that person's equivalence set, not just one.
func (g *Group) HasMemberID(memberID string) bool {
	for _, m := range g.Members {
		if m.MemberID == memberID {
			return true
		}
	}
	return false
}

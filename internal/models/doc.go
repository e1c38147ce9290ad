// Package models defines the core domain models for Divvy.
//
// # Identity model
//
// Real people appear in the system under two kinds of identifiers:
//   - Account: a registered, authenticated user with a stable ID and a
//     canonical member ID.
//   - Member placeholder: a UUID string minted by one user to stand in for
//     another person before that person has (or links) an account. It is not
//     a standalone row; it only exists embedded in groups, expenses and
//     friend rows.
//
// When a placeholder turns out to be a real account, an AliasEdge declares
// the two member IDs equivalent. Historical group and expense snapshots are
// never rewritten to the canonical ID; read paths must resolve equivalence
// through the alias graph instead.
//
// # Design principles
//
//  1. IDs are strings, never pointers between models, because the store persists far
//     more identities than fit in one process.
//  2. Denormalized caches (Account.AliasMemberIDs, Expense.ParticipantEmails,
//     fan-out rows) are views that must be rebuildable from the source rows.
//  3. Timestamps are Unix seconds (int64) for portability across stores.
package models

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/divvyup/divvy/internal/storage"
)

// AliasTarget returns the outgoing edge for memberID, if any.
func (s *SQLiteStore) AliasTarget(ctx context.Context, memberID string) (string, bool, error) {
	var target string
	err := s.db.QueryRowContext(ctx,
		"SELECT canonical_member_id FROM member_aliases WHERE alias_member_id = ?",
		memberID,
	).Scan(&target)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get alias edge: %w", err)
	}
	return target, true, nil
}

// AliasesOf returns every member ID with an edge pointing at canonicalID.
func (s *SQLiteStore) AliasesOf(ctx context.Context, canonicalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT alias_member_id FROM member_aliases WHERE canonical_member_id = ? ORDER BY alias_member_id",
		canonicalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aliases: %w", err)
	}
	return aliases, nil
}

// CreateAliasEdge inserts alias → canonical after re-checking, inside the
// insert transaction, that the alias is not already pointed elsewhere and
// that walking from canonical never reaches the alias. Concurrent merges on
// the same alias serialize here; the loser gets storage.ErrConflict.
func (s *SQLiteStore) CreateAliasEdge(ctx context.Context, alias, canonical, createdBy string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Existing outgoing edge: identical target is an idempotent repeat,
	// anything else is a re-point attempt.
	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT canonical_member_id FROM member_aliases WHERE alias_member_id = ?", alias,
	).Scan(&existing)
	if err == nil {
		if existing == canonical {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s is already an alias of %s", storage.ErrConflict, alias, existing)
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check existing edge: %w", err)
	}

	// Cycle re-check: follow edges from canonical; reaching alias means this
	// insert would close a loop. The visited bound keeps a corrupted graph
	// from hanging the transaction.
	current := canonical
	visited := map[string]struct{}{}
	for {
		if current == alias {
			return false, fmt.Errorf("%w: edge %s -> %s would create a cycle", storage.ErrConflict, alias, canonical)
		}
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}

		var next string
		err = tx.QueryRowContext(ctx,
			"SELECT canonical_member_id FROM member_aliases WHERE alias_member_id = ?", current,
		).Scan(&next)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return false, fmt.Errorf("failed to walk alias graph: %w", err)
		}
		current = next
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO member_aliases (alias_member_id, canonical_member_id, created_by, created_at) VALUES (?, ?, ?, ?)",
		alias, canonical, createdBy, time.Now().Unix(),
	)
	if isUniqueViolation(err) {
		return false, fmt.Errorf("%w: alias %s was concurrently created", storage.ErrConflict, alias)
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert alias edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit alias edge: %w", err)
	}
	return true, nil
}

// DeleteAliasEdgesTouching removes every edge with memberID at either endpoint.
func (s *SQLiteStore) DeleteAliasEdgesTouching(ctx context.Context, memberID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM member_aliases WHERE alias_member_id = ? OR canonical_member_id = ?",
		memberID, memberID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete alias edges: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// PostgresStore persists ledger entries in the duplicate_ledger table.
// The unique constraint on (canonical_id, duplicate_id) enforces the
// one-entry-per-pair invariant; races between writers resolve through
// the upsert with no additional locking.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a ledger store backed by the given connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertDecision inserts or updates the entry for the pair. The guard on
// the update keeps terminal entries frozen: only a pending entry (or an
// identical re-send) is overwritten.
func (s *PostgresStore) UpsertDecision(ctx context.Context, key PairKey, d Decision) (*Entry, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid ledger decision: status=%q method=%q", d.Status, d.Method)
	}

	resolved := "NULL"
	if d.Status != StatusPending {
		resolved = "now()"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_ledger (canonical_id, duplicate_id, score, method, status, reviewer_id, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), `+resolved+`)
		ON CONFLICT (canonical_id, duplicate_id) DO UPDATE SET
			score = EXCLUDED.score,
			method = EXCLUDED.method,
			status = EXCLUDED.status,
			reviewer_id = EXCLUDED.reviewer_id,
			resolved_at = EXCLUDED.resolved_at
		WHERE duplicate_ledger.status = 'pending'
	`, key.CanonicalID, key.DuplicateID, d.Score, d.Method, d.Status, d.ReviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ledger entry: %w", err)
	}

	return s.Get(ctx, key)
}

// Get returns the entry for a pair.
func (s *PostgresStore) Get(ctx context.Context, key PairKey) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT canonical_id, duplicate_id, score, method, status, reviewer_id, created_at, resolved_at
		FROM duplicate_ledger
		WHERE canonical_id = $1 AND duplicate_id = $2
	`, key.CanonicalID, key.DuplicateID)

	var e Entry
	err := row.Scan(&e.CanonicalID, &e.DuplicateID, &e.Score, &e.Method,
		&e.Status, &e.ReviewerID, &e.CreatedAt, &e.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &e, nil
}

// IsSuppressed reports whether the pair reached a terminal state.
func (s *PostgresStore) IsSuppressed(ctx context.Context, key PairKey) (bool, error) {
	var suppressed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM duplicate_ledger
			WHERE canonical_id = $1 AND duplicate_id = $2
			  AND status IN ('confirmed', 'dismissed')
		)
	`, key.CanonicalID, key.DuplicateID).Scan(&suppressed)
	if err != nil {
		return false, fmt.Errorf("failed to check suppression: %w", err)
	}
	return suppressed, nil
}

// SuppressedSet returns all counterpart ids resolved against the listing.
func (s *PostgresStore) SuppressedSet(ctx context.Context, listingID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN canonical_id = $1 THEN duplicate_id ELSE canonical_id END
		FROM duplicate_ledger
		WHERE (canonical_id = $1 OR duplicate_id = $1)
		  AND status IN ('confirmed', 'dismissed')
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppressed pairs: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan suppressed pair: %w", err)
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// ListPending returns unresolved entries, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, f PendingFilter) ([]Entry, error) {
	query := `
		SELECT canonical_id, duplicate_id, score, method, status, reviewer_id, created_at, resolved_at
		FROM duplicate_ledger
		WHERE status = 'pending'
	`
	var args []interface{}
	argIndex := 1

	if f.ListingID != "" {
		query += " AND (canonical_id = $1 OR duplicate_id = $1)"
		args = append(args, f.ListingID)
		argIndex++
	}
	query += " ORDER BY created_at, canonical_id, duplicate_id"
	if f.Limit > 0 {
		query += " LIMIT $" + strconv.Itoa(argIndex)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.CanonicalID, &e.DuplicateID, &e.Score, &e.Method,
			&e.Status, &e.ReviewerID, &e.CreatedAt, &e.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus returns how many entries sit in each status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM duplicate_ledger GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ledger count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// RemoveSuppression deletes the pair's entry.
func (s *PostgresStore) RemoveSuppression(ctx context.Context, key PairKey) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM duplicate_ledger
		WHERE canonical_id = $1 AND duplicate_id = $2
	`, key.CanonicalID, key.DuplicateID)
	if err != nil {
		return fmt.Errorf("failed to remove ledger entry: %w", err)
	}
	return nil
}

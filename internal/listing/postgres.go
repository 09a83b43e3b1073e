package listing

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PostgresRepository reads listings from the marketplace database.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository backed by the given connection.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const listingColumns = `
	id, title, COALESCE(description, ''), address, COALESCE(address_canonical, ''),
	latitude, longitude, owner_id, amenities, image_keys, active, created_at, updated_at
`

// Get returns an active listing by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Listing, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE id = $1 AND active
	`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %s: %w", id, err)
	}
	return l, nil
}

// ActiveIDs returns all active listing ids ordered by id.
func (r *PostgresRepository) ActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM listings WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active listings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan listing id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindCandidates pushes the bounding-box, owner and address-prefix filters
// into SQL so scoring never walks the full corpus.
func (r *PostgresRepository) FindCandidates(ctx context.Context, f CandidateFilter) ([]Listing, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	next := func(v interface{}) string {
		args = append(args, v)
		p := "$" + strconv.Itoa(argIndex)
		argIndex++
		return p
	}

	if f.HasBounds {
		conditions = append(conditions, fmt.Sprintf(
			"(latitude BETWEEN %s AND %s AND longitude BETWEEN %s AND %s)",
			next(f.MinLat), next(f.MaxLat), next(f.MinLon), next(f.MaxLon)))
	}
	if f.OwnerID != "" {
		conditions = append(conditions, "owner_id = "+next(f.OwnerID))
	}
	if f.AddressPrefix != "" {
		conditions = append(conditions, "address_canonical LIKE "+next(f.AddressPrefix+"%"))
	}

	if len(conditions) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE active
		  AND id <> ` + next(f.ExcludeID) + `
		  AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY id`

	if f.Limit > 0 {
		query += " LIMIT " + next(f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var l Listing
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Address, &l.AddressCanonical,
		&l.Latitude, &l.Longitude, &l.OwnerID,
		pq.Array(&l.Amenities), pq.Array(&l.ImageKeys),
		&l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

package userstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultUsersTable is counted when no table is configured.
const DefaultUsersTable = "users"

// SQLCounter counts rows of a PostgreSQL table.
type SQLCounter struct {
	db    *sql.DB
	query string
}

// NewSQLCounter builds the count query for table, which may be schema
// qualified ("auth.users"). Identifiers are quoted.
func NewSQLCounter(db *sql.DB, table string) (*SQLCounter, error) {
	if db == nil {
		return nil, ErrNilClient
	}
	if table == "" {
		table = DefaultUsersTable
	}
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if p == "" || strings.ContainsRune(p, 0) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
		quoted[i] = pq.QuoteIdentifier(p)
	}
	return &SQLCounter{
		db:    db,
		query: "SELECT COUNT(*) FROM " + strings.Join(quoted, "."),
	}, nil
}

// Count implements sampler.CountSource.
func (c *SQLCounter) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCountUnavailable, err)
	}
	return n, nil
}

package usage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const (
	countCategoriesQuery   = "SELECT COUNT(*) FROM categories WHERE user_id = $1"
	countTransactionsQuery = "SELECT COUNT(*) FROM transactions WHERE user_id = $1"
)

// PostgresSource counts rows in the budget database.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgres opens and pings a postgres database.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Counts implements Source.
func (s *PostgresSource) Counts(ctx context.Context, userID string) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, countCategoriesQuery, userID).Scan(&c.Categories); err != nil {
		return Counts{}, fmt.Errorf("failed to count categories: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, countTransactionsQuery, userID).Scan(&c.Transactions); err != nil {
		return Counts{}, fmt.Errorf("failed to count transactions: %w", err)
	}
	return c, nil
}

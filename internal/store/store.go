// Package store is a read-only customer directory over a Postgres clients
// table. The table is a replica or migration target of the backend's client
// collection; the backend remains the system of record.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/readysetinsure/dashboard/internal/customer"
)

var ErrNotFound = customer.ErrNotFound

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Dates are selected as text so DATE, TIMESTAMPTZ and free-form string
// columns all come back in a form weekday.ParseDate understands.
const customerColumns = `
	COALESCE(name, ''), COALESCE(email, ''), COALESCE(status, ''), date::text,
	policy_number, dob::text, COALESCE(sex, ''), COALESCE(phone, ''),
	COALESCE(summary, ''), COALESCE(chatlog, '')`

// ListByStatus returns clients in status, oldest case first.
func (s *Store) ListByStatus(ctx context.Context, status customer.Status) ([]customer.Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM clients
		WHERE status = $1
		ORDER BY date ASC NULLS LAST, policy_number`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	out := []customer.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return out, nil
}

// Get returns the client with policyNumber.
func (s *Store) Get(ctx context.Context, policyNumber string) (*customer.Customer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM clients
		WHERE policy_number = $1`,
		policyNumber,
	)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func scanCustomer(row pgx.Row) (customer.Customer, error) {
	var (
		c      customer.Customer
		status string
	)
	err := row.Scan(
		&c.Name, &c.Email, &status, &c.Date,
		&c.PolicyNumber, &c.DOB, &c.Sex, &c.Phone,
		&c.Summary, &c.Chatlog,
	)
	c.Status = customer.Status(status)
	return c, err
}

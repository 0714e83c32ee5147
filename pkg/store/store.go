// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store provides the embedded SQL database holding the insurance
// dataset. Analytics queries run through Query, which only accepts a single
// read-only SELECT statement.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/claimsight/pkg/insurance"
)

// Validation errors returned by ValidateQuery.
var (
	ErrEmptyQuery         = errors.New("query is empty")
	ErrNotSelect          = errors.New("only SELECT statements are allowed")
	ErrMultipleStatements = errors.New("multiple SQL statements are not allowed")
)

const (
	// maxScanRows caps how many rows a single query may return.
	maxScanRows = 1000

	dateFormat = "2006-01-02"

	pingTimeout = 5 * time.Second
)

// forbiddenKeywords are statements that mutate or reconfigure the database.
// Matched as whole words anywhere in the query, so they are also rejected
// inside subqueries and CTE bodies.
var forbiddenKeywords = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|ATTACH|DETACH|PRAGMA|REINDEX|VACUUM|REPLACE|TRUNCATE)\b`)

// Store wraps the sqlite database containing customers, policies and claims.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the sqlite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer connection avoids sqlite "database is locked" errors.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// OpenOrGenerate opens the database at path. When no file exists there yet,
// a synthetic dataset is generated with gen and loaded before returning, so
// callers always see populated tables.
func OpenOrGenerate(ctx context.Context, path string, gen insurance.GeneratorConfig) (*Store, error) {
	_, statErr := os.Stat(path)
	missing := errors.Is(statErr, os.ErrNotExist)

	s, err := Open(path)
	if err != nil {
		return nil, err
	}

	if missing {
		slog.Info("Database not found, generating dataset", "path", path)
		if err := s.Init(ctx); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.LoadDataset(ctx, insurance.Generate(gen)); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema. Safe to call repeatedly.
func (s *Store) Init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			customer_id   TEXT PRIMARY KEY,
			first_name    TEXT NOT NULL,
			last_name     TEXT NOT NULL,
			email         TEXT NOT NULL,
			phone         TEXT NOT NULL,
			date_of_birth TEXT NOT NULL,
			address       TEXT NOT NULL,
			city          TEXT NOT NULL,
			state         TEXT NOT NULL,
			zip_code      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS policies (
			policy_id       TEXT PRIMARY KEY,
			customer_id     TEXT NOT NULL REFERENCES customers(customer_id),
			policy_type     TEXT NOT NULL,
			coverage_amount REAL NOT NULL,
			premium_amount  REAL NOT NULL,
			start_date      TEXT NOT NULL,
			end_date        TEXT NOT NULL,
			status          TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS claims (
			claim_id     TEXT PRIMARY KEY,
			policy_id    TEXT NOT NULL REFERENCES policies(policy_id),
			claim_amount REAL NOT NULL,
			claim_date   TEXT NOT NULL,
			claim_status TEXT NOT NULL,
			claim_type   TEXT NOT NULL,
			description  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_policies_customer_id ON policies(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_policy_id ON claims(policy_id)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(claim_status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// LoadDataset replaces the database contents with the given dataset.
// All inserts run in a single transaction.
func (s *Store) LoadDataset(ctx context.Context, ds *insurance.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"claims", "policies", "customers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	custStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO customers (customer_id, first_name, last_name, email, phone, date_of_birth, address, city, state, zip_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare customer insert: %w", err)
	}
	defer custStmt.Close()
	for _, c := range ds.Customers {
		if _, err := custStmt.ExecContext(ctx, c.ID, c.FirstName, c.LastName, c.Email, c.Phone,
			c.DateOfBirth.Format(dateFormat), c.Address, c.City, c.State, c.ZipCode); err != nil {
			return fmt.Errorf("failed to insert customer %s: %w", c.ID, err)
		}
	}

	polStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO policies (policy_id, customer_id, policy_type, coverage_amount, premium_amount, start_date, end_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare policy insert: %w", err)
	}
	defer polStmt.Close()
	for _, p := range ds.Policies {
		if _, err := polStmt.ExecContext(ctx, p.ID, p.CustomerID, string(p.Type), p.CoverageAmount, p.PremiumAmount,
			p.StartDate.Format(dateFormat), p.EndDate.Format(dateFormat), string(p.Status)); err != nil {
			return fmt.Errorf("failed to insert policy %s: %w", p.ID, err)
		}
	}

	claimStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO claims (claim_id, policy_id, claim_amount, claim_date, claim_status, claim_type, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare claim insert: %w", err)
	}
	defer claimStmt.Close()
	for _, c := range ds.Claims {
		if _, err := claimStmt.ExecContext(ctx, c.ID, c.PolicyID, c.Amount,
			c.Date.Format(dateFormat), string(c.Status), c.Type, c.Description); err != nil {
			return fmt.Errorf("failed to insert claim %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	return nil
}

// Result holds the outcome of a read-only query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// ValidateQuery checks that query is a single read-only SELECT statement.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	// A trailing semicolon is fine; anything after it is not.
	body := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(body, ";") {
		return ErrMultipleStatements
	}

	upper := strings.ToUpper(body)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ErrNotSelect
	}

	if match := forbiddenKeywords.FindString(body); match != "" {
		return fmt.Errorf("%w: found %q", ErrNotSelect, strings.ToUpper(match))
	}

	return nil
}

// Query runs a validated read-only SELECT and returns columns plus rows.
// Row scanning stops at maxScanRows.
func (s *Store) Query(ctx context.Context, query string) (*Result, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= maxScanRows {
			break
		}

		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return result, nil
}

// Counts returns the row count per table.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, table := range []string{"customers", "policies", "claims"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// SchemaDescription describes the tables for SQL-generation prompts.
func SchemaDescription() string {
	return `Database schema (sqlite):

Table customers:
  customer_id (TEXT, primary key), first_name (TEXT), last_name (TEXT),
  email (TEXT), phone (TEXT), date_of_birth (TEXT, YYYY-MM-DD),
  address (TEXT), city (TEXT), state (TEXT), zip_code (TEXT)

Table policies:
  policy_id (TEXT, primary key), customer_id (TEXT, references customers),
  policy_type (TEXT: auto, home, travel, life),
  coverage_amount (REAL), premium_amount (REAL),
  start_date (TEXT, YYYY-MM-DD), end_date (TEXT, YYYY-MM-DD),
  status (TEXT: active, expired, cancelled, suspended)

Table claims:
  claim_id (TEXT, primary key), policy_id (TEXT, references policies),
  claim_amount (REAL), claim_date (TEXT, YYYY-MM-DD),
  claim_status (TEXT: pending, approved, denied, processing),
  claim_type (TEXT), description (TEXT)

Relationships:
  policies.customer_id -> customers.customer_id (a customer has 1-4 policies)
  claims.policy_id -> policies.policy_id (a policy has 0 or more claims)`
}

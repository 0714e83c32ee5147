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

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/claimsight/pkg/insurance"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenOrGenerate_PopulatesMissingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fresh.db")

	s, err := OpenOrGenerate(ctx, path, insurance.GeneratorConfig{Customers: 15, Seed: 42})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, counts["customers"])
	assert.Positive(t, counts["policies"])
}

func TestOpenOrGenerate_KeepsExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "existing.db")

	first, err := OpenOrGenerate(ctx, path, insurance.GeneratorConfig{Customers: 10, Seed: 1})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening with a different generator config must not regenerate.
	again, err := OpenOrGenerate(ctx, path, insurance.GeneratorConfig{Customers: 40, Seed: 2})
	require.NoError(t, err)
	t.Cleanup(func() { again.Close() })

	counts, err := again.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, counts["customers"])
}

func TestInit_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Init(context.Background()))
}

func TestLoadDataset_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := insurance.Generate(insurance.GeneratorConfig{Customers: 25, Seed: 42})
	require.NoError(t, s.LoadDataset(ctx, ds))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ds.Customers), counts["customers"])
	assert.Equal(t, len(ds.Policies), counts["policies"])
	assert.Equal(t, len(ds.Claims), counts["claims"])
}

func TestLoadDataset_ReplacesPriorContents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LoadDataset(ctx, insurance.Generate(insurance.GeneratorConfig{Customers: 30, Seed: 1})))
	require.NoError(t, s.LoadDataset(ctx, insurance.Generate(insurance.GeneratorConfig{Customers: 10, Seed: 2})))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, counts["customers"])
}

func TestQuery_SelectsRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := insurance.Generate(insurance.GeneratorConfig{Customers: 20, Seed: 42})
	require.NoError(t, s.LoadDataset(ctx, ds))

	result, err := s.Query(ctx, "SELECT policy_type, COUNT(*) AS n FROM policies GROUP BY policy_type ORDER BY policy_type")
	require.NoError(t, err)
	assert.Equal(t, []string{"policy_type", "n"}, result.Columns)
	assert.NotEmpty(t, result.Rows)
}

func TestQuery_JoinAcrossTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := insurance.Generate(insurance.GeneratorConfig{Customers: 50, Seed: 42})
	require.NoError(t, s.LoadDataset(ctx, ds))

	result, err := s.Query(ctx, `
		SELECT c.first_name, c.last_name, COUNT(cl.claim_id) AS claims
		FROM customers c
		JOIN policies p ON p.customer_id = c.customer_id
		JOIN claims cl ON cl.policy_id = p.policy_id
		GROUP BY c.customer_id`)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Rows)
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{"plain select", "SELECT * FROM customers", nil},
		{"lowercase select", "select count(*) from claims", nil},
		{"cte", "WITH big AS (SELECT * FROM claims WHERE claim_amount > 1000) SELECT COUNT(*) FROM big", nil},
		{"trailing semicolon", "SELECT 1;", nil},
		{"empty", "   ", ErrEmptyQuery},
		{"insert", "INSERT INTO customers VALUES ('x')", ErrNotSelect},
		{"delete", "DELETE FROM claims", ErrNotSelect},
		{"drop embedded", "SELECT 1; DROP TABLE claims", ErrMultipleStatements},
		{"pragma", "PRAGMA table_info(customers)", ErrNotSelect},
		{"mutating subquery", "SELECT * FROM customers WHERE 1=1 UNION SELECT * FROM claims; UPDATE claims SET claim_amount = 0", ErrMultipleStatements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestQuery_RejectsMutation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Query(context.Background(), "DROP TABLE customers")
	assert.ErrorIs(t, err, ErrNotSelect)

	// Table must survive the attempt.
	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Contains(t, counts, "customers")
}

func TestQuery_BadSQLReturnsError(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Query(context.Background(), "SELECT nope FROM does_not_exist")
	assert.Error(t, err)
}

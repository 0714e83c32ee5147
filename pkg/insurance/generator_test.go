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

package insurance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_CustomerCount(t *testing.T) {
	ds := Generate(GeneratorConfig{Customers: 50, Seed: 7})

	assert.Len(t, ds.Customers, 50)
	assert.GreaterOrEqual(t, len(ds.Policies), 50, "every customer holds at least one policy")
	assert.LessOrEqual(t, len(ds.Policies), 200, "at most four policies per customer")
}

func TestGenerate_Defaults(t *testing.T) {
	ds := Generate(GeneratorConfig{Customers: 10})
	require.Len(t, ds.Customers, 10)

	// Zero seed falls back to the default seed, so the run is reproducible.
	again := Generate(GeneratorConfig{Customers: 10, Seed: DefaultSeed})
	assert.Equal(t, ds.Customers, again.Customers)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(GeneratorConfig{Customers: 100, Seed: 42})
	b := Generate(GeneratorConfig{Customers: 100, Seed: 42})

	assert.Equal(t, a.Customers, b.Customers)
	assert.Equal(t, a.Policies, b.Policies)
	assert.Equal(t, a.Claims, b.Claims)
}

func TestGenerate_SeedChangesData(t *testing.T) {
	a := Generate(GeneratorConfig{Customers: 100, Seed: 1})
	b := Generate(GeneratorConfig{Customers: 100, Seed: 2})

	assert.NotEqual(t, a.Customers, b.Customers)
}

func TestGenerate_ReferentialIntegrity(t *testing.T) {
	ds := Generate(GeneratorConfig{Customers: 200, Seed: 42})

	customerIDs := make(map[string]bool, len(ds.Customers))
	for _, c := range ds.Customers {
		customerIDs[c.ID] = true
	}
	policyIDs := make(map[string]bool, len(ds.Policies))
	for _, p := range ds.Policies {
		require.True(t, customerIDs[p.CustomerID], "policy %s references unknown customer %s", p.ID, p.CustomerID)
		policyIDs[p.ID] = true
	}
	for _, c := range ds.Claims {
		require.True(t, policyIDs[c.PolicyID], "claim %s references unknown policy %s", c.ID, c.PolicyID)
	}
}

func TestGenerate_PolicyInvariants(t *testing.T) {
	ds := Generate(GeneratorConfig{Customers: 200, Seed: 42})

	byCustomer := make(map[string]map[PolicyType]bool)
	for _, p := range ds.Policies {
		cov, ok := CoverageRanges[p.Type]
		require.True(t, ok, "unknown policy type %q", p.Type)
		assert.GreaterOrEqual(t, p.CoverageAmount, cov.Min)
		assert.LessOrEqual(t, p.CoverageAmount, cov.Max)
		assert.Greater(t, p.PremiumAmount, 0.0)
		assert.Equal(t, p.StartDate.AddDate(1, 0, 0), p.EndDate, "policies run for one year")

		if byCustomer[p.CustomerID] == nil {
			byCustomer[p.CustomerID] = make(map[PolicyType]bool)
		}
		require.False(t, byCustomer[p.CustomerID][p.Type], "customer %s holds duplicate %s policies", p.CustomerID, p.Type)
		byCustomer[p.CustomerID][p.Type] = true
	}
}

func TestGenerate_ClaimInvariants(t *testing.T) {
	ds := Generate(GeneratorConfig{Customers: 200, Seed: 42})
	require.NotEmpty(t, ds.Claims)

	policies := make(map[string]Policy, len(ds.Policies))
	for _, p := range ds.Policies {
		policies[p.ID] = p
	}

	for _, c := range ds.Claims {
		p := policies[c.PolicyID]
		assert.LessOrEqual(t, c.Amount, p.CoverageAmount, "claim exceeds coverage")
		assert.False(t, c.Date.Before(p.StartDate), "claim predates policy")
		assert.False(t, c.Date.After(p.EndDate), "claim postdates policy")
		assert.Contains(t, ClaimTypes[p.Type], c.Type)
		assert.NotEmpty(t, c.Description)
	}
}

func TestDataset_Stats(t *testing.T) {
	ds := Generate(GeneratorConfig{Customers: 100, Seed: 42})
	s := ds.Stats()

	assert.Equal(t, 100, s.Customers)
	assert.Equal(t, len(ds.Policies), s.Policies)
	assert.Equal(t, len(ds.Claims), s.Claims)
	assert.Greater(t, s.TotalPremium, 0.0)

	total := 0
	for _, n := range s.PoliciesByType {
		total += n
	}
	assert.Equal(t, s.Policies, total)
}

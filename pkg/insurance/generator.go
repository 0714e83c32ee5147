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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

const (
	// DefaultCustomers is the dataset size used when none is given.
	DefaultCustomers = 1000

	// DefaultSeed makes generated datasets reproducible across runs.
	DefaultSeed = 42

	// claimProbability is the fraction of policies that have claims.
	claimProbability = 0.3
)

// GeneratorConfig controls synthetic dataset generation.
type GeneratorConfig struct {
	// Customers is the number of customers to generate.
	Customers int

	// Seed seeds the random source. The same seed always produces the
	// same dataset.
	Seed uint64
}

// Generate builds a synthetic insurance dataset.
//
// Each customer holds 1-4 policies of distinct types. Roughly 30% of
// policies have claims attached (1, 2 or 3 claims, weighted 70/25/5).
// Every policy references a generated customer and every claim a generated
// policy, so referential integrity holds by construction.
func Generate(cfg GeneratorConfig) *Dataset {
	customers := cfg.Customers
	if customers <= 0 {
		customers = DefaultCustomers
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}

	f := gofakeit.New(seed)
	now := time.Now()

	ds := &Dataset{
		Customers: make([]Customer, 0, customers),
		Policies:  make([]Policy, 0, customers*2),
	}

	policySeq := 0
	claimSeq := 0

	for i := 0; i < customers; i++ {
		cust := Customer{
			ID:          fmt.Sprintf("CUST-%06d", i+1),
			FirstName:   f.FirstName(),
			LastName:    f.LastName(),
			Email:       f.Email(),
			Phone:       f.Phone(),
			DateOfBirth: f.DateRange(now.AddDate(-85, 0, 0), now.AddDate(-18, 0, 0)),
			Address:     f.Street(),
			City:        f.City(),
			State:       f.StateAbr(),
			ZipCode:     f.Zip(),
		}
		ds.Customers = append(ds.Customers, cust)

		for _, pt := range samplePolicyTypes(f) {
			policySeq++
			policy := makePolicy(f, policySeq, cust.ID, pt, now)
			ds.Policies = append(ds.Policies, policy)

			if f.Float64Range(0, 1) >= claimProbability {
				continue
			}
			for j := 0; j < claimCount(f); j++ {
				claimSeq++
				ds.Claims = append(ds.Claims, makeClaim(f, claimSeq, policy, now))
			}
		}
	}

	return ds
}

// samplePolicyTypes draws 1-4 distinct policy types.
func samplePolicyTypes(f *gofakeit.Faker) []PolicyType {
	types := make([]PolicyType, len(PolicyTypes))
	copy(types, PolicyTypes)

	// Fisher-Yates with the shared seeded source
	for i := len(types) - 1; i > 0; i-- {
		j := f.IntRange(0, i)
		types[i], types[j] = types[j], types[i]
	}

	return types[:f.IntRange(1, len(types))]
}

func makePolicy(f *gofakeit.Faker, seq int, customerID string, pt PolicyType, now time.Time) Policy {
	coverage := CoverageRanges[pt]
	rate := PremiumRates[pt]

	coverageAmount := round2(f.Float64Range(coverage.Min, coverage.Max))
	premiumAmount := round2(coverageAmount * f.Float64Range(rate.Min, rate.Max))

	start := f.DateRange(now.AddDate(-2, 0, 0), now)

	return Policy{
		ID:             fmt.Sprintf("POL-%08d", seq),
		CustomerID:     customerID,
		Type:           pt,
		CoverageAmount: coverageAmount,
		PremiumAmount:  premiumAmount,
		StartDate:      start,
		EndDate:        start.AddDate(1, 0, 0),
		Status:         PolicyStatuses[f.IntRange(0, len(PolicyStatuses)-1)],
	}
}

func makeClaim(f *gofakeit.Faker, seq int, policy Policy, now time.Time) Claim {
	// Claims fall within the policy period, clamped to today.
	latest := policy.EndDate
	if latest.After(now) {
		latest = now
	}

	lo, hi := 1000.0, 0.8*policy.CoverageAmount
	if hi < lo {
		lo = hi
	}

	claimType := f.RandomString(ClaimTypes[policy.Type])

	return Claim{
		ID:          fmt.Sprintf("CLM-%010d", seq),
		PolicyID:    policy.ID,
		Amount:      round2(f.Float64Range(lo, hi)),
		Date:        f.DateRange(policy.StartDate, latest),
		Status:      ClaimStatuses[f.IntRange(0, len(ClaimStatuses)-1)],
		Type:        claimType,
		Description: describeClaim(claimType, policy.Type),
	}
}

// claimCount draws 1, 2 or 3 claims weighted 70/25/5.
func claimCount(f *gofakeit.Faker) int {
	switch r := f.IntRange(1, 100); {
	case r <= 70:
		return 1
	case r <= 95:
		return 2
	default:
		return 3
	}
}

func describeClaim(claimType string, pt PolicyType) string {
	return fmt.Sprintf("%s claim filed against %s policy", capitalize(claimType), pt)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

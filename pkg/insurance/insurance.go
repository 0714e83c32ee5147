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

// Package insurance defines the claimsight domain model: customers, their
// policies, and claims filed against those policies, together with the
// seeded synthetic data generator used to populate the analytics database.
package insurance

import "time"

// PolicyType identifies the line of insurance a policy covers.
type PolicyType string

const (
	PolicyAuto   PolicyType = "auto"
	PolicyHome   PolicyType = "home"
	PolicyTravel PolicyType = "travel"
	PolicyLife   PolicyType = "life"
)

// PolicyTypes lists all supported policy types.
var PolicyTypes = []PolicyType{PolicyAuto, PolicyHome, PolicyTravel, PolicyLife}

// PolicyStatus is the lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
	PolicySuspended PolicyStatus = "suspended"
)

// PolicyStatuses lists all policy statuses.
var PolicyStatuses = []PolicyStatus{PolicyActive, PolicyExpired, PolicyCancelled, PolicySuspended}

// ClaimStatus is the processing state of a claim.
type ClaimStatus string

const (
	ClaimPending    ClaimStatus = "pending"
	ClaimApproved   ClaimStatus = "approved"
	ClaimDenied     ClaimStatus = "denied"
	ClaimProcessing ClaimStatus = "processing"
)

// ClaimStatuses lists all claim statuses.
var ClaimStatuses = []ClaimStatus{ClaimPending, ClaimApproved, ClaimDenied, ClaimProcessing}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64
	Max float64
}

// CoverageRanges gives the coverage amount interval per policy type.
var CoverageRanges = map[PolicyType]Range{
	PolicyAuto:   {10_000, 100_000},
	PolicyHome:   {100_000, 1_000_000},
	PolicyTravel: {1_000, 50_000},
	PolicyLife:   {50_000, 1_000_000},
}

// PremiumRates gives the annual premium rate interval per policy type.
// The premium is coverage multiplied by a rate drawn from this interval.
var PremiumRates = map[PolicyType]Range{
	PolicyAuto:   {0.02, 0.08},
	PolicyHome:   {0.005, 0.02},
	PolicyTravel: {0.1, 0.3},
	PolicyLife:   {0.01, 0.05},
}

// ClaimTypes maps each policy type to the claim types it can produce.
var ClaimTypes = map[PolicyType][]string{
	PolicyAuto:   {"collision", "comprehensive", "liability", "theft"},
	PolicyHome:   {"fire", "theft", "water damage", "storm damage", "vandalism"},
	PolicyTravel: {"trip cancellation", "medical emergency", "lost luggage", "flight delay"},
	PolicyLife:   {"death benefit", "terminal illness", "disability"},
}

// Customer is a policy holder.
type Customer struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth time.Time
	Address     string
	City        string
	State       string
	ZipCode     string
}

// Policy is an insurance contract held by a customer.
type Policy struct {
	ID             string
	CustomerID     string
	Type           PolicyType
	CoverageAmount float64
	PremiumAmount  float64
	StartDate      time.Time
	EndDate        time.Time
	Status         PolicyStatus
}

// Claim is a loss event filed against a policy.
type Claim struct {
	ID          string
	PolicyID    string
	Amount      float64
	Date        time.Time
	Status      ClaimStatus
	Type        string
	Description string
}

// Dataset holds a generated collection of customers, policies and claims
// with intact references between them.
type Dataset struct {
	Customers []Customer
	Policies  []Policy
	Claims    []Claim
}

// Stats summarizes a dataset for the post-generation report.
type Stats struct {
	Customers       int
	Policies        int
	Claims          int
	PoliciesByType  map[PolicyType]int
	ClaimsByStatus  map[ClaimStatus]int
	TotalPremium    float64
	TotalClaimValue float64
}

// Stats computes summary statistics over the dataset.
func (d *Dataset) Stats() Stats {
	s := Stats{
		Customers:      len(d.Customers),
		Policies:       len(d.Policies),
		Claims:         len(d.Claims),
		PoliciesByType: make(map[PolicyType]int),
		ClaimsByStatus: make(map[ClaimStatus]int),
	}
	for _, p := range d.Policies {
		s.PoliciesByType[p.Type]++
		s.TotalPremium += p.PremiumAmount
	}
	for _, c := range d.Claims {
		s.ClaimsByStatus[c.Status]++
		s.TotalClaimValue += c.Amount
	}
	return s
}

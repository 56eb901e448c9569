package conflict

import "time"

// Severity grades a detected conflict.
type Severity string

const (
	SeverityNone   Severity = "None"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Candidate types.
const (
	TypeDatabaseReferrer = "Database Referrer"
	TypeAffiliateClaim   = "Affiliate Claim"
)

// Client is the subset of the client row the analysis reports on.
type Client struct {
	ID        int64
	FirstName string
	LastName  string
	Company   string
	Email     string
	Created   time.Time
	Status    string
}

// Candidate is a normalized referrer claim from any source. Candidates whose
// name or email cannot be resolved are treated as noise and never built.
type Candidate struct {
	Type     string
	Name     string
	Email    string
	Source   string
	Details  string
	Priority int
}

// ClaimRecord is one resolved row from the affiliate accounts table, kept in
// raw form alongside the normalized candidates.
type ClaimRecord struct {
	Table          string
	ClaimID        int64
	AffiliateID    int64
	ServiceID      int64
	AffiliateName  string
	AffiliateEmail string
	LastPaid       *time.Time
	Source         string
}

// AdditionalSource is unscored free-text evidence. It is surfaced in the
// report but never counted toward the conflict decision.
type AdditionalSource struct {
	Type      string
	FieldName string
	Value     string
	Count     int
	Source    string
}

// SourceResult records whether a lookup source contributed, replacing the
// silent per-table exception swallowing of older tooling. An unavailable
// source yields zero candidates and never aborts the analysis.
type SourceResult struct {
	Source     string
	Available  bool
	Candidates int
}

// Summary carries the analysis counters.
type Summary struct {
	TotalClaims       int
	UniqueAffiliates  int
	DatabaseReferrers int
	AffiliateClaims   int
	AdditionalSources int
}

// Report is the full conflict analysis for one client.
type Report struct {
	Client Client

	HasLegacyReferrerColumn bool
	LegacyReferrerID        *int64

	Referrers         []Candidate
	Claims            []ClaimRecord
	AdditionalSources []AdditionalSource
	Sources           []SourceResult

	ConflictDetected bool
	Severity         Severity
	Message          string
	Summary          Summary
}

// NotFoundSuggestions accompany a failed client lookup so support staff can
// rule out the usual causes.
var NotFoundSuggestions = []string{
	"Check if the email is correct",
	"Client might be in a different database",
	"Client might have been added after database export",
}

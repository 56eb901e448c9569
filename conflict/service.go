package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrEmailRequired signals an empty lookup email.
	ErrEmailRequired = errors.New("conflict: email is required")
)

// DefaultHighThreshold is the unique-affiliate count above which a conflict
// is graded High.
const DefaultHighThreshold = 2

// Service runs the multi-source referral conflict analysis.
type Service struct {
	repo          Repository
	caps          Capabilities
	highThreshold int
}

func NewService(repo Repository, caps Capabilities) *Service {
	return &Service{
		repo:          repo,
		caps:          caps,
		highThreshold: DefaultHighThreshold,
	}
}

// WithHighThreshold overrides the High severity cutoff. Values below 1 are
// ignored.
func (s *Service) WithHighThreshold(n int) *Service {
	if n >= 1 {
		s.highThreshold = n
	}
	return s
}

// Check looks up a client by email and merges every available referral
// source into one conflict report. A source that is absent from the
// installation, or whose queries fail, is reported unavailable with zero
// candidates; it never aborts the analysis.
func (s *Service) Check(ctx context.Context, email string) (Report, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Report{}, ErrEmailRequired
	}

	client, err := s.repo.ClientByEmail(ctx, email)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Client:                  client,
		HasLegacyReferrerColumn: s.caps.LegacyReferrerColumn,
	}

	var candidates []Candidate
	candidates = append(candidates, s.scanLegacyColumn(ctx, client.ID, &report)...)
	candidates = append(candidates, s.scanClaimsTable(ctx, client.ID, &report)...)
	for _, src := range auxSources {
		candidates = append(candidates, s.scanAuxSource(ctx, src, client.ID, &report)...)
	}

	report.Referrers = dedupeByEmail(candidates)
	s.decide(&report)
	s.collectAdditionalSources(ctx, client.ID, &report)

	return report, nil
}

// scanLegacyColumn reads the optional referrer_id column and resolves it to
// a candidate when the referenced client still exists.
func (s *Service) scanLegacyColumn(ctx context.Context, clientID int64, report *Report) []Candidate {
	if !s.caps.LegacyReferrerColumn {
		report.Sources = append(report.Sources, SourceResult{Source: sourceLegacyColumn})
		return nil
	}

	refID, err := s.repo.LegacyReferrerID(ctx, clientID)
	if err != nil {
		report.Sources = append(report.Sources, SourceResult{Source: sourceLegacyColumn})
		return nil
	}
	report.LegacyReferrerID = refID

	var out []Candidate
	if refID != nil {
		referrer, ok, err := s.repo.ClientByID(ctx, *refID)
		if err != nil {
			report.Sources = append(report.Sources, SourceResult{Source: sourceLegacyColumn})
			return nil
		}
		if ok {
			out = append(out, Candidate{
				Type:     TypeDatabaseReferrer,
				Name:     clientName(referrer),
				Email:    referrer.Email,
				Source:   sourceLegacyColumn,
				Details:  fmt.Sprintf("Client ID: #%d", referrer.ID),
				Priority: 1,
			})
		}
	}

	report.Sources = append(report.Sources, SourceResult{
		Source:     sourceLegacyColumn,
		Available:  true,
		Candidates: len(out),
	})
	return out
}

// scanClaimsTable resolves affiliate claims against the client's services.
// A failure anywhere in the chain marks the whole source unavailable rather
// than surfacing partial candidates.
func (s *Service) scanClaimsTable(ctx context.Context, clientID int64, report *Report) []Candidate {
	failed := func() []Candidate {
		report.Sources = append(report.Sources, SourceResult{Source: sourceClaimsTable})
		return nil
	}

	serviceIDs, err := s.repo.ServiceIDs(ctx, clientID)
	if err != nil {
		return failed()
	}
	claims, err := s.repo.ClaimsForServices(ctx, serviceIDs)
	if err != nil {
		return failed()
	}

	var out []Candidate
	var records []ClaimRecord
	for _, claim := range claims {
		affiliate, ok, err := s.resolveAffiliate(ctx, claim.AffiliateID)
		if err != nil {
			return failed()
		}
		if !ok {
			continue
		}

		details := fmt.Sprintf("Affiliate ID: #%d | Service ID: #%d | Last Paid: %s",
			claim.AffiliateID, claim.ServiceID, formatLastPaid(claim.LastPaid))

		out = append(out, Candidate{
			Type:     TypeAffiliateClaim,
			Name:     clientName(affiliate),
			Email:    affiliate.Email,
			Source:   sourceClaimsTable,
			Details:  details,
			Priority: 2,
		})
		records = append(records, ClaimRecord{
			Table:          "tblaffiliatesaccounts",
			ClaimID:        claim.ID,
			AffiliateID:    claim.AffiliateID,
			ServiceID:      claim.ServiceID,
			AffiliateName:  clientName(affiliate),
			AffiliateEmail: affiliate.Email,
			LastPaid:       claim.LastPaid,
			Source:         sourceClaimsTable,
		})
	}

	report.Claims = append(report.Claims, records...)
	report.Sources = append(report.Sources, SourceResult{
		Source:     sourceClaimsTable,
		Available:  true,
		Candidates: len(out),
	})
	return out
}

// scanAuxSource resolves rows from one declared auxiliary table.
func (s *Service) scanAuxSource(ctx context.Context, src AuxSource, clientID int64, report *Report) []Candidate {
	failed := func() []Candidate {
		report.Sources = append(report.Sources, SourceResult{Source: src.description()})
		return nil
	}

	if !s.caps.auxAvailable(src) {
		return failed()
	}

	rows, err := s.repo.AuxClaims(ctx, src, clientID)
	if err != nil {
		return failed()
	}

	var out []Candidate
	for _, row := range rows {
		affiliate, ok, err := s.resolveAffiliate(ctx, row.AffiliateID)
		if err != nil {
			return failed()
		}
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Type:     TypeAffiliateClaim,
			Name:     clientName(affiliate),
			Email:    affiliate.Email,
			Source:   src.description(),
			Details:  fmt.Sprintf("Affiliate ID: #%d | Record ID: #%d", row.AffiliateID, row.ID),
			Priority: 3,
		})
	}

	report.Sources = append(report.Sources, SourceResult{
		Source:     src.description(),
		Available:  true,
		Candidates: len(out),
	})
	return out
}

// resolveAffiliate maps an affiliate record to its owning client. Dangling
// affiliate ids resolve to nothing and the claim is discarded.
func (s *Service) resolveAffiliate(ctx context.Context, affiliateID int64) (Client, bool, error) {
	ownerID, ok, err := s.repo.AffiliateClientID(ctx, affiliateID)
	if err != nil || !ok {
		return Client{}, false, err
	}
	return s.repo.ClientByID(ctx, ownerID)
}

// collectAdditionalSources gathers the free-text evidence that is reported
// but never counted toward the decision.
func (s *Service) collectAdditionalSources(ctx context.Context, clientID int64, report *Report) {
	customAvailable := s.caps.CustomFields
	customCount := 0
	if customAvailable {
		mentions, err := s.repo.CustomFieldMentions(ctx, clientID)
		if err != nil {
			customAvailable = false
			mentions = nil
		}
		for _, m := range mentions {
			report.AdditionalSources = append(report.AdditionalSources, AdditionalSource{
				Type:      "Custom Field",
				FieldName: m.FieldName,
				Value:     m.Value,
				Source:    "custom fields",
			})
		}
		customCount = len(mentions)
	}
	report.Sources = append(report.Sources, SourceResult{
		Source:     "custom fields",
		Available:  customAvailable,
		Candidates: customCount,
	})

	ticketAvailable := s.caps.TicketReplies
	ticketCount := 0
	if ticketAvailable {
		n, err := s.repo.TicketMentionCount(ctx, clientID)
		if err != nil {
			ticketAvailable = false
			n = 0
		}
		if n > 0 {
			report.AdditionalSources = append(report.AdditionalSources, AdditionalSource{
				Type:   "Support Tickets",
				Count:  int(n),
				Source: "ticket replies",
			})
			ticketCount = 1
		}
	}
	report.Sources = append(report.Sources, SourceResult{
		Source:     "ticket replies",
		Available:  ticketAvailable,
		Candidates: ticketCount,
	})

	report.Summary.AdditionalSources = len(report.AdditionalSources)
}

// decide grades the deduplicated candidate set and fills in the summary.
func (s *Service) decide(report *Report) {
	unique := len(report.Referrers)

	for _, c := range report.Referrers {
		switch c.Type {
		case TypeDatabaseReferrer:
			report.Summary.DatabaseReferrers++
		case TypeAffiliateClaim:
			report.Summary.AffiliateClaims++
		}
	}
	report.Summary.TotalClaims = unique
	report.Summary.UniqueAffiliates = unique

	switch {
	case unique == 0:
		report.Severity = SeverityNone
		report.Message = "No referral claims found. Client appears to be a direct registration."
	case unique == 1:
		report.Severity = SeverityNone
		report.Message = "Single referral claim found. No conflicts detected."
	default:
		report.ConflictDetected = true
		if unique > s.highThreshold {
			report.Severity = SeverityHigh
		} else {
			report.Severity = SeverityMedium
		}
		report.Message = fmt.Sprintf("Multiple referral claims detected! Found %d claims from %d unique affiliates.",
			report.Summary.TotalClaims, report.Summary.UniqueAffiliates)
	}
}

// dedupeByEmail collapses candidates that resolve to the same person. Lower
// priority numbers win, so a database referrer outranks a duplicate claim of
// the same affiliate.
func dedupeByEmail(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	seen := make(map[string]bool, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == "" || c.Email == "" {
			continue
		}
		key := strings.ToLower(c.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func clientName(c Client) string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Company
	}
	return name
}

func formatLastPaid(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format("Jan 2, 2006")
}

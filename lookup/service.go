package lookup

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"refdesk/auditlog"
)

const (
	// DefaultMaxResults caps search output regardless of configuration.
	DefaultMaxResults = 50
	// DefaultMaxDepth bounds referral tree recursion. There is no cycle
	// detection in the underlying affiliate data; the bound is the only
	// safety net.
	DefaultMaxDepth = 3
)

var (
	// ErrTermTooShort rejects search terms before any query runs.
	ErrTermTooShort = errors.New("lookup: search term must be at least 2 characters")
)

// AuditWriter records lookup activity. Audit failures never break a lookup.
type AuditWriter interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

// Service implements client search, referral detail and the referral tree.
type Service struct {
	repo         Repository
	audit        AuditWriter
	maxResults   int
	maxDepth     int
	detailedLogs bool
}

// NewService builds a lookup service over the billing schema.
func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		maxResults: DefaultMaxResults,
		maxDepth:   DefaultMaxDepth,
	}
}

// WithAudit enables detailed audit logging through the given writer.
func (s *Service) WithAudit(audit AuditWriter) *Service {
	s.audit = audit
	s.detailedLogs = true
	return s
}

// WithMaxResults overrides the search cap, clamped to the hard limit.
func (s *Service) WithMaxResults(n int) *Service {
	if n > 0 && n <= DefaultMaxResults {
		s.maxResults = n
	}
	return s
}

// WithMaxDepth overrides the tree depth bound.
func (s *Service) WithMaxDepth(n int) *Service {
	if n > 0 {
		s.maxDepth = n
	}
	return s
}

// Search finds clients matching the term and annotates each with referral
// evidence. Annotation failures degrade to "no referrer" rather than failing
// the whole search; the affiliate tables are optional in older installations.
func (s *Service) Search(ctx context.Context, term string, actor auditlog.Actor) ([]ClientSummary, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, ErrTermTooShort
	}

	clients, err := s.repo.SearchClients(ctx, term, s.maxResults)
	if err != nil {
		return nil, err
	}

	out := make([]ClientSummary, 0, len(clients))
	for _, c := range clients {
		summary := ClientSummary{
			ID:      c.ID,
			Name:    FullName(c.FirstName, c.LastName),
			Email:   c.Email,
			Company: c.Company,
			Created: c.Created,
			Status:  c.Status,
		}

		if ref, err := s.resolveReferrer(ctx, c.ID); err == nil && ref != nil {
			summary.HasReferrer = true
			summary.ReferrerName = &ref.Name
			summary.ReferrerEmail = &ref.Email
		}

		if _, ok, err := s.repo.AffiliateByClientID(ctx, c.ID); err == nil && ok {
			summary.IsAffiliate = true
		}

		out = append(out, summary)
	}

	if s.detailedLogs && s.audit != nil {
		t := term
		_ = s.audit.Record(ctx, auditlog.Entry{
			Actor:      actor,
			Action:     auditlog.ActionSearch,
			SearchTerm: &t,
		})
	}

	return out, nil
}

// Details assembles the full referral picture for one client.
func (s *Service) Details(ctx context.Context, clientID int64, actor auditlog.Actor) (Details, error) {
	client, err := s.repo.ClientByID(ctx, clientID)
	if err != nil {
		return Details{}, err
	}

	d := Details{Client: client}

	if ref, err := s.resolveReferrer(ctx, clientID); err == nil && ref != nil {
		d.HasReferrer = true
		d.Referrer = ref
	}

	if affiliate, ok, err := s.repo.AffiliateByClientID(ctx, clientID); err == nil && ok {
		d.IsAffiliate = true
		if stats, err := s.affiliateStats(ctx, affiliate); err == nil {
			d.AffiliateStats = stats
		}
	}

	if d.Usage.TotalServices, err = s.repo.ServiceCount(ctx, clientID); err != nil {
		return Details{}, err
	}
	if d.Usage.TotalInvoices, err = s.repo.InvoiceCount(ctx, clientID); err != nil {
		return Details{}, err
	}

	if s.detailedLogs && s.audit != nil {
		_ = s.audit.Record(ctx, auditlog.Entry{
			Actor:    actor,
			ClientID: clientID,
			Action:   auditlog.ActionViewDetails,
		})
	}

	return d, nil
}

// Tree walks the clients referred, directly or transitively, by the given
// client. Recursion stops at the depth bound or at clients who are not
// affiliates.
func (s *Service) Tree(ctx context.Context, clientID int64) ([]TreeNode, error) {
	return s.walk(ctx, clientID, 0)
}

// Stats returns the page-header counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) walk(ctx context.Context, clientID int64, depth int) ([]TreeNode, error) {
	if depth > s.maxDepth {
		return nil, nil
	}

	affiliate, ok, err := s.repo.AffiliateByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	serviceIDs, err := s.repo.ClaimedServiceIDs(ctx, affiliate.ID)
	if err != nil {
		return nil, err
	}
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	ownerIDs, err := s.repo.ServiceOwners(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}

	nodes := make([]TreeNode, 0, len(ownerIDs))
	for _, ownerID := range ownerIDs {
		client, err := s.repo.ClientByID(ctx, ownerID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				continue
			}
			return nil, err
		}

		children, err := s.walk(ctx, client.ID, depth+1)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, TreeNode{
			ID:       client.ID,
			Name:     FullName(client.FirstName, client.LastName),
			Email:    client.Email,
			Created:  client.Created,
			Level:    depth + 1,
			Children: children,
		})
	}

	return nodes, nil
}

// resolveReferrer follows service ids to the first affiliate claim and
// through the affiliate record to the crediting client. A nil result with nil
// error means the client has no referrer on record.
func (s *Service) resolveReferrer(ctx context.Context, clientID int64) (*ReferrerInfo, error) {
	serviceIDs, err := s.repo.ServiceIDs(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	claim, ok, err := s.repo.FirstClaimForServices(ctx, serviceIDs)
	if err != nil || !ok {
		return nil, err
	}

	affiliate, ok, err := s.repo.AffiliateByID(ctx, claim.AffiliateID)
	if err != nil || !ok {
		return nil, err
	}

	referrer, err := s.repo.ClientByID(ctx, affiliate.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ReferrerInfo{
		ClientID:    referrer.ID,
		Name:        FullName(referrer.FirstName, referrer.LastName),
		Email:       referrer.Email,
		AffiliateID: affiliate.ID,
		ServiceID:   claim.ServiceID,
		LastPaid:    claim.LastPaid,
	}, nil
}

func (s *Service) affiliateStats(ctx context.Context, affiliate Affiliate) (*AffiliateStats, error) {
	count, err := s.repo.ReferralCount(ctx, affiliate.ID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CommissionTotal(ctx, affiliate.ID)
	if err != nil {
		return nil, err
	}
	return &AffiliateStats{
		TotalReferrals:   count,
		TotalCommissions: total,
		SignupDate:       affiliate.SignupDate,
	}, nil
}

// FullName joins the name parts the way the billing system displays them.
func FullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

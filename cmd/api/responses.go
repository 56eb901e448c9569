package main

import (
	"time"

	"refdesk/conflict"
	"refdesk/lookup"
)

// Action responses always carry a status field. The admin page's script
// branches on it rather than on HTTP status codes.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusNotFound = "not_found"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type notFoundResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type clientResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Created string `json:"created"`
	Status  string `json:"status"`
}

type clientSummaryResponse struct {
	clientResponse
	HasReferrer   bool    `json:"has_referrer"`
	ReferrerName  *string `json:"referrer_name,omitempty"`
	ReferrerEmail *string `json:"referrer_email,omitempty"`
	IsAffiliate   bool    `json:"is_affiliate"`
}

type searchResponse struct {
	Status  string                  `json:"status"`
	Results []clientSummaryResponse `json:"results"`
	Count   int                     `json:"count"`
}

type referrerResponse struct {
	ClientID    int64   `json:"client_id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	AffiliateID int64   `json:"affiliate_id"`
	ServiceID   int64   `json:"service_id"`
	LastPaid    *string `json:"last_paid"`
}

type affiliateStatsResponse struct {
	TotalReferrals   int64   `json:"total_referrals"`
	TotalCommissions float64 `json:"total_commissions"`
	SignupDate       string  `json:"signup_date"`
}

type usageResponse struct {
	TotalServices int64 `json:"total_services"`
	TotalInvoices int64 `json:"total_invoices"`
}

type treeNodeResponse struct {
	ID       int64              `json:"id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Created  string             `json:"created"`
	Level    int                `json:"level"`
	Children []treeNodeResponse `json:"children,omitempty"`
}

type detailsResponse struct {
	Status         string                  `json:"status"`
	Client         clientResponse          `json:"client"`
	HasReferrer    bool                    `json:"has_referrer"`
	Referrer       *referrerResponse       `json:"referrer,omitempty"`
	IsAffiliate    bool                    `json:"is_affiliate"`
	AffiliateStats *affiliateStatsResponse `json:"affiliate_stats,omitempty"`
	Usage          usageResponse           `json:"usage"`
}

type treeResponse struct {
	Status string             `json:"status"`
	Tree   []treeNodeResponse `json:"tree"`
}

type candidateResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Source   string `json:"source"`
	Details  string `json:"details"`
	Priority int    `json:"priority"`
}

type claimRecordResponse struct {
	Table          string  `json:"table"`
	ClaimID        int64   `json:"claim_id"`
	AffiliateID    int64   `json:"affiliate_id"`
	ServiceID      int64   `json:"service_id"`
	AffiliateName  string  `json:"affiliate_name"`
	AffiliateEmail string  `json:"affiliate_email"`
	LastPaid       *string `json:"last_paid"`
	Source         string  `json:"source"`
}

type additionalSourceResponse struct {
	Type      string `json:"type"`
	FieldName string `json:"field_name,omitempty"`
	Value     string `json:"value,omitempty"`
	Count     int    `json:"count,omitempty"`
	Source    string `json:"source"`
}

type sourceResultResponse struct {
	Source     string `json:"source"`
	Available  bool   `json:"available"`
	Candidates int    `json:"candidates"`
}

type conflictSummaryResponse struct {
	TotalClaims       int `json:"total_claims"`
	UniqueAffiliates  int `json:"unique_affiliates"`
	DatabaseReferrers int `json:"database_referrers"`
	AffiliateClaims   int `json:"affiliate_claims"`
	AdditionalSources int `json:"additional_sources"`
}

type conflictResponse struct {
	Status                  string                     `json:"status"`
	Client                  clientResponse             `json:"client"`
	HasLegacyReferrerColumn bool                       `json:"has_legacy_referrer_column"`
	LegacyReferrerID        *int64                     `json:"legacy_referrer_id"`
	Referrers               []candidateResponse        `json:"referrers"`
	Claims                  []claimRecordResponse      `json:"claims"`
	AdditionalSources       []additionalSourceResponse `json:"additional_sources"`
	Sources                 []sourceResultResponse     `json:"sources"`
	ConflictDetected        bool                       `json:"conflict_detected"`
	Severity                string                     `json:"severity"`
	Message                 string                     `json:"message"`
	Summary                 conflictSummaryResponse    `json:"summary"`
}

type loginResponse struct {
	Token string `json:"token"`
	Admin struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"admin"`
}

func toClientResponse(id int64, name, email, company string, created time.Time, status string) clientResponse {
	return clientResponse{
		ID:      id,
		Name:    name,
		Email:   email,
		Company: company,
		Created: formatDate(created),
		Status:  status,
	}
}

func toSearchResponse(results []lookup.ClientSummary) searchResponse {
	out := make([]clientSummaryResponse, 0, len(results))
	for _, r := range results {
		out = append(out, clientSummaryResponse{
			clientResponse: toClientResponse(r.ID, r.Name, r.Email, r.Company, r.Created, r.Status),
			HasReferrer:    r.HasReferrer,
			ReferrerName:   r.ReferrerName,
			ReferrerEmail:  r.ReferrerEmail,
			IsAffiliate:    r.IsAffiliate,
		})
	}
	return searchResponse{Status: statusSuccess, Results: out, Count: len(out)}
}

func toDetailsResponse(d lookup.Details) detailsResponse {
	resp := detailsResponse{
		Status: statusSuccess,
		Client: toClientResponse(d.Client.ID, lookup.FullName(d.Client.FirstName, d.Client.LastName),
			d.Client.Email, d.Client.Company, d.Client.Created, d.Client.Status),
		HasReferrer: d.HasReferrer,
		IsAffiliate: d.IsAffiliate,
		Usage: usageResponse{
			TotalServices: d.Usage.TotalServices,
			TotalInvoices: d.Usage.TotalInvoices,
		},
	}
	if d.Referrer != nil {
		resp.Referrer = &referrerResponse{
			ClientID:    d.Referrer.ClientID,
			Name:        d.Referrer.Name,
			Email:       d.Referrer.Email,
			AffiliateID: d.Referrer.AffiliateID,
			ServiceID:   d.Referrer.ServiceID,
			LastPaid:    formatTimePtr(d.Referrer.LastPaid),
		}
	}
	if d.AffiliateStats != nil {
		resp.AffiliateStats = &affiliateStatsResponse{
			TotalReferrals:   d.AffiliateStats.TotalReferrals,
			TotalCommissions: d.AffiliateStats.TotalCommissions,
			SignupDate:       formatDate(d.AffiliateStats.SignupDate),
		}
	}
	return resp
}

func toTreeResponse(nodes []lookup.TreeNode) []treeNodeResponse {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]treeNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, treeNodeResponse{
			ID:       n.ID,
			Name:     n.Name,
			Email:    n.Email,
			Created:  formatDate(n.Created),
			Level:    n.Level,
			Children: toTreeResponse(n.Children),
		})
	}
	return out
}

func toConflictResponse(r conflict.Report) conflictResponse {
	resp := conflictResponse{
		Status: statusSuccess,
		Client: toClientResponse(r.Client.ID, clientDisplayName(r.Client),
			r.Client.Email, r.Client.Company, r.Client.Created, r.Client.Status),
		HasLegacyReferrerColumn: r.HasLegacyReferrerColumn,
		LegacyReferrerID:        r.LegacyReferrerID,
		ConflictDetected:        r.ConflictDetected,
		Severity:                string(r.Severity),
		Message:                 r.Message,
		Summary: conflictSummaryResponse{
			TotalClaims:       r.Summary.TotalClaims,
			UniqueAffiliates:  r.Summary.UniqueAffiliates,
			DatabaseReferrers: r.Summary.DatabaseReferrers,
			AffiliateClaims:   r.Summary.AffiliateClaims,
			AdditionalSources: r.Summary.AdditionalSources,
		},
	}
	for _, c := range r.Referrers {
		resp.Referrers = append(resp.Referrers, candidateResponse{
			Type:     c.Type,
			Name:     c.Name,
			Email:    c.Email,
			Source:   c.Source,
			Details:  c.Details,
			Priority: c.Priority,
		})
	}
	for _, c := range r.Claims {
		resp.Claims = append(resp.Claims, claimRecordResponse{
			Table:          c.Table,
			ClaimID:        c.ClaimID,
			AffiliateID:    c.AffiliateID,
			ServiceID:      c.ServiceID,
			AffiliateName:  c.AffiliateName,
			AffiliateEmail: c.AffiliateEmail,
			LastPaid:       formatTimePtr(c.LastPaid),
			Source:         c.Source,
		})
	}
	for _, a := range r.AdditionalSources {
		resp.AdditionalSources = append(resp.AdditionalSources, additionalSourceResponse{
			Type:      a.Type,
			FieldName: a.FieldName,
			Value:     a.Value,
			Count:     a.Count,
			Source:    a.Source,
		})
	}
	for _, s := range r.Sources {
		resp.Sources = append(resp.Sources, sourceResultResponse{
			Source:     s.Source,
			Available:  s.Available,
			Candidates: s.Candidates,
		})
	}
	return resp
}

func clientDisplayName(c conflict.Client) string {
	name := lookup.FullName(c.FirstName, c.LastName)
	if name == "" {
		return c.Company
	}
	return name
}

// formatDate matches the display format the admin page always used.
func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

package lookup

import "time"

// ClientRow mirrors the columns this tool reads from the billing platform's
// client table. The table is owned by the host system and is read-only here.
type ClientRow struct {
	ID        int64
	FirstName string
	LastName  string
	Company   string
	Email     string
	Created   time.Time
	Status    string
}

// Claim is one row from the affiliate accounts table crediting a service
// purchase to an affiliate.
type Claim struct {
	ID          int64
	AffiliateID int64
	ServiceID   int64
	LastPaid    *time.Time
}

// Affiliate links an affiliate id to the client who is that affiliate.
type Affiliate struct {
	ID         int64
	ClientID   int64
	SignupDate time.Time
}

// ClientSummary is one search result annotated with referral evidence.
type ClientSummary struct {
	ID            int64
	Name          string
	Email         string
	Company       string
	Created       time.Time
	Status        string
	HasReferrer   bool
	ReferrerName  *string
	ReferrerEmail *string
	IsAffiliate   bool
}

// ReferrerInfo describes the crediting claim behind a client's referrer.
type ReferrerInfo struct {
	ClientID    int64
	Name        string
	Email       string
	AffiliateID int64
	ServiceID   int64
	LastPaid    *time.Time
}

// AffiliateStats aggregates a client's own affiliate activity.
type AffiliateStats struct {
	TotalReferrals   int64
	TotalCommissions float64
	SignupDate       time.Time
}

// UsageStats holds basic per-client usage counts.
type UsageStats struct {
	TotalServices int64
	TotalInvoices int64
}

// Details is the full referral picture for one client.
type Details struct {
	Client         ClientRow
	HasReferrer    bool
	Referrer       *ReferrerInfo
	IsAffiliate    bool
	AffiliateStats *AffiliateStats
	Usage          UsageStats
}

// TreeNode is one client in the referral tree. Children are the clients this
// client referred, one level deeper.
type TreeNode struct {
	ID       int64
	Name     string
	Email    string
	Created  time.Time
	Level    int
	Children []TreeNode
}

// Stats summarizes the database for the admin page header.
type Stats struct {
	Clients    int64
	Affiliates int64
}

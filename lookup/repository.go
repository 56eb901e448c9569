package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrClientNotFound signals that no client row matches the identifier.
	ErrClientNotFound = errors.New("lookup: client not found")
)

// Repository provides read access to the host billing schema. Every method is
// a flat lookup; nothing here writes.
type Repository interface {
	SearchClients(ctx context.Context, term string, limit int) ([]ClientRow, error)
	ClientByID(ctx context.Context, clientID int64) (ClientRow, error)
	ServiceIDs(ctx context.Context, clientID int64) ([]int64, error)
	FirstClaimForServices(ctx context.Context, serviceIDs []int64) (Claim, bool, error)
	AffiliateByID(ctx context.Context, affiliateID int64) (Affiliate, bool, error)
	AffiliateByClientID(ctx context.Context, clientID int64) (Affiliate, bool, error)
	ReferralCount(ctx context.Context, affiliateID int64) (int64, error)
	CommissionTotal(ctx context.Context, affiliateID int64) (float64, error)
	ServiceCount(ctx context.Context, clientID int64) (int64, error)
	InvoiceCount(ctx context.Context, clientID int64) (int64, error)
	ClaimedServiceIDs(ctx context.Context, affiliateID int64) ([]int64, error)
	ServiceOwners(ctx context.Context, serviceIDs []int64) ([]int64, error)
	Stats(ctx context.Context) (Stats, error)
}

// PGRepository implements Repository over the billing database.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const clientColumns = `id, firstname, lastname, companyname, email, datecreated, status`

// SearchClients matches the term case-insensitively against name, email and
// company, newest clients first.
func (r *PGRepository) SearchClients(ctx context.Context, term string, limit int) ([]ClientRow, error) {
	const query = `
		SELECT ` + clientColumns + `
		FROM tblclients
		WHERE firstname ILIKE $1 OR lastname ILIKE $1 OR email ILIKE $1 OR companyname ILIKE $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("lookup: search clients: %w", err)
	}
	defer rows.Close()

	out := make([]ClientRow, 0, 16)
	for rows.Next() {
		var c ClientRow
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Company, &c.Email, &c.Created, &c.Status); err != nil {
			return nil, fmt.Errorf("lookup: scan client: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup: iterate clients: %w", err)
	}
	return out, nil
}

func (r *PGRepository) ClientByID(ctx context.Context, clientID int64) (ClientRow, error) {
	const query = `SELECT ` + clientColumns + ` FROM tblclients WHERE id = $1`

	var c ClientRow
	err := r.pool.QueryRow(ctx, query, clientID).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Company, &c.Email, &c.Created, &c.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClientRow{}, ErrClientNotFound
		}
		return ClientRow{}, fmt.Errorf("lookup: get client: %w", err)
	}
	return c, nil
}

func (r *PGRepository) ServiceIDs(ctx context.Context, clientID int64) ([]int64, error) {
	const query = `SELECT id FROM tblhosting WHERE userid = $1`
	return r.queryIDs(ctx, query, clientID)
}

// FirstClaimForServices returns the first affiliate claim covering any of the
// given service ids, if one exists.
func (r *PGRepository) FirstClaimForServices(ctx context.Context, serviceIDs []int64) (Claim, bool, error) {
	if len(serviceIDs) == 0 {
		return Claim{}, false, nil
	}

	const query = `
		SELECT id, affiliateid, relid, lastpaid
		FROM tblaffiliatesaccounts
		WHERE relid = ANY($1)
		ORDER BY id
		LIMIT 1
	`

	var c Claim
	err := r.pool.QueryRow(ctx, query, serviceIDs).Scan(&c.ID, &c.AffiliateID, &c.ServiceID, &c.LastPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, false, nil
		}
		return Claim{}, false, fmt.Errorf("lookup: claim for services: %w", err)
	}
	return c, true, nil
}

func (r *PGRepository) AffiliateByID(ctx context.Context, affiliateID int64) (Affiliate, bool, error) {
	const query = `SELECT id, clientid, date FROM tblaffiliates WHERE id = $1`

	var a Affiliate
	err := r.pool.QueryRow(ctx, query, affiliateID).Scan(&a.ID, &a.ClientID, &a.SignupDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Affiliate{}, false, nil
		}
		return Affiliate{}, false, fmt.Errorf("lookup: affiliate by id: %w", err)
	}
	return a, true, nil
}

func (r *PGRepository) AffiliateByClientID(ctx context.Context, clientID int64) (Affiliate, bool, error) {
	const query = `SELECT id, clientid, date FROM tblaffiliates WHERE clientid = $1 ORDER BY id LIMIT 1`

	var a Affiliate
	err := r.pool.QueryRow(ctx, query, clientID).Scan(&a.ID, &a.ClientID, &a.SignupDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Affiliate{}, false, nil
		}
		return Affiliate{}, false, fmt.Errorf("lookup: affiliate by client: %w", err)
	}
	return a, true, nil
}

func (r *PGRepository) ReferralCount(ctx context.Context, affiliateID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM tblaffiliatesaccounts WHERE affiliateid = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, query, affiliateID).Scan(&n); err != nil {
		return 0, fmt.Errorf("lookup: referral count: %w", err)
	}
	return n, nil
}

func (r *PGRepository) CommissionTotal(ctx context.Context, affiliateID int64) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM tblaffiliateshistory WHERE affiliateid = $1`

	var total float64
	if err := r.pool.QueryRow(ctx, query, affiliateID).Scan(&total); err != nil {
		return 0, fmt.Errorf("lookup: commission total: %w", err)
	}
	return total, nil
}

func (r *PGRepository) ServiceCount(ctx context.Context, clientID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM tblhosting WHERE userid = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("lookup: service count: %w", err)
	}
	return n, nil
}

func (r *PGRepository) InvoiceCount(ctx context.Context, clientID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM tblinvoices WHERE userid = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("lookup: invoice count: %w", err)
	}
	return n, nil
}

func (r *PGRepository) ClaimedServiceIDs(ctx context.Context, affiliateID int64) ([]int64, error) {
	const query = `SELECT relid FROM tblaffiliatesaccounts WHERE affiliateid = $1`
	return r.queryIDs(ctx, query, affiliateID)
}

// ServiceOwners maps service ids back to their owning client ids, preserving
// service order.
func (r *PGRepository) ServiceOwners(ctx context.Context, serviceIDs []int64) ([]int64, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	const query = `SELECT userid FROM tblhosting WHERE id = ANY($1) ORDER BY id`
	return r.queryIDs(ctx, query, serviceIDs)
}

// Stats counts clients and affiliates for the page header. A missing
// affiliate table degrades to a zero count instead of failing.
func (r *PGRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tblclients`).Scan(&s.Clients); err != nil {
		return Stats{}, fmt.Errorf("lookup: count clients: %w", err)
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tblaffiliates`).Scan(&s.Affiliates); err != nil {
		s.Affiliates = 0
	}
	return s, nil
}

func (r *PGRepository) queryIDs(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("lookup: query ids: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0, 8)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("lookup: scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup: iterate ids: %w", err)
	}
	return out, nil
}

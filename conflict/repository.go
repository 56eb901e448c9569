package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrClientNotFound signals that no client carries the given email.
	ErrClientNotFound = errors.New("conflict: client not found")
)

// Claim is a raw affiliate-accounts row before resolution.
type Claim struct {
	ID          int64
	AffiliateID int64
	ServiceID   int64
	LastPaid    *time.Time
}

// AuxClaim is a raw row from an auxiliary source table.
type AuxClaim struct {
	ID          int64
	AffiliateID int64
}

// FieldMention is a custom-field value on a referral-related field.
type FieldMention struct {
	FieldName string
	Value     string
}

// Repository provides the independent lookups the analysis merges. All reads;
// the analysis never writes.
type Repository interface {
	ClientByEmail(ctx context.Context, email string) (Client, error)
	ClientByID(ctx context.Context, clientID int64) (Client, bool, error)
	LegacyReferrerID(ctx context.Context, clientID int64) (*int64, error)
	ServiceIDs(ctx context.Context, clientID int64) ([]int64, error)
	ClaimsForServices(ctx context.Context, serviceIDs []int64) ([]Claim, error)
	AffiliateClientID(ctx context.Context, affiliateID int64) (int64, bool, error)
	AuxClaims(ctx context.Context, src AuxSource, clientID int64) ([]AuxClaim, error)
	CustomFieldMentions(ctx context.Context, clientID int64) ([]FieldMention, error)
	TicketMentionCount(ctx context.Context, clientID int64) (int64, error)
}

// PGRepository implements Repository over the billing database.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const clientColumns = `id, firstname, lastname, companyname, email, datecreated, status`

func (r *PGRepository) ClientByEmail(ctx context.Context, email string) (Client, error) {
	const query = `SELECT ` + clientColumns + ` FROM tblclients WHERE email = $1 ORDER BY id LIMIT 1`

	c, err := scanClient(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, fmt.Errorf("conflict: client by email: %w", err)
	}
	return c, nil
}

func (r *PGRepository) ClientByID(ctx context.Context, clientID int64) (Client, bool, error) {
	const query = `SELECT ` + clientColumns + ` FROM tblclients WHERE id = $1`

	c, err := scanClient(r.pool.QueryRow(ctx, query, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, false, nil
		}
		return Client{}, false, fmt.Errorf("conflict: client by id: %w", err)
	}
	return c, true, nil
}

// LegacyReferrerID reads the optional referrer_id column. Callers must gate
// this on the startup capability check.
func (r *PGRepository) LegacyReferrerID(ctx context.Context, clientID int64) (*int64, error) {
	const query = `SELECT referrer_id FROM tblclients WHERE id = $1`

	var ref *int64
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&ref); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("conflict: legacy referrer id: %w", err)
	}
	return ref, nil
}

func (r *PGRepository) ServiceIDs(ctx context.Context, clientID int64) ([]int64, error) {
	const query = `SELECT id FROM tblhosting WHERE userid = $1`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("conflict: service ids: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0, 8)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("conflict: scan service id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conflict: iterate service ids: %w", err)
	}
	return out, nil
}

func (r *PGRepository) ClaimsForServices(ctx context.Context, serviceIDs []int64) ([]Claim, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	const query = `
		SELECT id, affiliateid, relid, lastpaid
		FROM tblaffiliatesaccounts
		WHERE relid = ANY($1)
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("conflict: claims for services: %w", err)
	}
	defer rows.Close()

	out := make([]Claim, 0, 4)
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.AffiliateID, &c.ServiceID, &c.LastPaid); err != nil {
			return nil, fmt.Errorf("conflict: scan claim: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conflict: iterate claims: %w", err)
	}
	return out, nil
}

func (r *PGRepository) AffiliateClientID(ctx context.Context, affiliateID int64) (int64, bool, error) {
	const query = `SELECT clientid FROM tblaffiliates WHERE id = $1`

	var clientID int64
	if err := r.pool.QueryRow(ctx, query, affiliateID).Scan(&clientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("conflict: affiliate client id: %w", err)
	}
	return clientID, true, nil
}

// AuxClaims scans one declared auxiliary source. The table and key column
// come from the static descriptor, never from user input.
func (r *PGRepository) AuxClaims(ctx context.Context, src AuxSource, clientID int64) ([]AuxClaim, error) {
	query := fmt.Sprintf(`SELECT id, affiliateid FROM %s WHERE %s = $1 ORDER BY id`, src.Table, src.KeyColumn)

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("conflict: scan %s: %w", src.Table, err)
	}
	defer rows.Close()

	out := make([]AuxClaim, 0, 4)
	for rows.Next() {
		var c AuxClaim
		if err := rows.Scan(&c.ID, &c.AffiliateID); err != nil {
			return nil, fmt.Errorf("conflict: scan %s row: %w", src.Table, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conflict: iterate %s: %w", src.Table, err)
	}
	return out, nil
}

// CustomFieldMentions returns values of client custom fields whose names
// suggest referral tracking.
func (r *PGRepository) CustomFieldMentions(ctx context.Context, clientID int64) ([]FieldMention, error) {
	const query = `
		SELECT f.fieldname, v.value
		FROM tblcustomfields f
		JOIN tblcustomfieldsvalues v ON v.fieldid = f.id
		WHERE f.type = 'client'
		  AND (f.fieldname ILIKE '%refer%' OR f.fieldname ILIKE '%affiliate%')
		  AND v.relid = $1
		  AND v.value <> ''
	`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("conflict: custom field mentions: %w", err)
	}
	defer rows.Close()

	out := make([]FieldMention, 0, 2)
	for rows.Next() {
		var m FieldMention
		if err := rows.Scan(&m.FieldName, &m.Value); err != nil {
			return nil, fmt.Errorf("conflict: scan field mention: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conflict: iterate field mentions: %w", err)
	}
	return out, nil
}

// TicketMentionCount counts support ticket replies by this client that
// mention referrals or affiliates.
func (r *PGRepository) TicketMentionCount(ctx context.Context, clientID int64) (int64, error) {
	const query = `
		SELECT COUNT(*)
		FROM tblticketreplies
		WHERE userid = $1
		  AND (message ILIKE '%refer%' OR message ILIKE '%affiliate%')
	`

	var n int64
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("conflict: ticket mention count: %w", err)
	}
	return n, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Company, &c.Email, &c.Created, &c.Status); err != nil {
		return Client{}, err
	}
	return c, nil
}

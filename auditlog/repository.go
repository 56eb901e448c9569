package auditlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository appends audit rows. The log table is never updated or pruned.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed audit log repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one audit row. The timestamp is assigned by the database.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	const insertSQL = `
		INSERT INTO mod_referral_lookup_logs (admin_id, admin_name, client_id, action, search_term, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, insertSQL,
		entry.Actor.AdminID,
		entry.Actor.AdminName,
		entry.ClientID,
		entry.Action,
		entry.SearchTerm,
		entry.Actor.IP,
	)
	if err != nil {
		return fmt.Errorf("auditlog: insert: %w", err)
	}
	return nil
}

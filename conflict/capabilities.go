package conflict

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Capabilities records which optional pieces of the host schema exist. It is
// detected once at startup instead of introspecting the schema per call.
type Capabilities struct {
	LegacyReferrerColumn bool
	ReferrersTable       bool
	HistoryTable         bool
	CustomFields         bool
	TicketReplies        bool
}

// DetectCapabilities probes the host schema for the optional tables and
// columns the analysis can draw on.
func DetectCapabilities(ctx context.Context, pool *pgxpool.Pool) (Capabilities, error) {
	var caps Capabilities
	var err error

	if caps.LegacyReferrerColumn, err = columnExists(ctx, pool, "tblclients", "referrer_id"); err != nil {
		return Capabilities{}, err
	}
	if caps.ReferrersTable, err = tableExists(ctx, pool, "tblaffiliates_referrers"); err != nil {
		return Capabilities{}, err
	}
	if caps.HistoryTable, err = tableExists(ctx, pool, "tblaffiliateshistory"); err != nil {
		return Capabilities{}, err
	}

	customFields, err := tableExists(ctx, pool, "tblcustomfields")
	if err != nil {
		return Capabilities{}, err
	}
	customValues, err := tableExists(ctx, pool, "tblcustomfieldsvalues")
	if err != nil {
		return Capabilities{}, err
	}
	caps.CustomFields = customFields && customValues

	if caps.TicketReplies, err = tableExists(ctx, pool, "tblticketreplies"); err != nil {
		return Capabilities{}, err
	}

	return caps, nil
}

// auxAvailable reports whether a declared auxiliary source exists in this
// installation.
func (c Capabilities) auxAvailable(src AuxSource) bool {
	switch src.Table {
	case "tblaffiliates_referrers":
		return c.ReferrersTable
	case "tblaffiliateshistory":
		return c.HistoryTable
	default:
		return false
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`
	var exists bool
	if err := pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("conflict: probe table %s: %w", name, err)
	}
	return exists, nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, table, column string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)
	`
	var exists bool
	if err := pool.QueryRow(ctx, query, table, column).Scan(&exists); err != nil {
		return false, fmt.Errorf("conflict: probe column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_audit_actor_present",
			SQL: `SELECT id, action FROM mod_referral_lookup_logs
                  WHERE admin_id = '' OR admin_name = ''`,
		},
		{
			Name: "O2_audit_action_known",
			SQL: `SELECT id, action FROM mod_referral_lookup_logs
                  WHERE action NOT IN ('search', 'view_details', 'check_conflicts')`,
		},
		{
			Name: "O3_audit_no_future_timestamps",
			SQL: `SELECT id, created_at FROM mod_referral_lookup_logs
                  WHERE created_at > now() + interval '5 seconds'`,
		},
		{
			Name: "O4_search_term_only_for_searches",
			SQL: `SELECT id, action, search_term FROM mod_referral_lookup_logs
                  WHERE search_term IS NOT NULL AND action <> 'search'`,
		},
		{
			Name: "O5_claims_reference_existing_services",
			SQL: `SELECT a.id, a.relid FROM tblaffiliatesaccounts a
                  LEFT JOIN tblhosting h ON h.id = a.relid
                  WHERE h.id IS NULL`,
		},
		{
			Name: "O6_affiliates_reference_existing_clients",
			SQL: `SELECT a.id, a.clientid FROM tblaffiliates a
                  LEFT JOIN tblclients c ON c.id = a.clientid
                  WHERE c.id IS NULL`,
		},
		{
			Name: "O7_services_reference_existing_clients",
			SQL: `SELECT h.id, h.userid FROM tblhosting h
                  LEFT JOIN tblclients c ON c.id = h.userid
                  WHERE c.id IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}

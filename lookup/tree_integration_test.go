package lookup

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"refdesk/auditlog"
)

func TestTreeAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, tbl := range []string{"tblclients", "tblhosting", "tblaffiliates", "tblaffiliatesaccounts"} {
		if !tableExists(t, ctx, pool, tbl) {
			t.Skipf("table %s does not exist; ensure migrations are applied", tbl)
		}
	}

	mustInsert := func(query string, args ...any) int64 {
		var id int64
		if err := pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			t.Fatalf("seed statement failed: %v", err)
		}
		return id
	}

	stamp := time.Now().UnixNano()

	// A referral chain: root refers middle, middle refers leaf.
	root := mustInsert(`INSERT INTO tblclients (firstname, lastname, email) VALUES ('Root', 'Referrer', $1) RETURNING id`,
		fmt.Sprintf("root+%d@example.com", stamp))
	middle := mustInsert(`INSERT INTO tblclients (firstname, lastname, email) VALUES ('Middle', 'Link', $1) RETURNING id`,
		fmt.Sprintf("middle+%d@example.com", stamp))
	leaf := mustInsert(`INSERT INTO tblclients (firstname, lastname, email) VALUES ('Leaf', 'Node', $1) RETURNING id`,
		fmt.Sprintf("leaf+%d@example.com", stamp))

	affRoot := mustInsert(`INSERT INTO tblaffiliates (clientid) VALUES ($1) RETURNING id`, root)
	affMiddle := mustInsert(`INSERT INTO tblaffiliates (clientid) VALUES ($1) RETURNING id`, middle)

	svcMiddle := mustInsert(`INSERT INTO tblhosting (userid) VALUES ($1) RETURNING id`, middle)
	svcLeaf := mustInsert(`INSERT INTO tblhosting (userid) VALUES ($1) RETURNING id`, leaf)

	claimMiddle := mustInsert(`INSERT INTO tblaffiliatesaccounts (affiliateid, relid) VALUES ($1, $2) RETURNING id`, affRoot, svcMiddle)
	claimLeaf := mustInsert(`INSERT INTO tblaffiliatesaccounts (affiliateid, relid) VALUES ($1, $2) RETURNING id`, affMiddle, svcLeaf)

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM tblaffiliatesaccounts WHERE id IN ($1, $2)`, claimMiddle, claimLeaf)
		pool.Exec(ctx2, `DELETE FROM tblhosting WHERE id IN ($1, $2)`, svcMiddle, svcLeaf)
		pool.Exec(ctx2, `DELETE FROM tblaffiliates WHERE id IN ($1, $2)`, affRoot, affMiddle)
		pool.Exec(ctx2, `DELETE FROM tblclients WHERE id IN ($1, $2, $3)`, root, middle, leaf)
	})

	svc := NewService(NewRepository(pool))

	tree, err := svc.Tree(ctx, root)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("expected 1 direct referral, got %d", len(tree))
	}
	if tree[0].ID != middle || tree[0].Level != 1 {
		t.Fatalf("unexpected first level: %+v", tree[0])
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].ID != leaf || tree[0].Children[0].Level != 2 {
		t.Fatalf("unexpected second level: %+v", tree[0].Children)
	}

	details, err := svc.Details(ctx, middle, auditlog.Actor{})
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if !details.HasReferrer || details.Referrer == nil || details.Referrer.ClientID != root {
		t.Fatalf("middle client should be credited to root: %+v", details.Referrer)
	}
	if !details.IsAffiliate {
		t.Fatal("middle client should be an affiliate")
	}
}

func tableExists(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`
	var exists bool
	if err := pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		t.Fatalf("probe table %s: %v", name, err)
	}
	return exists
}

package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"refdesk/auditlog"
	"refdesk/conflict"
	"refdesk/lookup"
)

// The reader actors tolerate individual call failures. Chaos kills backend
// connections mid-query, so a failed call proves nothing; the oracles judge
// the database state instead.

// Searcher runs searches with terms of varying quality, including terms the
// service must reject before touching the database.
func Searcher(ctx context.Context, svc *lookup.Service, terms []string, actor auditlog.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		term := terms[rand.Intn(len(terms))]
		if rand.Intn(10) == 0 {
			term = "x"
		}
		_, _ = svc.Search(ctx, term, actor)
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// DetailViewer loads details and referral trees for known and unknown ids.
func DetailViewer(ctx context.Context, svc *lookup.Service, clientIDs []int64, actor auditlog.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		id := clientIDs[rand.Intn(len(clientIDs))]
		if rand.Intn(8) == 0 {
			id += 1_000_000
		}
		if _, err := svc.Details(ctx, id, actor); err == nil {
			_, _ = svc.Tree(ctx, id)
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// ConflictChecker hammers the multi-source analysis with known and unknown
// emails.
func ConflictChecker(ctx context.Context, svc *conflict.Service, emails []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		email := emails[rand.Intn(len(emails))]
		if rand.Intn(6) == 0 {
			email = fmt.Sprintf("nobody-%d@example.com", rand.Int63())
		}
		_, _ = svc.Check(ctx, email)
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// SignupWriter inserts new clients, services and affiliate claims while the
// readers run, so searches and trees see the data move underneath them.
func SignupWriter(ctx context.Context, pool *pgxpool.Pool, affiliateIDs []int64, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		n := rand.Int63()
		var clientID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO tblclients (firstname, lastname, email) VALUES ('Stress', $1, $2) RETURNING id`,
			fmt.Sprintf("Client%d", n), fmt.Sprintf("stress-%d@example.com", n)).Scan(&clientID)
		if err == nil {
			var serviceID int64
			if err := pool.QueryRow(ctx,
				`INSERT INTO tblhosting (userid) VALUES ($1) RETURNING id`, clientID).Scan(&serviceID); err == nil {
				affiliateID := affiliateIDs[rand.Intn(len(affiliateIDs))]
				_, _ = pool.Exec(ctx,
					`INSERT INTO tblaffiliatesaccounts (affiliateid, relid) VALUES ($1, $2)`, affiliateID, serviceID)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

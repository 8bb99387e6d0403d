// Package chaos injects faults into a running stress test. The only fault so
// far is killing random Postgres backends, which forces the services to
// surface (and the actors to survive) mid-transaction connection loss.
package chaos

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TerminateRandomBackends periodically kills one random backend belonging to
// the current database, excluding its own connection. Runs until ctx is done.
func TerminateRandomBackends(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Skip roughly half the ticks so the kill cadence is uneven.
			if rand.Intn(2) == 0 {
				continue
			}
			tag, err := pool.Exec(ctx, `
				SELECT pg_terminate_backend(pid)
				FROM pg_stat_activity
				WHERE datname = current_database()
				  AND pid <> pg_backend_pid()
				ORDER BY random()
				LIMIT 1`)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("chaos: terminate backend: %v", err)
				continue
			}
			if tag.RowsAffected() > 0 {
				log.Printf("chaos: terminated a backend")
			}
		}
	}
}

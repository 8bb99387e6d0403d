// Package oracles checks cross-row invariants that no single transaction can
// violate on its own. Each oracle is a query that must return zero rows; any
// row it returns is a counterexample.
package oracles

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

var All = []Oracle{
	{
		// Every payment splits without creating or destroying money.
		Name: "payment_split_conservation",
		SQL: `SELECT id, amount, landlord_amount, agent_amount
		      FROM payments
		      WHERE landlord_amount + agent_amount <> amount`,
	},
	{
		// Sequence numbers per agreement run 1..n with no gaps or repeats.
		Name: "payment_seq_contiguous",
		SQL: `SELECT agreement_id, COUNT(*) AS payments, MIN(seq) AS lo, MAX(seq) AS hi
		      FROM payments
		      GROUP BY agreement_id
		      HAVING MIN(seq) <> 1 OR MAX(seq) <> COUNT(*)`,
	},
	{
		// An agreement's rolled-up totals agree with its payment rows.
		Name: "agreement_totals_match_payments",
		SQL: `SELECT a.id, a.total_rent_paid, a.payment_count,
		             COALESCE(p.total, 0) AS row_total, COALESCE(p.n, 0) AS row_count
		      FROM agreements a
		      LEFT JOIN (
		          SELECT agreement_id, SUM(amount) AS total, COUNT(*) AS n
		          FROM payments GROUP BY agreement_id
		      ) p ON p.agreement_id = a.id
		      WHERE a.total_rent_paid <> COALESCE(p.total, 0)
		         OR a.payment_count <> COALESCE(p.n, 0)`,
	},
	{
		// Only exact-rent payments are ever accepted.
		Name: "payment_amount_equals_rent",
		SQL: `SELECT p.id, p.amount, a.monthly_rent
		      FROM payments p
		      JOIN agreements a ON a.id = p.agreement_id
		      WHERE p.amount <> a.monthly_rent`,
	},
	{
		// Money moved through transfers equals the landlord shares plus the
		// agent shares of agreements that actually have an agent. Agentless
		// agreements record their commission carve-out but transfer none of it.
		Name: "transfers_balance_payments",
		SQL: `SELECT t.total AS transferred, p.total AS owed
		      FROM (SELECT COALESCE(SUM(amount), 0) AS total FROM transfers) t,
		           (SELECT COALESCE(SUM(p.landlord_amount +
		                   CASE WHEN a.agent_id IS NOT NULL THEN p.agent_amount ELSE 0 END), 0) AS total
		            FROM payments p
		            JOIN agreements a ON a.id = p.agreement_id) p
		      WHERE t.total <> p.total`,
	},
	{
		// Global counters never lag behind the rows they count.
		Name: "protocol_counters_match_rows",
		SQL: `SELECT pr.agreement_count, pr.payment_count, pr.dispute_count,
		             (SELECT COUNT(*) FROM agreements) AS agreements,
		             (SELECT COUNT(*) FROM payments)   AS payments,
		             (SELECT COUNT(*) FROM disputes)   AS disputes
		      FROM protocol pr
		      WHERE pr.agreement_count <> (SELECT COUNT(*) FROM agreements)
		         OR pr.payment_count   <> (SELECT COUNT(*) FROM payments)
		         OR pr.dispute_count   <> (SELECT COUNT(*) FROM disputes)`,
	},
	{
		// Status values never leave the machine's vocabulary.
		Name: "agreement_status_known",
		SQL: `SELECT id, status FROM agreements
		      WHERE status NOT IN ('draft','active','completed','terminated','disputed')`,
	},
}

// Check runs every oracle and returns an error naming the first one that
// found a counterexample, with one sample row rendered for the log.
func Check(ctx context.Context, pool *pgxpool.Pool) error {
	for _, o := range All {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return fmt.Errorf("oracles: %s: query: %w", o.Name, err)
		}
		sample, found, err := firstRow(rows)
		if err != nil {
			return fmt.Errorf("oracles: %s: scan: %w", o.Name, err)
		}
		if found {
			return fmt.Errorf("oracles: %s violated: %s", o.Name, sample)
		}
	}
	return nil
}

func firstRow(rows pgx.Rows) (string, bool, error) {
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	vals, err := rows.Values()
	if err != nil {
		return "", false, err
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, " | "), true, nil
}

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no payment record exists for the identifier.
var ErrNotFound = errors.New("payment: not found")

const paymentColumns = `id, agreement_id, seq, amount, landlord_amount, agent_amount, asset, payer_id, paid_at`

// Repository handles data access for payment records. Records are insert-only;
// there is no update or delete path.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a payment record inside tx.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, rec Record) error {
	const insertSQL = `
		INSERT INTO payments
			(id, agreement_id, seq, amount, landlord_amount, agent_amount, asset, payer_id, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`

	_, err := tx.Exec(ctx, insertSQL,
		rec.ID,
		rec.AgreementID,
		rec.Seq,
		rec.Amount,
		rec.LandlordAmount,
		rec.AgentAmount,
		rec.Asset,
		rec.PayerID,
		rec.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("payment: insert record: %w", err)
	}
	return nil
}

// Get fetches a payment record by its id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, id))
}

// GetBySequence fetches a payment record by its (agreement, seq) key.
func (r *Repository) GetBySequence(ctx context.Context, agreementID string, seq uint32) (Record, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE agreement_id = $1 AND seq = $2`
	return scanRecord(r.pool.QueryRow(ctx, query, agreementID, seq))
}

// ListByAgreement returns an agreement's payment history in sequence order.
func (r *Repository) ListByAgreement(ctx context.Context, agreementID string) ([]Record, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE agreement_id = $1 ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("payment: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.AgreementID, &rec.Seq, &rec.Amount, &rec.LandlordAmount,
			&rec.AgentAmount, &rec.Asset, &rec.PayerID, &rec.PaidAt,
		); err != nil {
			return nil, fmt.Errorf("payment: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.AgreementID,
		&rec.Seq,
		&rec.Amount,
		&rec.LandlordAmount,
		&rec.AgentAmount,
		&rec.Asset,
		&rec.PayerID,
		&rec.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("payment: scan: %w", err)
	}
	return rec, nil
}

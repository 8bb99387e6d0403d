package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("dispute: not found")
	ErrBadStatus = errors.New("dispute: invalid status transition")
)

const disputeColumns = `id, agreement_id, opened_by, reason, status, created_at, updated_at, resolved_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates a dispute row inside the caller's transaction.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, agreementID, openedBy, reason string) (Record, error) {
	query := `
		INSERT INTO disputes (agreement_id, opened_by, reason)
		VALUES ($1, $2, $3)
		RETURNING ` + disputeColumns

	rec, err := scanRecord(tx.QueryRow(ctx, query, agreementID, openedBy, reason))
	if err != nil {
		return Record{}, fmt.Errorf("dispute: insert: %w", err)
	}
	return rec, nil
}

// ListByAgreement returns an agreement's disputes, newest first.
func (r *Repository) ListByAgreement(ctx context.Context, agreementID string) ([]Record, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE agreement_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 4)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// Resolve marks a dispute resolved. Already-resolved disputes fail with
// ErrBadStatus; missing ones with ErrNotFound.
func (r *Repository) Resolve(ctx context.Context, disputeID string) (Record, error) {
	query := `
		UPDATE disputes
		SET status = 'resolved', resolved_at = now(), updated_at = now()
		WHERE id = $1 AND status <> 'resolved'
		RETURNING ` + disputeColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, disputeID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("dispute: resolve: %w", err)
	}

	var status Status
	if err := r.pool.QueryRow(ctx, `SELECT status FROM disputes WHERE id = $1`, disputeID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: resolve fetch: %w", err)
	}
	return Record{}, ErrBadStatus
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.AgreementID,
		&rec.OpenedBy,
		&rec.Reason,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.ResolvedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

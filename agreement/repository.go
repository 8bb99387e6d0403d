package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no agreement exists for the identifier.
	ErrNotFound = errors.New("agreement: not found")
	// ErrDuplicate signals the caller-supplied id is already taken.
	ErrDuplicate = errors.New("agreement: duplicate id")
)

const agreementColumns = `id, landlord_id, tenant_id, agent_id, monthly_rent, security_deposit,
       start_date, end_date, commission_bps, status, total_rent_paid, payment_count,
       created_at, updated_at`

// Repository handles data access for agreements. Mutations take the caller's
// transaction so creation, counter bumps, and outbox writes commit together.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new agreement in draft state inside tx.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, params CreateParams) error {
	const insertSQL = `
		INSERT INTO agreements
			(id, landlord_id, tenant_id, agent_id, monthly_rent, security_deposit,
			 start_date, end_date, commission_bps, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'draft')
	`

	_, err := tx.Exec(ctx, insertSQL,
		params.ID,
		params.LandlordID,
		params.TenantID,
		params.AgentID,
		params.MonthlyRent,
		params.SecurityDeposit,
		params.StartDate,
		params.EndDate,
		params.CommissionBps,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("agreement: insert: %w", err)
	}

	return nil
}

// Get fetches an agreement outside any transaction.
func (r *Repository) Get(ctx context.Context, id string) (Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements WHERE id = $1`
	return scanAgreement(r.pool.QueryRow(ctx, query, id))
}

// GetForUpdate fetches an agreement inside tx holding a row lock, so status
// checks and total updates observe a stable row for the whole transaction.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements WHERE id = $1 FOR UPDATE`
	return scanAgreement(tx.QueryRow(ctx, query, id))
}

// UpdateStatus sets the lifecycle status inside tx. Transition validity is the
// service's responsibility.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, next Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE agreements SET status = $1, updated_at = now() WHERE id = $2
	`, next, id)
	if err != nil {
		return fmt.Errorf("agreement: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPayment folds one settled payment into the agreement totals.
func (r *Repository) ApplyPayment(ctx context.Context, tx pgx.Tx, id string, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE agreements
		SET total_rent_paid = total_rent_paid + $1,
		    payment_count = payment_count + 1,
		    updated_at = now()
		WHERE id = $2
	`, amount, id)
	if err != nil {
		return fmt.Errorf("agreement: apply payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAgreement(row pgx.Row) (Agreement, error) {
	var ag Agreement
	err := row.Scan(
		&ag.ID,
		&ag.LandlordID,
		&ag.TenantID,
		&ag.AgentID,
		&ag.MonthlyRent,
		&ag.SecurityDeposit,
		&ag.StartDate,
		&ag.EndDate,
		&ag.CommissionBps,
		&ag.Status,
		&ag.TotalRentPaid,
		&ag.PaymentCount,
		&ag.CreatedAt,
		&ag.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: scan: %w", err)
	}
	return ag, nil
}

package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAlreadyInitialized signals a second initialize attempt.
	ErrAlreadyInitialized = errors.New("protocol: already initialized")
	// ErrNotInitialized signals the protocol row is missing.
	ErrNotInitialized = errors.New("protocol: not initialized")
)

// Repository persists the singleton protocol state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed protocol repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates the singleton protocol row with zeroed counters.
func (r *Repository) Insert(ctx context.Context, adminID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO protocol (admin_id) VALUES ($1)`, adminID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("protocol: insert state: %w", err)
	}
	return nil
}

// Get fetches the protocol state, failing when initialize has not run.
func (r *Repository) Get(ctx context.Context) (State, error) {
	const query = `
		SELECT admin_id, agreement_count, payment_count, dispute_count, initialized_at
		FROM protocol
	`

	var st State
	err := r.pool.QueryRow(ctx, query).Scan(
		&st.AdminID,
		&st.AgreementCount,
		&st.PaymentCount,
		&st.DisputeCount,
		&st.InitializedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, ErrNotInitialized
		}
		return State{}, fmt.Errorf("protocol: get state: %w", err)
	}

	return st, nil
}

// GetCounters returns the protocol counters, all zero when uninitialized.
func (r *Repository) GetCounters(ctx context.Context) (Counters, error) {
	const query = `SELECT agreement_count, payment_count, dispute_count FROM protocol`

	var c Counters
	err := r.pool.QueryRow(ctx, query).Scan(&c.Agreements, &c.Payments, &c.Disputes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counters{}, nil
		}
		return Counters{}, fmt.Errorf("protocol: get counters: %w", err)
	}

	return c, nil
}

// Counter names accepted by IncrementCounter.
const (
	CounterAgreements = "agreement_count"
	CounterPayments   = "payment_count"
	CounterDisputes   = "dispute_count"
)

// Tally bumps protocol counters inside a caller's transaction. Stateless so
// services can share one value.
type Tally struct{}

func (Tally) Increment(ctx context.Context, tx pgx.Tx, counter string) error {
	return IncrementCounter(ctx, tx, counter)
}

// IncrementCounter bumps one protocol counter inside the caller's transaction.
// A missing protocol row is tolerated: the update simply touches zero rows,
// matching the read side which reports zero counters before initialize.
func IncrementCounter(ctx context.Context, tx pgx.Tx, counter string) error {
	switch counter {
	case CounterAgreements, CounterPayments, CounterDisputes:
	default:
		return fmt.Errorf("protocol: unknown counter %q", counter)
	}

	query := fmt.Sprintf(`UPDATE protocol SET %s = %s + 1`, counter, counter)
	if _, err := tx.Exec(ctx, query); err != nil {
		return fmt.Errorf("protocol: increment %s: %w", counter, err)
	}
	return nil
}

package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rentflow/protocol"
)

var (
	// ErrInvalidRent signals a non-positive monthly rent.
	ErrInvalidRent = errors.New("agreement: monthly rent must be positive")
	// ErrInvalidDateRange signals start_date >= end_date.
	ErrInvalidDateRange = errors.New("agreement: start date must precede end date")
	// ErrInvalidCommissionRate signals a rate outside 0..10000 basis points.
	ErrInvalidCommissionRate = errors.New("agreement: commission rate out of range")
	// ErrNotActive signals an operation that requires an active agreement.
	ErrNotActive = errors.New("agreement: not active")
	// ErrInvalidTransition signals a status edge outside the lifecycle.
	ErrInvalidTransition = errors.New("agreement: invalid status transition")
)

// MaxCommissionBps bounds the agent commission rate. The rate is expressed in
// basis points, 1 bp = 0.01%, so 10000 means the agent takes the full rent.
const MaxCommissionBps = 10000

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, params CreateParams) error
	Get(ctx context.Context, id string) (Agreement, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Agreement, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, next Status) error
}

// OutboxWriter enqueues an event inside the caller's transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// CounterWriter bumps a protocol counter inside the caller's transaction.
type CounterWriter interface {
	Increment(ctx context.Context, tx pgx.Tx, counter string) error
}

// Service owns agreement creation and the lifecycle state machine.
type Service struct {
	pool     TxBeginner
	repo     Store
	outbox   OutboxWriter
	counters CounterWriter
}

func NewService(pool TxBeginner, repo Store, outbox OutboxWriter, counters CounterWriter) *Service {
	return &Service{pool: pool, repo: repo, outbox: outbox, counters: counters}
}

// Create validates and persists a new agreement in draft state. All
// validation runs before the first write, so a failure leaves nothing behind:
// on success exactly one row, one counter bump, and one outbox message commit
// together.
func (s *Service) Create(ctx context.Context, params CreateParams) error {
	if params.ID == "" {
		return fmt.Errorf("agreement: id required")
	}
	if params.LandlordID == "" || params.TenantID == "" {
		return fmt.Errorf("agreement: landlord and tenant required")
	}
	if params.MonthlyRent <= 0 {
		return ErrInvalidRent
	}
	if params.StartDate >= params.EndDate {
		return ErrInvalidDateRange
	}
	if params.CommissionBps > MaxCommissionBps {
		return ErrInvalidCommissionRate
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Insert(ctx, tx, params); err != nil {
		return err
	}

	if err := s.counters.Increment(ctx, tx, protocol.CounterAgreements); err != nil {
		return err
	}

	payload := map[string]any{
		"agreement_id":   params.ID,
		"landlord_id":    params.LandlordID,
		"tenant_id":      params.TenantID,
		"monthly_rent":   params.MonthlyRent,
		"commission_bps": params.CommissionBps,
	}
	if err := s.outbox.Enqueue(ctx, tx, OutboxTopicCreated, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit: %w", err)
	}

	return nil
}

// Transition moves an agreement along the lifecycle. Invalid edges fail with
// ErrInvalidTransition and write nothing.
func (s *Service) Transition(ctx context.Context, params TransitionParams) error {
	if !ValidStatus(params.NextStatus) {
		return fmt.Errorf("agreement: unknown status %q", params.NextStatus)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, params.AgreementID)
	if err != nil {
		return err
	}

	if !ValidTransition(current.Status, params.NextStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, params.NextStatus)
	}

	if err := s.repo.UpdateStatus(ctx, tx, params.AgreementID, params.NextStatus); err != nil {
		return err
	}

	payload := map[string]any{
		"agreement_id": params.AgreementID,
		"previous":     current.Status,
		"next":         params.NextStatus,
	}
	if params.ActorID != "" {
		payload["actor_id"] = params.ActorID
	}
	if err := s.outbox.Enqueue(ctx, tx, OutboxTopicStatusChanged, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit transition: %w", err)
	}

	return nil
}

// Get returns the agreement for id.
func (s *Service) Get(ctx context.Context, id string) (Agreement, error) {
	return s.repo.Get(ctx, id)
}

// GetTotalPaid returns the cumulative rent settled against the agreement.
func (s *Service) GetTotalPaid(ctx context.Context, id string) (int64, error) {
	ag, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return ag.TotalRentPaid, nil
}

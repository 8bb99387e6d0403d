package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rentflow/agreement"
	"rentflow/auth"
	"rentflow/protocol"
	"rentflow/transfer"
)

var (
	// ErrInvalidAmount signals a payment that does not match the monthly rent.
	ErrInvalidAmount = errors.New("payment: amount must equal monthly rent")
	// ErrNotAuthorized signals the presented credential does not belong to the
	// agreement's tenant.
	ErrNotAuthorized = errors.New("payment: not authorized")
	// ErrTransferFailed wraps failures from the value-transfer backend.
	ErrTransferFailed = errors.New("payment: transfer failed")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RecordStore defines the payment data access required by the service.
type RecordStore interface {
	Insert(ctx context.Context, tx pgx.Tx, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	GetBySequence(ctx context.Context, agreementID string, seq uint32) (Record, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]Record, error)
}

// AgreementStore is the slice of the agreement repository the payment path
// touches: a locked read and the totals update.
type AgreementStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (agreement.Agreement, error)
	ApplyPayment(ctx context.Context, tx pgx.Tx, id string, amount int64) error
}

// Transferor executes a value movement inside the caller's transaction.
type Transferor interface {
	Transfer(ctx context.Context, tx pgx.Tx, ins transfer.Instruction) error
}

// TokenVerifier resolves a bearer credential to an identity.
type TokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

// OutboxWriter enqueues an event inside the caller's transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// CounterWriter bumps a protocol counter inside the caller's transaction.
type CounterWriter interface {
	Increment(ctx context.Context, tx pgx.Tx, counter string) error
}

// Service settles rent payments against active agreements.
type Service struct {
	pool       TxBeginner
	repo       RecordStore
	agreements AgreementStore
	transferor Transferor
	verifier   TokenVerifier
	outbox     OutboxWriter
	counters   CounterWriter
	idGen      func() string
	now        func() time.Time
}

func NewService(
	pool TxBeginner,
	repo RecordStore,
	agreements AgreementStore,
	transferor Transferor,
	verifier TokenVerifier,
	outbox OutboxWriter,
	counters CounterWriter,
) *Service {
	return &Service{
		pool:       pool,
		repo:       repo,
		agreements: agreements,
		transferor: transferor,
		verifier:   verifier,
		outbox:     outbox,
		counters:   counters,
		idGen:      func() string { return uuid.NewString() },
		now:        time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PayRent settles one rent payment. Every gate runs before any value moves:
// the agreement must exist and be active, the amount must match the monthly
// rent exactly, and the bearer token must resolve to the tenant. The split is
// floor(amount*rate/10000) to the agent with the landlord absorbing the
// remainder. Transfers, the payment record, the agreement totals, the
// protocol counter, and the rent.paid event commit as one transaction; any
// failure rolls the whole invocation back.
func (s *Service) PayRent(ctx context.Context, params PayRentParams) (Record, error) {
	if params.AgreementID == "" {
		return Record{}, fmt.Errorf("payment: agreement id required")
	}
	if params.Asset == "" {
		return Record{}, fmt.Errorf("payment: asset required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("payment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ag, err := s.agreements.GetForUpdate(ctx, tx, params.AgreementID)
	if err != nil {
		return Record{}, err
	}

	if ag.Status != agreement.StatusActive {
		return Record{}, agreement.ErrNotActive
	}

	if params.Amount != ag.MonthlyRent {
		return Record{}, ErrInvalidAmount
	}

	// Authorization before any value movement.
	payerID, _, err := s.verifier.VerifyToken(params.BearerToken)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}
	if payerID != ag.TenantID {
		return Record{}, ErrNotAuthorized
	}

	landlordAmount, agentAmount := Split(params.Amount, ag.CommissionBps)

	if err := s.transferor.Transfer(ctx, tx, transfer.Instruction{
		Asset:  params.Asset,
		FromID: ag.TenantID,
		ToID:   ag.LandlordID,
		Amount: landlordAmount,
	}); err != nil {
		return Record{}, fmt.Errorf("%w: landlord share: %v", ErrTransferFailed, err)
	}

	// A zero share or absent agent skips the second transfer. The recorded
	// split keeps the commission carve-out either way.
	if ag.AgentID != nil && agentAmount > 0 {
		if err := s.transferor.Transfer(ctx, tx, transfer.Instruction{
			Asset:  params.Asset,
			FromID: ag.TenantID,
			ToID:   *ag.AgentID,
			Amount: agentAmount,
		}); err != nil {
			return Record{}, fmt.Errorf("%w: agent share: %v", ErrTransferFailed, err)
		}
	}

	rec := Record{
		ID:             s.idGen(),
		AgreementID:    ag.ID,
		Seq:            ag.PaymentCount + 1,
		Amount:         params.Amount,
		LandlordAmount: landlordAmount,
		AgentAmount:    agentAmount,
		Asset:          params.Asset,
		PayerID:        payerID,
		PaidAt:         s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, tx, rec); err != nil {
		return Record{}, err
	}

	if err := s.agreements.ApplyPayment(ctx, tx, ag.ID, params.Amount); err != nil {
		return Record{}, err
	}

	if err := s.counters.Increment(ctx, tx, protocol.CounterPayments); err != nil {
		return Record{}, err
	}

	payload := map[string]any{
		"agreement_id":    ag.ID,
		"seq":             rec.Seq,
		"amount":          rec.Amount,
		"landlord_amount": rec.LandlordAmount,
		"agent_amount":    rec.AgentAmount,
		"paid_at":         rec.PaidAt,
	}
	if err := s.outbox.Enqueue(ctx, tx, OutboxTopicRentPaid, payload); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("payment: commit: %w", err)
	}

	return rec, nil
}

// GetPayment returns one payment record by id.
func (s *Service) GetPayment(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

// GetBySequence returns the n-th payment of an agreement.
func (s *Service) GetBySequence(ctx context.Context, agreementID string, seq uint32) (Record, error) {
	return s.repo.GetBySequence(ctx, agreementID, seq)
}

// ListByAgreement returns an agreement's full payment history.
func (s *Service) ListByAgreement(ctx context.Context, agreementID string) ([]Record, error) {
	return s.repo.ListByAgreement(ctx, agreementID)
}

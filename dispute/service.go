package dispute

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rentflow/agreement"
	"rentflow/protocol"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AgreementStore is the slice of the agreement repository disputes touch.
type AgreementStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (agreement.Agreement, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, next agreement.Status) error
}

// OutboxWriter enqueues an event inside the caller's transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// CounterWriter bumps a protocol counter inside the caller's transaction.
type CounterWriter interface {
	Increment(ctx context.Context, tx pgx.Tx, counter string) error
}

// RecordStore defines the dispute data access required by the service.
type RecordStore interface {
	Insert(ctx context.Context, tx pgx.Tx, agreementID, openedBy, reason string) (Record, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]Record, error)
	Resolve(ctx context.Context, disputeID string) (Record, error)
}

// Service opens disputes against active agreements. Resolution beyond
// flagging the dispute row is handled through the agreement lifecycle.
type Service struct {
	pool       TxBeginner
	repo       RecordStore
	agreements AgreementStore
	outbox     OutboxWriter
	counters   CounterWriter
}

func NewService(pool TxBeginner, repo RecordStore, agreements AgreementStore, outbox OutboxWriter, counters CounterWriter) *Service {
	return &Service{pool: pool, repo: repo, agreements: agreements, outbox: outbox, counters: counters}
}

// Open flags an agreement as disputed. The dispute row, the status change,
// the counter bump, and the dispute.opened event commit together.
func (s *Service) Open(ctx context.Context, agreementID, openedBy, reason string) (Record, error) {
	if openedBy == "" {
		return Record{}, fmt.Errorf("dispute: opened_by required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ag, err := s.agreements.GetForUpdate(ctx, tx, agreementID)
	if err != nil {
		return Record{}, err
	}

	if !agreement.ValidTransition(ag.Status, agreement.StatusDisputed) {
		return Record{}, fmt.Errorf("%w: %s -> %s", agreement.ErrInvalidTransition, ag.Status, agreement.StatusDisputed)
	}

	if err := s.agreements.UpdateStatus(ctx, tx, agreementID, agreement.StatusDisputed); err != nil {
		return Record{}, err
	}

	rec, err := s.repo.Insert(ctx, tx, agreementID, openedBy, reason)
	if err != nil {
		return Record{}, err
	}

	if err := s.counters.Increment(ctx, tx, protocol.CounterDisputes); err != nil {
		return Record{}, err
	}

	payload := map[string]any{
		"agreement_id": agreementID,
		"dispute_id":   rec.ID,
		"opened_by":    openedBy,
	}
	if err := s.outbox.Enqueue(ctx, tx, OutboxTopicOpened, payload); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit: %w", err)
	}

	return rec, nil
}

// List returns an agreement's disputes.
func (s *Service) List(ctx context.Context, agreementID string) ([]Record, error) {
	return s.repo.ListByAgreement(ctx, agreementID)
}

// Resolve marks the dispute row resolved. Moving the agreement back to
// active or on to terminated is a separate lifecycle transition.
func (s *Service) Resolve(ctx context.Context, disputeID string) (Record, error) {
	return s.repo.Resolve(ctx, disputeID)
}

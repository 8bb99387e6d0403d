package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentflow/agreement"
	"rentflow/auth"
	"rentflow/dispute"
	"rentflow/outbox"
	"rentflow/payment"
	"rentflow/protocol"
	"rentflow/test/infra"
	"rentflow/transfer"
)

// flakyPublisher fails its first n Publish calls and succeeds afterwards.
type flakyPublisher struct {
	failures int
	calls    int
}

func (p *flakyPublisher) Publish(context.Context, string, []byte) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	return nil
}

// TestOutboxRetriesUndelivered drains against a broker that fails: a message
// must stay pending and be retried on later drains, then be parked as failed
// once the attempt budget is exhausted.
func TestOutboxRetriesUndelivered(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs Docker")
	}

	base := infra.StartPostgres(t)
	pool := infra.ApplyMigrations(t, base)
	ctx := context.Background()

	insert := func(topic string) {
		if _, err := pool.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, '{}'::jsonb)`, topic); err != nil {
			t.Fatalf("insert outbox message: %v", err)
		}
	}
	messageState := func(topic string) (status string, attempts int) {
		err := pool.QueryRow(ctx, `SELECT status, attempts FROM outbox WHERE topic = $1`, topic).
			Scan(&status, &attempts)
		if err != nil {
			t.Fatalf("read outbox message: %v", err)
		}
		return status, attempts
	}

	insert("it.retry")
	pub := &flakyPublisher{failures: 1}
	worker := outbox.NewWorker(pool, pub)

	if _, err := worker.DrainOnce(ctx); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	if status, attempts := messageState("it.retry"); status != outbox.StatusPending || attempts != 1 {
		t.Fatalf("after failed delivery: status=%s attempts=%d, want pending/1", status, attempts)
	}

	if sent, err := worker.DrainOnce(ctx); err != nil || sent != 1 {
		t.Fatalf("second drain: sent=%d err=%v", sent, err)
	}
	if status, attempts := messageState("it.retry"); status != outbox.StatusSent || attempts != 2 {
		t.Fatalf("after retry: status=%s attempts=%d, want sent/2", status, attempts)
	}

	insert("it.deadletter")
	dead := &flakyPublisher{failures: 1 << 30}
	worker = outbox.NewWorker(pool, dead)

	for i := 0; i < 5; i++ {
		if _, err := worker.DrainOnce(ctx); err != nil {
			t.Fatalf("drain %d: %v", i+1, err)
		}
	}
	if status, attempts := messageState("it.deadletter"); status != outbox.StatusFailed || attempts != 5 {
		t.Fatalf("after budget: status=%s attempts=%d, want failed/5", status, attempts)
	}

	// A parked message is never claimed again.
	if _, err := worker.DrainOnce(ctx); err != nil {
		t.Fatalf("final drain: %v", err)
	}
	if dead.calls != 5 {
		t.Fatalf("publisher called %d times, want 5", dead.calls)
	}
}

// TestLifecycleEndToEnd walks one agreement through its whole life against a
// real Postgres: register parties, initialize the protocol, create and
// activate the agreement, settle two months of rent, dispute, resolve, and
// complete. Row-level effects are asserted directly with SQL.
func TestLifecycleEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs Docker")
	}

	base := infra.StartPostgres(t)
	pool := infra.ApplyMigrations(t, base)
	ctx := context.Background()

	authSvc := auth.NewService(auth.NewRepository(pool), "it-secret")
	protocolSvc := protocol.NewService(protocol.NewRepository(pool))
	agreementRepo := agreement.NewRepository(pool)
	outboxWriter := outbox.NewWriter()
	counters := protocol.Tally{}
	agreementSvc := agreement.NewService(pool, agreementRepo, outboxWriter, counters)
	paymentSvc := payment.NewService(pool, payment.NewRepository(pool), agreementRepo,
		transfer.NewRecorder(), authSvc, outboxWriter, counters)
	disputeSvc := dispute.NewService(pool, dispute.NewRepository(pool), agreementRepo,
		outboxWriter, counters)

	w := seed(t, authSvc, protocolSvc)

	const agreementID = "AGR-IT-1"
	err := agreementSvc.Create(ctx, agreement.CreateParams{
		ID:            agreementID,
		LandlordID:    w.LandlordID,
		TenantID:      w.TenantID,
		AgentID:       &w.AgentID,
		MonthlyRent:   1000,
		CommissionBps: 500,
		StartDate:     time.Now().Unix(),
		EndDate:       time.Now().AddDate(1, 0, 0).Unix(),
	})
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	if err := agreementSvc.Create(ctx, agreement.CreateParams{
		ID:          agreementID,
		LandlordID:  w.LandlordID,
		TenantID:    w.TenantID,
		MonthlyRent: 1000,
		StartDate:   time.Now().Unix(),
		EndDate:     time.Now().AddDate(1, 0, 0).Unix(),
	}); !errors.Is(err, agreement.ErrDuplicate) {
		t.Fatalf("recreate: want ErrDuplicate, got %v", err)
	}

	// Payments against a draft agreement are refused before any checks on
	// the amount or the payer.
	if _, err := paymentSvc.PayRent(ctx, payment.PayRentParams{
		AgreementID: agreementID, Asset: "USDC", Amount: 1000, BearerToken: w.TenantToken,
	}); !errors.Is(err, agreement.ErrNotActive) {
		t.Fatalf("pay on draft: want ErrNotActive, got %v", err)
	}

	if err := agreementSvc.Transition(ctx, agreement.TransitionParams{
		AgreementID: agreementID, NextStatus: agreement.StatusActive,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	for month := 1; month <= 2; month++ {
		rec, err := paymentSvc.PayRent(ctx, payment.PayRentParams{
			AgreementID: agreementID, Asset: "USDC", Amount: 1000, BearerToken: w.TenantToken,
		})
		if err != nil {
			t.Fatalf("pay month %d: %v", month, err)
		}
		if rec.Seq != uint32(month) {
			t.Fatalf("month %d: seq = %d", month, rec.Seq)
		}
		if rec.LandlordAmount != 950 || rec.AgentAmount != 50 {
			t.Fatalf("month %d: split = %d/%d", month, rec.LandlordAmount, rec.AgentAmount)
		}
	}

	ag, err := agreementSvc.Get(ctx, agreementID)
	if err != nil {
		t.Fatalf("get agreement: %v", err)
	}
	if ag.TotalRentPaid != 2000 || ag.PaymentCount != 2 {
		t.Fatalf("rollup = %d paid over %d payments", ag.TotalRentPaid, ag.PaymentCount)
	}

	var transfers int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&transfers); err != nil {
		t.Fatalf("count transfers: %v", err)
	}
	if transfers != 4 {
		t.Fatalf("transfers = %d, want 4 (landlord+agent per month)", transfers)
	}

	rec, err := disputeSvc.Open(ctx, agreementID, w.TenantID, "leaking roof")
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := paymentSvc.PayRent(ctx, payment.PayRentParams{
		AgreementID: agreementID, Asset: "USDC", Amount: 1000, BearerToken: w.TenantToken,
	}); !errors.Is(err, agreement.ErrNotActive) {
		t.Fatalf("pay while disputed: want ErrNotActive, got %v", err)
	}
	if _, err := disputeSvc.Resolve(ctx, rec.ID); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if err := agreementSvc.Transition(ctx, agreement.TransitionParams{
		AgreementID: agreementID, NextStatus: agreement.StatusActive,
	}); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if err := agreementSvc.Transition(ctx, agreement.TransitionParams{
		AgreementID: agreementID, NextStatus: agreement.StatusCompleted,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := agreementSvc.Transition(ctx, agreement.TransitionParams{
		AgreementID: agreementID, NextStatus: agreement.StatusActive,
	}); !errors.Is(err, agreement.ErrInvalidTransition) {
		t.Fatalf("reopen completed: want ErrInvalidTransition, got %v", err)
	}

	got, err := protocolSvc.Counters(ctx)
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if got.Agreements != 1 || got.Payments != 2 || got.Disputes != 1 {
		t.Fatalf("counters = %+v", got)
	}

	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&pending); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if pending == 0 {
		t.Fatal("expected pending outbox events before the worker runs")
	}
	worker := outbox.NewWorker(pool, outbox.LogPublisher{})
	if _, err := worker.DrainOnce(ctx); err != nil {
		t.Fatalf("drain outbox: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&pending); err != nil {
		t.Fatalf("recount outbox: %v", err)
	}
	if pending != 0 {
		t.Fatalf("outbox still has %d pending after drain", pending)
	}
}

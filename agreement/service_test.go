package agreement

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func validCreateParams() CreateParams {
	return CreateParams{
		ID:            "agr-1",
		LandlordID:    "landlord-1",
		TenantID:      "tenant-1",
		MonthlyRent:   1000,
		StartDate:     1735689600,
		EndDate:       1767225600,
		CommissionBps: 500,
	}
}

func newTestService(stored *Agreement) (*Service, *fakePool, *fakeStore, *fakeOutbox, *fakeCounters) {
	pool := &fakePool{}
	store := &fakeStore{stored: stored}
	outbox := &fakeOutbox{}
	counters := &fakeCounters{}
	return NewService(pool, store, outbox, counters), pool, store, outbox, counters
}

func TestCreate_Success(t *testing.T) {
	svc, pool, store, outbox, counters := newTestService(nil)

	if err := svc.Create(context.Background(), validCreateParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(store.inserted))
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(outbox.topics) != 1 || outbox.topics[0] != OutboxTopicCreated {
		t.Errorf("outbox topics = %v", outbox.topics)
	}
	if counters.increments != 1 {
		t.Errorf("counter increments = %d, want 1", counters.increments)
	}
}

func TestCreate_ValidationOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateParams)
		want   error
	}{
		{"zero rent", func(p *CreateParams) { p.MonthlyRent = 0 }, ErrInvalidRent},
		{"negative rent", func(p *CreateParams) { p.MonthlyRent = -500 }, ErrInvalidRent},
		{"equal dates", func(p *CreateParams) { p.EndDate = p.StartDate }, ErrInvalidDateRange},
		{"inverted dates", func(p *CreateParams) { p.StartDate, p.EndDate = p.EndDate, p.StartDate }, ErrInvalidDateRange},
		{"rate too high", func(p *CreateParams) { p.CommissionBps = 10001 }, ErrInvalidCommissionRate},
		{"everything wrong reports rent first", func(p *CreateParams) {
			p.MonthlyRent = -1
			p.EndDate = p.StartDate
			p.CommissionBps = 20000
		}, ErrInvalidRent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, pool, store, _, counters := newTestService(nil)
			params := validCreateParams()
			tc.mutate(&params)

			err := svc.Create(context.Background(), params)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if pool.tx != nil {
				t.Error("validation failure must not open a transaction")
			}
			if len(store.inserted) != 0 {
				t.Error("validation failure must not write")
			}
			if counters.increments != 0 {
				t.Error("validation failure must not bump counters")
			}
		})
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	existing := Agreement{ID: "agr-1", Status: StatusDraft}
	svc, pool, _, _, counters := newTestService(&existing)

	err := svc.Create(context.Background(), validCreateParams())
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if pool.tx.committed {
		t.Error("expected no commit on duplicate id")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback on duplicate id")
	}
	if counters.increments != 0 {
		t.Error("expected no counter bump on duplicate id")
	}
}

func TestCreate_MaxCommissionRateAccepted(t *testing.T) {
	svc, _, store, _, _ := newTestService(nil)
	params := validCreateParams()
	params.CommissionBps = 10000

	if err := svc.Create(context.Background(), params); err != nil {
		t.Fatalf("create at max rate: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatal("expected insert at max rate")
	}
}

func TestTransition_DraftToActive(t *testing.T) {
	stored := Agreement{ID: "agr-1", Status: StatusDraft}
	svc, pool, store, outbox, _ := newTestService(&stored)

	err := svc.Transition(context.Background(), TransitionParams{
		AgreementID: "agr-1",
		ActorID:     "landlord-1",
		NextStatus:  StatusActive,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	if store.stored.Status != StatusActive {
		t.Errorf("status = %s, want active", store.stored.Status)
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(outbox.topics) != 1 || outbox.topics[0] != OutboxTopicStatusChanged {
		t.Errorf("outbox topics = %v", outbox.topics)
	}
}

func TestTransition_InvalidEdge(t *testing.T) {
	stored := Agreement{ID: "agr-1", Status: StatusCompleted}
	svc, pool, store, _, _ := newTestService(&stored)

	err := svc.Transition(context.Background(), TransitionParams{
		AgreementID: "agr-1",
		NextStatus:  StatusActive,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if store.stored.Status != StatusCompleted {
		t.Error("status must not change on invalid transition")
	}
	if pool.tx.committed {
		t.Error("expected no commit")
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	stored := Agreement{ID: "agr-1", Status: StatusDraft}
	svc, pool, _, _, _ := newTestService(&stored)

	err := svc.Transition(context.Background(), TransitionParams{
		AgreementID: "agr-1",
		NextStatus:  "frozen",
	})
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
	if pool.tx != nil {
		t.Error("unknown status must not open a transaction")
	}
}

func TestTransition_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(nil)

	err := svc.Transition(context.Background(), TransitionParams{
		AgreementID: "missing",
		NextStatus:  StatusActive,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetTotalPaid(t *testing.T) {
	stored := Agreement{ID: "agr-1", Status: StatusActive, TotalRentPaid: 3000}
	svc, _, _, _, _ := newTestService(&stored)

	total, err := svc.GetTotalPaid(context.Background(), "agr-1")
	if err != nil {
		t.Fatalf("get total paid: %v", err)
	}
	if total != 3000 {
		t.Errorf("total = %d, want 3000", total)
	}

	if _, err := svc.GetTotalPaid(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// --- fakes ---

type fakeStore struct {
	stored   *Agreement
	inserted []CreateParams
}

func (f *fakeStore) Insert(_ context.Context, _ pgx.Tx, params CreateParams) error {
	if f.stored != nil && f.stored.ID == params.ID {
		return ErrDuplicate
	}
	f.inserted = append(f.inserted, params)
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Agreement, error) {
	if f.stored == nil || f.stored.ID != id {
		return Agreement{}, ErrNotFound
	}
	return *f.stored, nil
}

func (f *fakeStore) GetForUpdate(_ context.Context, _ pgx.Tx, id string) (Agreement, error) {
	return f.Get(context.Background(), id)
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ pgx.Tx, id string, next Status) error {
	if f.stored == nil || f.stored.ID != id {
		return ErrNotFound
	}
	f.stored.Status = next
	return nil
}

type fakeOutbox struct {
	topics []string
}

func (f *fakeOutbox) Enqueue(_ context.Context, _ pgx.Tx, topic string, _ map[string]any) error {
	f.topics = append(f.topics, topic)
	return nil
}

type fakeCounters struct {
	increments int
}

func (f *fakeCounters) Increment(_ context.Context, _ pgx.Tx, _ string) error {
	f.increments++
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

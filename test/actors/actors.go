// Package actors holds the concurrent workload for the stress test. Each
// actor loops until its context is cancelled, drives one slice of the
// business flow through the real services, and tolerates the errors that
// contention and chaos legitimately produce. Correctness is judged by the
// oracles, not by the actors.
package actors

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentflow/agreement"
	"rentflow/dispute"
	"rentflow/payment"
)

// World is the shared state the actors operate on. Tokens and party IDs come
// from the seed phase; the agreement list grows as the Creator runs.
type World struct {
	TenantID    string
	LandlordID  string
	AgentID     string
	TenantToken string

	mu         sync.Mutex
	agreements []Entry
}

// Entry is one created agreement plus the rent the Payer must match.
type Entry struct {
	ID   string
	Rent int64
}

func (w *World) add(e Entry) {
	w.mu.Lock()
	w.agreements = append(w.agreements, e)
	w.mu.Unlock()
}

func (w *World) random() (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.agreements) == 0 {
		return Entry{}, false
	}
	return w.agreements[rand.Intn(len(w.agreements))], true
}

// Creator opens new draft agreements at a steady trickle. Roughly one in
// five attempts reuses an existing ID to exercise duplicate rejection.
func Creator(ctx context.Context, svc *agreement.Service, w *World) error {
	for {
		if err := sleep(ctx, 30*time.Millisecond); err != nil {
			return nil
		}

		id := uuid.NewString()
		if prev, ok := w.random(); ok && rand.Intn(5) == 0 {
			id = prev.ID
		}
		rent := int64(500 + rand.Intn(20)*100)
		agentID := &w.AgentID
		if rand.Intn(3) == 0 {
			agentID = nil
		}

		err := svc.Create(ctx, agreement.CreateParams{
			ID:            id,
			LandlordID:    w.LandlordID,
			TenantID:      w.TenantID,
			AgentID:       agentID,
			MonthlyRent:   rent,
			CommissionBps: uint32(rand.Intn(2001)),
			StartDate:     time.Now().Unix(),
			EndDate:       time.Now().AddDate(1, 0, 0).Unix(),
		})
		switch {
		case err == nil:
			w.add(Entry{ID: id, Rent: rent})
		case errors.Is(err, agreement.ErrDuplicate):
			// expected on the reuse path
		default:
			tolerate("creator", err)
		}
	}
}

// Activator moves random agreements out of draft so the Payer has targets.
func Activator(ctx context.Context, svc *agreement.Service, w *World) error {
	for {
		if err := sleep(ctx, 40*time.Millisecond); err != nil {
			return nil
		}
		e, ok := w.random()
		if !ok {
			continue
		}
		err := svc.Transition(ctx, agreement.TransitionParams{
			AgreementID: e.ID,
			NextStatus:  agreement.StatusActive,
		})
		if err != nil && !errors.Is(err, agreement.ErrInvalidTransition) {
			tolerate("activator", err)
		}
	}
}

// Payer settles rent on random agreements. Non-active targets and disputed
// races are expected and skipped; every accepted payment feeds the oracles.
func Payer(ctx context.Context, svc *payment.Service, w *World) error {
	for {
		if err := sleep(ctx, 20*time.Millisecond); err != nil {
			return nil
		}
		e, ok := w.random()
		if !ok {
			continue
		}
		amount := e.Rent
		if rand.Intn(10) == 0 {
			amount += 1 // provoke the exact-amount check
		}
		_, err := svc.PayRent(ctx, payment.PayRentParams{
			AgreementID: e.ID,
			Asset:       "USDC",
			Amount:      amount,
			BearerToken: w.TenantToken,
		})
		switch {
		case err == nil,
			errors.Is(err, agreement.ErrNotActive),
			errors.Is(err, payment.ErrInvalidAmount):
		default:
			tolerate("payer", err)
		}
	}
}

// Disputer opens disputes on random agreements and occasionally resolves
// them back to active, cycling status under the Payer's feet.
func Disputer(ctx context.Context, disputes *dispute.Service, agreements *agreement.Service, w *World) error {
	for {
		if err := sleep(ctx, 150*time.Millisecond); err != nil {
			return nil
		}
		e, ok := w.random()
		if !ok {
			continue
		}
		rec, err := disputes.Open(ctx, e.ID, w.TenantID, "stress: contested charge")
		if err != nil {
			if !errors.Is(err, agreement.ErrInvalidTransition) {
				tolerate("disputer", err)
			}
			continue
		}

		if err := sleep(ctx, 50*time.Millisecond); err != nil {
			return nil
		}
		if _, err := disputes.Resolve(ctx, rec.ID); err != nil {
			tolerate("disputer", err)
			continue
		}
		if err := agreements.Transition(ctx, agreement.TransitionParams{
			AgreementID: e.ID,
			NextStatus:  agreement.StatusActive,
		}); err != nil && !errors.Is(err, agreement.ErrInvalidTransition) {
			tolerate("disputer", err)
		}
	}
}

// tolerate logs an unexpected actor error without failing the run. Chaos
// kills backends mid-flight, so connection errors here are noise; anything
// that actually corrupts state will trip an oracle.
func tolerate(actor string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("actors: %s: %v", actor, err)
}

func sleep(ctx context.Context, base time.Duration) error {
	d := base + time.Duration(rand.Int63n(int64(base)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

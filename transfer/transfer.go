// Package transfer records settlement instructions for the value-transfer
// backend. It is an execution log, not a ledger: balances live with whatever
// system executes the instructions.
package transfer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Instruction describes one requested value movement.
type Instruction struct {
	Asset  string
	FromID string
	ToID   string
	Amount int64
}

// Recorder appends transfer instructions inside the caller's transaction, so
// a rolled-back payment leaves no instruction behind.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (*Recorder) Transfer(ctx context.Context, tx pgx.Tx, ins Instruction) error {
	if ins.Amount <= 0 {
		return fmt.Errorf("transfer: amount must be positive")
	}
	if ins.FromID == "" || ins.ToID == "" {
		return fmt.Errorf("transfer: missing party")
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO transfers (asset, from_id, to_id, amount) VALUES ($1,$2,$3,$4)
	`, ins.Asset, ins.FromID, ins.ToID, ins.Amount)
	if err != nil {
		return fmt.Errorf("transfer: record: %w", err)
	}
	return nil
}

package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Publisher delivers a drained message to its destination.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// LogPublisher writes messages to the process log. Default delivery backend
// until a broker is wired in.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	log.Printf("[outbox] %s %s", topic, payload)
	return nil
}

// maxAttempts bounds delivery retries. A message stays pending and is picked
// up again on later drains until the budget runs out, then it is parked as
// failed and needs operator attention.
const maxAttempts = 5

// Worker drains pending outbox rows and hands them to a Publisher. Rows are
// claimed with SKIP LOCKED so multiple workers never double-deliver.
type Worker struct {
	pool      *pgxpool.Pool
	publisher Publisher
	batchSize int
	interval  time.Duration
}

func NewWorker(pool *pgxpool.Pool, publisher Publisher) *Worker {
	if publisher == nil {
		publisher = LogPublisher{}
	}
	return &Worker{
		pool:      pool,
		publisher: publisher,
		batchSize: 50,
		interval:  time.Second,
	}
}

// Run drains the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.DrainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[outbox] drain: %v", err)
			}
		}
	}
}

// DrainOnce claims up to one batch of pending messages, publishes each, and
// marks the result. Returns the number of messages delivered.
func (w *Worker) DrainOnce(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("outbox: fetch pending: %w", err)
	}

	var batch []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Payload, &msg.Attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("outbox: scan: %w", err)
		}
		batch = append(batch, msg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("outbox: iterate: %w", err)
	}

	sent := 0
	for _, msg := range batch {
		if err := w.publisher.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			status := StatusPending
			if msg.Attempts+1 >= maxAttempts {
				status = StatusFailed
				log.Printf("[outbox] giving up on message %d after %d attempts: %v", msg.ID, msg.Attempts+1, err)
			}
			if _, uerr := tx.Exec(ctx, `
				UPDATE outbox SET status = $1, attempts = attempts + 1 WHERE id = $2
			`, status, msg.ID); uerr != nil {
				return sent, fmt.Errorf("outbox: mark undelivered: %w", uerr)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'sent', attempts = attempts + 1 WHERE id = $1
		`, msg.ID); err != nil {
			return sent, fmt.Errorf("outbox: mark sent: %w", err)
		}
		sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return sent, fmt.Errorf("outbox: commit: %w", err)
	}
	return sent, nil
}

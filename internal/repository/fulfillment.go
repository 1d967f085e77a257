package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/reportlens/securelink-server-go/internal/database"
	"github.com/reportlens/securelink-server-go/internal/model"
)

// ErrDuplicateEvent signals that a payment event id has already been
// claimed by another fulfillment. The orchestrator replays the stored
// result instead of processing the event again.
var ErrDuplicateEvent = errors.New("payment event already processed")

const pqUniqueViolation = "23505"

// FulfillmentRepository is the durable idempotency ledger for payment
// events. Claiming an event id is an INSERT against the primary key, so
// a replayed webhook conflicts instead of fulfilling twice.
type FulfillmentRepository interface {
	FindByEventID(ctx context.Context, eventID string) (*model.Fulfillment, error)
	Claim(ctx context.Context, eventID string, kind model.PurchaseKind) error
	SetResult(ctx context.Context, eventID string, result json.RawMessage) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) FulfillmentRepository
}

type fulfillmentRepo struct {
	db database.DBTX
}

func NewFulfillmentRepository(db *database.DB) FulfillmentRepository {
	return &fulfillmentRepo{db: db.DB}
}

func (r *fulfillmentRepo) WithTx(tx *sqlx.Tx) FulfillmentRepository {
	return &fulfillmentRepo{db: tx}
}

func (r *fulfillmentRepo) FindByEventID(ctx context.Context, eventID string) (*model.Fulfillment, error) {
	var f model.Fulfillment
	err := r.db.GetContext(ctx, &f, `
		SELECT * FROM fulfillments WHERE payment_event_id = $1
	`, eventID)
	return HandleNotFound(&f, err)
}

// Claim reserves the event id. When a concurrent transaction holds the
// same id the insert blocks until that transaction finishes, so by the
// time ErrDuplicateEvent surfaces the first result has been committed.
func (r *fulfillmentRepo) Claim(ctx context.Context, eventID string, kind model.PurchaseKind) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fulfillments (payment_event_id, kind)
		VALUES ($1, $2)
	`, eventID, kind)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *fulfillmentRepo) SetResult(ctx context.Context, eventID string, result json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE fulfillments SET result = $2
		WHERE payment_event_id = $1
	`, eventID, result)
	return err
}

func (r *fulfillmentRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM fulfillments WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

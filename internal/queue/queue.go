// Package queue provides the reliable staging of work items between the
// enqueue path and the worker pool. Items are durably persisted, claimed by
// exactly one worker, retried with backoff up to their attempt budget and
// retained afterwards for operator inspection.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/internal/store/model"
)

// ErrEmpty is returned by Dequeue when no item is claimable.
var ErrEmpty = errors.New("queue is empty")

// Item is the unit of staged work. Payload is carried verbatim to the
// handler; JobID and the owner identity let the worker correlate the item
// with its Job record.
type Item struct {
	JobID    uuid.UUID
	OrgID    string
	Username string
	Kind     string
	Payload  map[string]any
}

// Delivery is a claimed item together with its attempt bookkeeping.
type Delivery struct {
	ID      int64
	Item    Item
	Attempt int
}

type Config struct {
	MaxAttempts int
	Backoff     Backoff
}

// Queue is a durable at-least-once queue backed by the relational store.
type Queue struct {
	items store.QueueItem
	cfg   Config
}

func New(items store.QueueItem, cfg Config) *Queue {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = NewExponential(30*time.Second, 10*time.Minute)
	}
	return &Queue{items: items, cfg: cfg}
}

// Enqueue durably stages an item. It participates in any transaction
// carried by ctx, so callers can stage the item and create the Job record
// in the same logical operation.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	args, err := json.Marshal(item.Payload)
	if err != nil {
		return err
	}

	_, err = q.items.Enqueue(ctx, model.QueueItem{
		JobID:       item.JobID,
		OrgID:       item.OrgID,
		Username:    item.Username,
		Kind:        item.Kind,
		Args:        args,
		MaxAttempts: q.cfg.MaxAttempts,
	})
	return err
}

// Dequeue claims exactly one due item. No two callers observe the same
// item in the running state.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	row, err := q.items.Claim(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrEmpty
		}
		return nil, err
	}

	var payload map[string]any
	if len(row.Args) > 0 {
		if err := json.Unmarshal(row.Args, &payload); err != nil {
			return nil, err
		}
	}

	return &Delivery{
		ID: row.ID,
		Item: Item{
			JobID:    row.JobID,
			OrgID:    row.OrgID,
			Username: row.Username,
			Kind:     row.Kind,
			Payload:  payload,
		},
		Attempt: row.Attempt,
	}, nil
}

// Complete acknowledges a successfully processed delivery.
func (q *Queue) Complete(ctx context.Context, d *Delivery) error {
	return q.items.Complete(ctx, d.ID)
}

// Fail records a failed attempt. The item is re-scheduled with backoff
// while budget remains; once exhausted it is retained in the discarded
// state. Returns true when a retry was scheduled.
func (q *Queue) Fail(ctx context.Context, d *Delivery, cause error) (bool, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if d.Attempt >= q.cfg.MaxAttempts {
		return false, q.items.Discard(ctx, d.ID, msg)
	}

	retryAt := time.Now().UTC().Add(q.cfg.Backoff.Delay(d.Attempt))
	return true, q.items.Retry(ctx, d.ID, msg, retryAt)
}

// Discard drops the remaining budget of a delivery, retaining the item.
// Used for non-retryable failures such as an unregistered job kind.
func (q *Queue) Discard(ctx context.Context, d *Delivery, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return q.items.Discard(ctx, d.ID, msg)
}

// Depth returns the number of claimable items.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.items.Depth(ctx)
}

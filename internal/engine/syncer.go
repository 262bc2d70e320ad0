package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/remote"
)

const (
	drainBackoffBase = 500 * time.Millisecond
	drainMaxRetries  = 3
)

// syncer drains the durable sync queue against the list service. It wakes
// on a nudge after each local mutation and on explicit Refresh calls —
// there is no aggressive polling loop; a failed op just stays queued until
// the next wake.
type syncer struct {
	e       *Engine
	wake    chan struct{}
	drainMu chan struct{} // 1-slot semaphore: one drain at a time
}

func newSyncer(e *Engine) *syncer {
	s := &syncer{
		e:       e,
		wake:    make(chan struct{}, 1),
		drainMu: make(chan struct{}, 1),
	}
	s.drainMu <- struct{}{}
	return s
}

// nudge schedules a drain without blocking the caller.
func (s *syncer) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *syncer) run() {
	for {
		select {
		case <-s.wake:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			s.drain(ctx)
			cancel()
		case <-s.e.done:
			return
		}
	}
}

// drain pushes pending ops in issue order. Stops at the first op that still
// fails after its retries — later ops for the same entry must not jump the
// queue.
func (s *syncer) drain(ctx context.Context) {
	if !s.e.identity.IsAuthenticated() {
		return
	}

	select {
	case <-s.drainMu:
	default:
		// A drain is already running; it will pick up anything we queued.
		return
	}
	defer func() { s.drainMu <- struct{}{} }()

	s.e.mu.RLock()
	userID := s.e.userID
	s.e.mu.RUnlock()
	if userID == "" {
		userID = s.e.identity.UserID()
	}

	ops, err := s.e.queue.Pending()
	if err != nil {
		s.e.logger.Error("read sync queue", "error", err)
		return
	}

	for i := range ops {
		op := &ops[i]
		if err := s.pushOp(ctx, userID, op); err != nil {
			if bumpErr := s.e.queue.Bump(op.ID); bumpErr != nil {
				s.e.logger.Error("bump sync op", "op_id", op.ID, "error", bumpErr)
			}
			if errors.Is(err, remote.ErrUnauthorized) {
				s.e.logger.Warn("sync paused: credentials rejected", "op_id", op.ID)
			} else {
				s.e.identity.SetOnline(false)
				s.e.logger.Warn("sync paused: push failed", "op_id", op.ID, "error", err)
			}
			return
		}
		s.e.identity.SetOnline(true)
		if err := s.e.queue.MarkDone(op.ID); err != nil {
			s.e.logger.Error("mark sync op done", "op_id", op.ID, "error", err)
			return
		}
	}
}

// pushOp sends one op with bounded exponential backoff. Auth rejection is
// not retried; waiting won't fix a bad token.
func (s *syncer) pushOp(ctx context.Context, userID string, op *model.SyncOp) error {
	backoff := retry.WithMaxRetries(drainMaxRetries, retry.NewExponential(drainBackoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		switch op.Kind {
		case model.SyncOpDelete:
			err = s.e.remote.DeleteEntry(ctx, userID, op.EntryID)
		case model.SyncOpPut:
			var entry model.ReorderEntry
			if uerr := json.Unmarshal(op.Payload, &entry); uerr != nil {
				// A corrupt payload will never succeed; drop it rather than
				// wedging the queue.
				s.e.logger.Error("corrupt sync payload", "op_id", op.ID, "error", uerr)
				return nil
			}
			err = s.e.remote.PushEntry(ctx, userID, &entry)
		default:
			s.e.logger.Error("unknown sync op kind", "op_id", op.ID, "kind", op.Kind)
			return nil
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, remote.ErrUnauthorized) {
			return err
		}
		return retry.RetryableError(err)
	})
}

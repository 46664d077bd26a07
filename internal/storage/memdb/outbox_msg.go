package memdb

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

type outboxMsgRepository struct {
	h handle
}

var _ repository.OutboxMsgRepository = outboxMsgRepository{}

// NewOutboxMsgRepository returns an outbox repository backed by store.
func NewOutboxMsgRepository(store *Store) repository.OutboxMsgRepository {
	return outboxMsgRepository{h: handle{store: store}}
}

func (r outboxMsgRepository) WithDB(d db.DB) repository.OutboxMsgRepository {
	return outboxMsgRepository{h: handleFor(r.h.store, d)}
}

func (r outboxMsgRepository) CreateOutboxMsg(ctx context.Context, params repository.CreateOutboxMsgParams) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid: %w", err)
	}

	return r.h.write(ctx, "CreateOutboxMsg", func(st *state) error {
		st.outbox = append(st.outbox, outboxEntry{msg: repository.OutboxMsg{
			ID:           id,
			Topic:        params.Topic,
			Headers:      maps.Clone(params.Headers),
			Payload:      params.Payload,
			PartitionKey: params.PartitionKey,
		}})
		return nil
	})
}

func (r outboxMsgRepository) ListUnprocessedOutboxMsgs(ctx context.Context, params repository.ListUnprocessedOutboxMsgsParams) ([]repository.OutboxMsg, error) {
	var msgs []repository.OutboxMsg
	err := r.h.read(ctx, "ListUnprocessedOutboxMsgs", func(st *state) error {
		msgs = []repository.OutboxMsg{}
		for _, e := range st.outbox {
			if int32(len(msgs)) >= params.BatchSize {
				break
			}
			if !e.processed {
				msgs = append(msgs, e.msg)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r outboxMsgRepository) BulkUpdateOutboxMsgs(ctx context.Context, params repository.BulkUpdateOutboxMsgsParams) error {
	return r.h.write(ctx, "BulkUpdateOutboxMsgs", func(st *state) error {
		for _, item := range params.Items {
			for i := range st.outbox {
				e := &st.outbox[i]
				if e.msg.ID != item.ID {
					continue
				}
				e.err = item.Error
				if item.Error == nil {
					e.processed = true
					continue
				}
				e.attempts++
				if params.MaxAttempts > 0 && e.attempts >= params.MaxAttempts {
					e.processed = true
				}
			}
		}
		return nil
	})
}

// OutboxMsgs returns every committed outbox message in insertion order,
// processed or not.
func (s *Store) OutboxMsgs() []repository.OutboxMsg {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]repository.OutboxMsg, 0, len(s.committed.outbox))
	for _, e := range s.committed.outbox {
		msgs = append(msgs, e.msg)
	}
	return msgs
}

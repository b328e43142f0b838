package postgres

import (
	"context"
	"fmt"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository is the relay's view of the outbox table.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// FetchPending returns unsent messages in insertion order.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	const query = `
SELECT id, event_id::text, topic, key, payload, created_at
FROM outbox
WHERE sent_at IS NULL
ORDER BY id
LIMIT $1`

	rows, err := querierFor(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OutboxMessage, error) {
		var m domain.OutboxMessage
		err := row.Scan(&m.Seq, &m.EventID, &m.Topic, &m.Key, &m.Payload, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	return msgs, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, seq int64) error {
	tag, err := querierFor(ctx, r.pool).Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1 AND sent_at IS NULL`, seq)
	if err != nil {
		return fmt.Errorf("mark outbox %d sent: %w", seq, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox message %d not pending", seq)
	}
	return nil
}

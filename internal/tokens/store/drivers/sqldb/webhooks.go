package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

const webhookColumns = `id, event_type, target_url, payload, delivered, attempts, last_attempt_at, created_at`

type webhookEventsRepo struct{ c conn }

func scanWebhookEvent(s scanner) (domain.WebhookEvent, error) {
	var (
		ev      domain.WebhookEvent
		payload string
		last    sql.NullInt64
		created int64
	)
	if err := s.Scan(&ev.ID, &ev.EventType, &ev.TargetURL, &payload, &ev.Delivered,
		&ev.Attempts, &last, &created); err != nil {
		return domain.WebhookEvent{}, err
	}
	ev.Payload = []byte(payload)
	ev.LastAttemptAt = timePtr(last)
	ev.CreatedAt = fromMillis(created)
	return ev, nil
}

// Payload is kept as text so the exact bytes survive a round trip.
func (r *webhookEventsRepo) CreateWebhookEvent(ctx context.Context, ev domain.WebhookEvent) error {
	_, err := r.c.exec(ctx, `INSERT INTO webhook_events (`+webhookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EventType, ev.TargetURL, string(ev.Payload), ev.Delivered, ev.Attempts,
		nullMillis(ev.LastAttemptAt), millis(ev.CreatedAt))
	return err
}

func (r *webhookEventsRepo) GetWebhookEvent(ctx context.Context, id string) (domain.WebhookEvent, error) {
	ev, err := scanWebhookEvent(r.c.queryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhook_events WHERE id = ?`, id))
	return ev, mapNotFound(err)
}

func (r *webhookEventsRepo) ListPendingWebhookEvents(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.c.query(ctx, `SELECT `+webhookColumns+` FROM webhook_events
		WHERE delivered = FALSE
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WebhookEvent
	for rows.Next() {
		ev, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *webhookEventsRepo) MarkWebhookEventDelivered(ctx context.Context, id string, attempts int, at time.Time) (bool, error) {
	return r.c.execAffected(ctx, `
		UPDATE webhook_events SET delivered = TRUE, attempts = ?, last_attempt_at = ?
		WHERE id = ? AND delivered = FALSE`,
		attempts, millis(at), id)
}

func (r *webhookEventsRepo) RecordWebhookEventAttempts(ctx context.Context, id string, prev, attempts int, at time.Time) (bool, error) {
	return r.c.execAffected(ctx, `
		UPDATE webhook_events SET attempts = ?, last_attempt_at = ?
		WHERE id = ? AND attempts = ? AND delivered = FALSE`,
		attempts, millis(at), id, prev)
}

func (r *webhookEventsRepo) DeleteDeliveredWebhookEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.c.execCount(ctx,
		`DELETE FROM webhook_events WHERE delivered = TRUE AND created_at < ?`, millis(cutoff))
}

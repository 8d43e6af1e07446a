package repository

import (
	"context"
	"encoding/json"
)

type WebhookLogRepository struct {
	db DBTX
}

func NewWebhookLogRepository(db DBTX) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// InsertRaw appends the delivery before any interpretation, so malformed
// events remain recoverable. Returns the log row id.
func (r *WebhookLogRepository) InsertRaw(ctx context.Context, source string, body json.RawMessage) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_webhook_raw (source, body)
		VALUES ($1, $2)
		RETURNING id
	`, source, body).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *WebhookLogRepository) SetError(ctx context.Context, id string, message string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payment_webhook_raw
		SET error = $2
		WHERE id = $1
	`, id, message)
	return err
}

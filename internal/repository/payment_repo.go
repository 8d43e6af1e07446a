package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kddeniz/ai-therapist/internal/models"
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type UpsertPaymentInput struct {
	ClientID      string
	SessionID     *string
	Provider      models.Provider
	TransactionID string
	Amount        float64
	Currency      string
	Status        models.PaymentStatus
	PaidAt        *time.Time
	RawPayload    json.RawMessage
	Note          *string
}

// Upsert records a payment keyed by (provider, transaction_id). Redelivery
// of the same transaction updates mutable fields but keeps the earliest
// paid_at and never discards an existing session_id/raw_payload/note in
// favor of a null one.
func (r *PaymentRepository) Upsert(ctx context.Context, input UpsertPaymentInput) (*models.ClientPayment, error) {
	query := `
		INSERT INTO client_payment
			(client_id, session_id, provider, transaction_id, amount, currency, status, paid_at, raw_payload, note)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), $9, $10)
		ON CONFLICT (provider, transaction_id) DO UPDATE
			SET client_id   = EXCLUDED.client_id,
			    session_id  = COALESCE(EXCLUDED.session_id, client_payment.session_id),
			    amount      = EXCLUDED.amount,
			    currency    = EXCLUDED.currency,
			    status      = EXCLUDED.status,
			    paid_at     = LEAST(client_payment.paid_at, EXCLUDED.paid_at),
			    raw_payload = COALESCE(EXCLUDED.raw_payload, client_payment.raw_payload),
			    note        = COALESCE(EXCLUDED.note, client_payment.note)
		RETURNING id, client_id, session_id, provider, transaction_id, amount, currency, status, paid_at, raw_payload, note, created
	`
	var p models.ClientPayment
	err := r.db.QueryRow(ctx, query,
		input.ClientID,
		input.SessionID,
		input.Provider,
		input.TransactionID,
		input.Amount,
		strings.ToUpper(input.Currency),
		input.Status,
		input.PaidAt,
		input.RawPayload,
		input.Note,
	).Scan(
		&p.ID,
		&p.ClientID,
		&p.SessionID,
		&p.Provider,
		&p.TransactionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.PaidAt,
		&p.RawPayload,
		&p.Note,
		&p.Created,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasActiveEntitlement reports whether the client holds a completed payment
// that is still in force: either a subscription payload whose expiry
// (subscription.expiresDate, falling back to
// customerInfo.latestExpirationDate) is in the future, or a payload-less
// legacy/manual payment within the given window.
func (r *PaymentRepository) HasActiveEntitlement(ctx context.Context, clientID string, legacyWindow time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM client_payment
			WHERE client_id = $1
			  AND status = $2
			  AND (
				(
					raw_payload IS NOT NULL
					AND COALESCE(
						NULLIF(raw_payload::jsonb -> 'subscription' ->> 'expiresDate', ''),
						raw_payload::jsonb -> 'customerInfo' ->> 'latestExpirationDate'
					)::timestamptz >= NOW()
				)
				OR (
					raw_payload IS NULL
					AND paid_at >= NOW() - ($3::int * INTERVAL '1 second')
				)
			)
		)
	`
	var ok bool
	err := r.db.QueryRow(ctx, query, clientID, models.PaymentCompleted, int(legacyWindow.Seconds())).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

type PaymentListFilter struct {
	ClientID string
	Provider *models.Provider
	Status   *models.PaymentStatus
	Limit    int
	Offset   int
}

func (r *PaymentRepository) List(ctx context.Context, filter PaymentListFilter) ([]models.ClientPayment, error) {
	where := []string{}
	args := []any{}

	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Provider != nil {
		args = append(args, *filter.Provider)
		where = append(where, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, client_id, session_id, provider, transaction_id, amount, currency, status, paid_at, raw_payload, note, created
		FROM client_payment
		%s
		ORDER BY paid_at DESC NULLS LAST, created DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.ClientPayment, 0)
	for rows.Next() {
		var p models.ClientPayment
		if err := rows.Scan(
			&p.ID,
			&p.ClientID,
			&p.SessionID,
			&p.Provider,
			&p.TransactionID,
			&p.Amount,
			&p.Currency,
			&p.Status,
			&p.PaidAt,
			&p.RawPayload,
			&p.Note,
			&p.Created,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// DeleteByClient removes all payment rows for a client. Test support only.
func (r *PaymentRepository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM client_payment WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

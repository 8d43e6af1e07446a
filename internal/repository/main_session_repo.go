package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/kddeniz/ai-therapist/internal/models"
)

type MainSessionRepository struct {
	db DBTX
}

func NewMainSessionRepository(db DBTX) *MainSessionRepository {
	return &MainSessionRepository{db: db}
}

// GetActiveByClient returns the client's single non-deleted main session,
// or pgx.ErrNoRows if none exists yet.
func (r *MainSessionRepository) GetActiveByClient(ctx context.Context, clientID string) (*models.MainSession, error) {
	query := `
		SELECT id, client_id, created, deleted
		FROM main_session
		WHERE client_id = $1 AND deleted = FALSE
		LIMIT 1
	`
	var ms models.MainSession
	err := r.db.QueryRow(ctx, query, clientID).
		Scan(&ms.ID, &ms.ClientID, &ms.Created, &ms.Deleted)
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

// GetOrCreate lazily creates the main session on first session creation.
// The insert relies on the partial unique index on (client_id) WHERE NOT
// deleted, so concurrent callers converge on one row.
func (r *MainSessionRepository) GetOrCreate(ctx context.Context, clientID string) (*models.MainSession, error) {
	insert := `
		INSERT INTO main_session (client_id)
		VALUES ($1)
		ON CONFLICT (client_id) WHERE deleted = FALSE DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, clientID); err != nil {
		return nil, err
	}
	return r.GetActiveByClient(ctx, clientID)
}

// SoftDeleteByClient retires the client's active main session. The next
// session create starts a fresh main session, and with it a fresh trial.
func (r *MainSessionRepository) SoftDeleteByClient(ctx context.Context, clientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE main_session
		SET deleted = TRUE
		WHERE client_id = $1 AND deleted = FALSE
	`, clientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ShiftCreatedBack rewinds the main session's created timestamp by the
// given number of days, creating a back-dated row when none exists. Test
// support for trial expiry.
func (r *MainSessionRepository) ShiftCreatedBack(ctx context.Context, clientID string, days int) (*models.MainSession, error) {
	update := `
		UPDATE main_session
		SET created = NOW() - ($2::int * INTERVAL '1 day')
		WHERE client_id = $1 AND deleted = FALSE
		RETURNING id, client_id, created, deleted
	`
	var ms models.MainSession
	err := r.db.QueryRow(ctx, update, clientID, days).
		Scan(&ms.ID, &ms.ClientID, &ms.Created, &ms.Deleted)
	if err == nil {
		return &ms, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	insert := `
		INSERT INTO main_session (client_id, created)
		VALUES ($1, NOW() - ($2::int * INTERVAL '1 day'))
		RETURNING id, client_id, created, deleted
	`
	err = r.db.QueryRow(ctx, insert, clientID, days).
		Scan(&ms.ID, &ms.ClientID, &ms.Created, &ms.Deleted)
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

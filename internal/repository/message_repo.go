package repository

import (
	"context"

	"github.com/kddeniz/ai-therapist/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Insert(ctx context.Context, sessionID, language string, isClient bool, content string) (*models.Message, error) {
	query := `
		INSERT INTO message (session_id, language, is_client, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, created, language, is_client, content
	`
	var m models.Message
	err := r.db.QueryRow(ctx, query, sessionID, language, isClient, content).Scan(
		&m.ID,
		&m.SessionID,
		&m.Created,
		&m.Language,
		&m.IsClient,
		&m.Content,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListBySession returns the full chronological history of a session.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	query := `
		SELECT id, session_id, created, language, is_client, content
		FROM message
		WHERE session_id = $1
		ORDER BY created ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Created, &m.Language, &m.IsClient, &m.Content); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

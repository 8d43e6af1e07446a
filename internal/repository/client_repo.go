package repository

import (
	"context"

	"github.com/kddeniz/ai-therapist/internal/models"
)

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

// Upsert registers a client by id, updating profile fields on repeat
// registration with the same id.
func (r *ClientRepository) Upsert(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO client (id, username, gender, language)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
			SET username = EXCLUDED.username,
			    gender   = EXCLUDED.gender,
			    language = EXCLUDED.language
		RETURNING created
	`
	return r.db.QueryRow(ctx, query, client.ID, client.Username, client.Gender, client.Language).
		Scan(&client.Created)
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `
		SELECT id, username, gender, language, created
		FROM client
		WHERE id = $1
	`
	var client models.Client
	err := r.db.QueryRow(ctx, query, id).
		Scan(&client.ID, &client.Username, &client.Gender, &client.Language, &client.Created)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) List(ctx context.Context) ([]models.Client, error) {
	query := `
		SELECT id, username, gender, language, created
		FROM client
		ORDER BY created DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]models.Client, 0)
	for rows.Next() {
		var client models.Client
		if err := rows.Scan(&client.ID, &client.Username, &client.Gender, &client.Language, &client.Created); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

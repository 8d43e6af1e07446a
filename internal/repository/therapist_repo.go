package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/kddeniz/ai-therapist/internal/models"
)

type TherapistRepository struct {
	db DBTX
}

func NewTherapistRepository(db DBTX) *TherapistRepository {
	return &TherapistRepository{db: db}
}

func (r *TherapistRepository) GetByID(ctx context.Context, id string) (*models.Therapist, error) {
	query := `
		SELECT id, name, gender, voice_id, description, audio_preview_url
		FROM therapist
		WHERE id = $1
	`
	var t models.Therapist
	err := r.db.QueryRow(ctx, query, id).
		Scan(&t.ID, &t.Name, &t.Gender, &t.VoiceID, &t.Description, &t.AudioPreviewURL)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type TherapistListFilter struct {
	Query  string
	Gender *models.Gender
	Limit  int
	Offset int
}

func (r *TherapistRepository) List(ctx context.Context, filter TherapistListFilter) ([]models.Therapist, error) {
	where := []string{}
	args := []any{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, q)
		where = append(where, fmt.Sprintf(
			"(name ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')",
			len(args), len(args)))
	}
	if filter.Gender != nil {
		args = append(args, *filter.Gender)
		where = append(where, fmt.Sprintf("gender = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, name, gender, voice_id, description, audio_preview_url
		FROM therapist
		%s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	therapists := make([]models.Therapist, 0)
	for rows.Next() {
		var t models.Therapist
		if err := rows.Scan(&t.ID, &t.Name, &t.Gender, &t.VoiceID, &t.Description, &t.AudioPreviewURL); err != nil {
			return nil, err
		}
		therapists = append(therapists, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return therapists, nil
}

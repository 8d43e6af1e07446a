package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kddeniz/ai-therapist/internal/models"
)

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// LockMainSession takes a transaction-scoped advisory lock keyed on the
// main session, serializing ordinal assignment for concurrent creates.
// Must run inside the transaction that inserts the session.
func (r *SessionRepository) LockMainSession(ctx context.Context, mainSessionID string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, mainSessionID)
	return err
}

// Create inserts the session with the next ordinal for its main session,
// computed in the same statement. Callers hold the advisory lock, so the
// read-then-insert race cannot occur; the unique index on
// (main_session_id, number) remains as a backstop.
func (r *SessionRepository) Create(ctx context.Context, clientID, therapistID, mainSessionID, language string) (*models.Session, error) {
	query := `
		INSERT INTO session (client_id, therapist_id, main_session_id, number, language)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(number), 0) + 1
			 FROM session
			 WHERE main_session_id = $3 AND deleted = FALSE),
			$4
		)
		RETURNING id, client_id, therapist_id, main_session_id, number, language, created, ended, deleted
	`
	var s models.Session
	err := r.db.QueryRow(ctx, query, clientID, therapistID, mainSessionID, language).Scan(
		&s.ID,
		&s.ClientID,
		&s.TherapistID,
		&s.MainSessionID,
		&s.Number,
		&s.Language,
		&s.Created,
		&s.Ended,
		&s.Deleted,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, client_id, therapist_id, main_session_id, number, language, created, ended, summary, deleted
		FROM session
		WHERE id = $1
	`
	var s models.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&s.ID,
		&s.ClientID,
		&s.TherapistID,
		&s.MainSessionID,
		&s.Number,
		&s.Language,
		&s.Created,
		&s.Ended,
		&s.Summary,
		&s.Deleted,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TurnContext is the joined read used by the conversation pipeline: session
// meta plus client profile and therapist voice in one round trip.
type TurnContext struct {
	Session       models.Session
	Username      string
	ClientGender  models.Gender
	TherapistName string
	VoiceID       string
}

func (r *SessionRepository) GetTurnContext(ctx context.Context, sessionID string) (*TurnContext, error) {
	query := `
		SELECT
			s.id, s.client_id, s.therapist_id, s.main_session_id, s.number,
			s.language, s.created, s.ended, s.deleted,
			COALESCE(c.username, ''), COALESCE(c.gender, 0),
			COALESCE(t.name, ''), COALESCE(t.voice_id, '')
		FROM session s
		LEFT JOIN client    c ON c.id = s.client_id
		LEFT JOIN therapist t ON t.id = s.therapist_id
		WHERE s.id = $1
	`
	var tc TurnContext
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&tc.Session.ID,
		&tc.Session.ClientID,
		&tc.Session.TherapistID,
		&tc.Session.MainSessionID,
		&tc.Session.Number,
		&tc.Session.Language,
		&tc.Session.Created,
		&tc.Session.Ended,
		&tc.Session.Deleted,
		&tc.Username,
		&tc.ClientGender,
		&tc.TherapistName,
		&tc.VoiceID,
	)
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

// PriorSummary is one earlier session's stored summary within a main
// session, used to build prompt context.
type PriorSummary struct {
	Number  int
	Created time.Time
	Summary string
}

// ListPriorSummaries returns summaries of sessions before the given ordinal
// in the same main session, ascending by number.
func (r *SessionRepository) ListPriorSummaries(ctx context.Context, mainSessionID string, beforeNumber, limit int) ([]PriorSummary, error) {
	query := `
		SELECT number, created, summary
		FROM session
		WHERE main_session_id = $1
		  AND number < $2
		  AND summary IS NOT NULL
		  AND deleted = FALSE
		ORDER BY number ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, mainSessionID, beforeNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]PriorSummary, 0)
	for rows.Next() {
		var ps PriorSummary
		if err := rows.Scan(&ps.Number, &ps.Created, &ps.Summary); err != nil {
			return nil, err
		}
		summaries = append(summaries, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// LatestSummaries returns up to limit most recent summaries in a main
// session, newest first. Used for the spoken session opener.
func (r *SessionRepository) LatestSummaries(ctx context.Context, mainSessionID string, limit int) ([]PriorSummary, error) {
	query := `
		SELECT number, created, summary
		FROM session
		WHERE main_session_id = $1
		  AND summary IS NOT NULL
		  AND deleted = FALSE
		ORDER BY number DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, mainSessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]PriorSummary, 0)
	for rows.Next() {
		var ps PriorSummary
		if err := rows.Scan(&ps.Number, &ps.Created, &ps.Summary); err != nil {
			return nil, err
		}
		summaries = append(summaries, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// SetEnded stamps the session ended and stores the summary blob in one
// statement.
func (r *SessionRepository) SetEnded(ctx context.Context, sessionID string, ended time.Time, summary string) (*models.Session, error) {
	query := `
		UPDATE session
		SET ended = $2, summary = $3
		WHERE id = $1
		RETURNING id, client_id, therapist_id, main_session_id, number, language, created, ended, summary, deleted
	`
	var s models.Session
	err := r.db.QueryRow(ctx, query, sessionID, ended, summary).Scan(
		&s.ID,
		&s.ClientID,
		&s.TherapistID,
		&s.MainSessionID,
		&s.Number,
		&s.Language,
		&s.Created,
		&s.Ended,
		&s.Summary,
		&s.Deleted,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type SessionListFilter struct {
	Status string // "active" (ended IS NULL), "ended", or ""
	Limit  int
	Offset int
	Sort   string // "created_asc" or "created_desc"
}

// ListByClient lists a client's sessions joined with therapist info,
// excluding soft-deleted rows. Returns the total matching count alongside.
func (r *SessionRepository) ListByClient(ctx context.Context, clientID string, filter SessionListFilter) ([]models.SessionListItem, int, error) {
	where := []string{"s.client_id = $1", "s.deleted = FALSE"}
	switch filter.Status {
	case "active":
		where = append(where, "s.ended IS NULL")
	case "ended":
		where = append(where, "s.ended IS NOT NULL")
	}

	order := "DESC"
	if filter.Sort == "created_asc" {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT
			s.id, s.created, s.ended,
			s.therapist_id,
			COALESCE(t.name, ''), COALESCE(t.gender, 0),
			COUNT(*) OVER() AS total
		FROM session s
		LEFT JOIN therapist t ON t.id = s.therapist_id
		WHERE %s
		ORDER BY s.created %s
		LIMIT $2 OFFSET $3
	`, strings.Join(where, " AND "), order)

	rows, err := r.db.Query(ctx, query, clientID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]models.SessionListItem, 0)
	total := 0
	for rows.Next() {
		var item models.SessionListItem
		if err := rows.Scan(
			&item.ID,
			&item.Created,
			&item.Ended,
			&item.TherapistID,
			&item.TherapistName,
			&item.TherapistGender,
			&total,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SoftDeleteByClient flips the deleted flag on all of a client's sessions.
func (r *SessionRepository) SoftDeleteByClient(ctx context.Context, clientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE session
		SET deleted = TRUE
		WHERE client_id = $1 AND deleted = FALSE
	`, clientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

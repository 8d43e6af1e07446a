package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/prompts"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/pkg/utils"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSummaryNotFound = errors.New("summary not found")
)

// transcriptCharBudget bounds the summarization input. Character-based
// approximation of a token limit, cut tail-first so the most recent
// exchange survives.
const transcriptCharBudget = 12000

type SummaryService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
	completer   Completer
	now         func() time.Time
}

func NewSummaryService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	completer Completer,
) *SummaryService {
	return &SummaryService{
		db:          db,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		completer:   completer,
		now:         time.Now,
	}
}

type EndSessionResult struct {
	ID             string     `json:"id"`
	Ended          *time.Time `json:"ended"`
	AlreadyEnded   bool       `json:"-"`
	SummaryPreview string     `json:"summary_preview,omitempty"`
}

// EndSession stamps the session ended and writes its two-block summary.
// Idempotent: an already-ended session is returned untouched unless force
// is set.
func (s *SummaryService) EndSession(ctx context.Context, sessionID string, force bool) (*EndSessionResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.Ended != nil && !force {
		return &EndSessionResult{ID: session.ID, Ended: session.Ended, AlreadyEnded: true}, nil
	}

	messages, err := s.messageRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	language := effectiveLanguage(session, messages)
	endedAt := s.now()
	transcript := boundedTranscript(messages, transcriptCharBudget)

	var blob string
	if strings.TrimSpace(transcript) == "" {
		// Nothing was said: no LLM call, fixed minimal summary.
		blob = models.EncodeSummary(models.Summary{
			Public: prompts.MinimalSummaryPublic(language),
			Coach:  prompts.MinimalSummaryCoach(language),
		})
	} else {
		blob, err = s.completer.Complete(ctx, CompletionRequest{
			Temperature: 0,
			TopP:        1,
			Messages: []ChatMessage{
				{Role: "system", Content: prompts.SummarySystemPrompt(language)},
				{Role: "user", Content: prompts.SummaryUserPrompt(prompts.SummaryMeta{
					SessionNumber: session.Number,
					StartedAt:     session.Created,
					EndedAt:       endedAt,
				}, transcript, language)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("summarize session: %w", err)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	updated, err := repository.NewSessionRepository(tx).SetEnded(ctx, sessionID, endedAt, blob)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &EndSessionResult{
		ID:             updated.ID,
		Ended:          updated.Ended,
		SummaryPreview: utils.Clamp(blob, 2000),
	}, nil
}

type SummaryView struct {
	ID            string     `json:"id"`
	MainSessionID string     `json:"mainSessionId"`
	SessionNumber int        `json:"sessionNumber"`
	Created       time.Time  `json:"created"`
	Ended         *time.Time `json:"ended"`
	Public        string     `json:"summary_markdown"`
	Coach         *string    `json:"coach_markdown,omitempty"`
}

// GetSummary reads a session's summary, computing it on demand when the
// session was never ended. Marker-less legacy blobs decode as all-public.
func (s *SummaryService) GetSummary(ctx context.Context, sessionID string, includeCoach bool) (*SummaryView, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.Summary == nil {
		if _, err := s.EndSession(ctx, sessionID, false); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return nil, err
			}
			return nil, ErrSummaryNotFound
		}
		session, err = s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.Summary == nil {
			return nil, ErrSummaryNotFound
		}
	}

	decoded := models.DecodeSummary(*session.Summary)
	view := &SummaryView{
		ID:            session.ID,
		MainSessionID: session.MainSessionID,
		SessionNumber: session.Number,
		Created:       session.Created,
		Ended:         session.Ended,
		Public:        decoded.Public,
	}
	if includeCoach && decoded.Coach != "" {
		coach := decoded.Coach
		view.Coach = &coach
	}
	return view, nil
}

// effectiveLanguage resolves the session language: explicit session field,
// else the last client message's language, else the default.
func effectiveLanguage(session *models.Session, messages []models.Message) string {
	lastClientLang := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsClient {
			lastClientLang = messages[i].Language
			break
		}
	}
	return utils.NormalizeLanguage(utils.FirstNonEmpty("tr", session.Language, lastClientLang))
}

// boundedTranscript renders role-tagged lines, keeping the most recent
// content within the budget and reassembling chronologically.
func boundedTranscript(messages []models.Message, budget int) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		role := "Assistant"
		if m.IsClient {
			role = "User"
		}
		lines[i] = role + ": " + m.Content + "\n"
	}

	var transcript string
	used := 0
	for i := len(lines) - 1; i >= 0; i-- {
		if used+len(lines[i]) > budget {
			break
		}
		transcript = lines[i] + transcript
		used += len(lines[i])
	}
	return transcript
}

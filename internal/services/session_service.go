package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/prompts"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/pkg/utils"
)

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrTherapistNotFound = errors.New("therapist not found")
	ErrPaymentRequired   = errors.New("payment required")
	ErrInvalidInput      = errors.New("invalid input")
)

// openerSummaryLimit caps how many recent summaries feed the spoken opener
// of a returning session.
const openerSummaryLimit = 6

// trialExpiryShiftDays is how far back the main session is rewound when an
// admin forces the trial to expire. One day past the window.
const trialExpiryShiftDays = 8

type SessionService struct {
	db              *pgxpool.Pool
	clientRepo      *repository.ClientRepository
	therapistRepo   *repository.TherapistRepository
	mainSessionRepo *repository.MainSessionRepository
	sessionRepo     *repository.SessionRepository
	messageRepo     *repository.MessageRepository
	entitlements    *EntitlementService
	completer       Completer
	synthesizer     Synthesizer
	introAudioURL   string
}

func NewSessionService(
	db *pgxpool.Pool,
	clientRepo *repository.ClientRepository,
	therapistRepo *repository.TherapistRepository,
	mainSessionRepo *repository.MainSessionRepository,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	entitlements *EntitlementService,
	completer Completer,
	synthesizer Synthesizer,
	introAudioURL string,
) *SessionService {
	return &SessionService{
		db:              db,
		clientRepo:      clientRepo,
		therapistRepo:   therapistRepo,
		mainSessionRepo: mainSessionRepo,
		sessionRepo:     sessionRepo,
		messageRepo:     messageRepo,
		entitlements:    entitlements,
		completer:       completer,
		synthesizer:     synthesizer,
		introAudioURL:   strings.TrimRight(introAudioURL, "/"),
	}
}

type CreateSessionInput struct {
	ClientID    string
	TherapistID string
	Language    string
	Intent      string
}

type CreateSessionResult struct {
	Session      *models.Session
	Trial        models.TrialStatus
	Access       AccessDecision
	OpeningText  string
	OpeningAudio []byte
	IntroURL     string
}

// CreateSession starts a voice session: paywall check, ordinal assignment
// under the main session's advisory lock, then either the pre-recorded
// intro pointer for a first session or a generated spoken opener for a
// returning one. Opener generation degrades, it never fails the create.
func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	if input.ClientID == "" || input.TherapistID == "" {
		return nil, fmt.Errorf("%w: client_id and therapist_id are required", ErrInvalidInput)
	}

	client, err := s.clientRepo.GetByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	therapist, err := s.therapistRepo.GetByID(ctx, input.TherapistID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	mainSession, err := s.mainSessionRepo.GetActiveByClient(ctx, input.ClientID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	access, trial, err := s.entitlements.Evaluate(ctx, client, mainSession)
	if err != nil {
		return nil, err
	}
	if !access.Allowed() {
		return nil, ErrPaymentRequired
	}

	language := utils.NormalizeLanguage(utils.FirstNonEmpty("tr", input.Language, client.Language))

	session, mainSession, err := s.createNumberedSession(ctx, input.ClientID, input.TherapistID, language)
	if repository.IsUniqueViolation(err) {
		// The advisory lock serializes creates, so an ordinal collision only
		// happens on out-of-band writes. One retry picks the next number.
		session, mainSession, err = s.createNumberedSession(ctx, input.ClientID, input.TherapistID, language)
	}
	if err != nil {
		return nil, err
	}

	result := &CreateSessionResult{
		Session: session,
		Trial:   trial,
		Access:  access,
	}

	if session.Number == 1 {
		intent := utils.FirstNonEmpty("general", strings.TrimSpace(input.Intent))
		result.IntroURL = fmt.Sprintf("%s/%s/%s/%s.mp3", s.introAudioURL, language, intent, therapist.ID)
		return result, nil
	}

	result.OpeningText, result.OpeningAudio = s.openingLine(ctx, session, mainSession.ID, therapist.VoiceID, language)
	return result, nil
}

// createNumberedSession runs the transactional part of a session create:
// main-session get-or-create, advisory lock, numbered insert.
func (s *SessionService) createNumberedSession(ctx context.Context, clientID, therapistID, language string) (*models.Session, *models.MainSession, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMainSessions := repository.NewMainSessionRepository(tx)
	txSessions := repository.NewSessionRepository(tx)

	mainSession, err := txMainSessions.GetOrCreate(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	if err := txSessions.LockMainSession(ctx, mainSession.ID); err != nil {
		return nil, nil, err
	}
	session, err := txSessions.Create(ctx, clientID, therapistID, mainSession.ID, language)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return session, mainSession, nil
}

// openingLine produces the spoken continuation opener for a returning
// session. Any failure along the way falls back to the canned opener, and a
// synthesis failure drops audio but keeps the text.
func (s *SessionService) openingLine(ctx context.Context, session *models.Session, mainSessionID, voiceID, language string) (string, []byte) {
	text := prompts.FallbackOpener(language)

	summaries, err := s.sessionRepo.LatestSummaries(ctx, mainSessionID, openerSummaryLimit)
	if err != nil {
		log.Printf("session %s: load opener summaries: %v", session.ID, err)
		summaries = nil
	}

	if len(summaries) > 0 {
		past := make([]prompts.PastSummary, 0, len(summaries))
		for _, ps := range summaries {
			past = append(past, prompts.PastSummary{
				Number:  ps.Number,
				Created: ps.Created,
				Text:    models.DecodeSummary(ps.Summary).Public,
			})
		}
		generated, err := s.completer.Complete(ctx, CompletionRequest{
			Temperature: 0.2,
			TopP:        0.8,
			Messages: []ChatMessage{
				{Role: "system", Content: prompts.OpeningSystemPrompt(language)},
				{Role: "user", Content: prompts.PastSummariesBlock(past)},
			},
		})
		if err != nil {
			log.Printf("session %s: opener completion: %v", session.ID, err)
		} else {
			text = generated
		}
	}

	if _, err := s.messageRepo.Insert(ctx, session.ID, language, false, text); err != nil {
		log.Printf("session %s: store opener message: %v", session.ID, err)
	}

	audio, err := s.synthesizer.Synthesize(ctx, text, voiceID)
	if err != nil {
		log.Printf("session %s: opener synthesis: %v", session.ID, err)
		return text, nil
	}
	return text, audio
}

type SessionPage struct {
	Items []models.SessionListItem
	Total int
}

func (s *SessionService) ListSessions(ctx context.Context, clientID string, filter repository.SessionListFilter) (*SessionPage, error) {
	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.sessionRepo.ListByClient(ctx, clientID, filter)
	if err != nil {
		return nil, err
	}
	return &SessionPage{Items: items, Total: total}, nil
}

// ResetClient soft-deletes the client's sessions and main session. Payment
// rows stay, so an entitled client remains entitled after the reset.
func (s *SessionService) ResetClient(ctx context.Context, clientID string) (int64, error) {
	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrClientNotFound
		}
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	sessions, err := repository.NewSessionRepository(tx).SoftDeleteByClient(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if _, err := repository.NewMainSessionRepository(tx).SoftDeleteByClient(ctx, clientID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return sessions, nil
}

// MockExpireTrial deletes the client's payments and rewinds the main
// session past the trial window, so the next create hits the paywall.
// Admin-only test support.
func (s *SessionService) MockExpireTrial(ctx context.Context, clientID string) (*models.MainSession, error) {
	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := repository.NewPaymentRepository(tx).DeleteByClient(ctx, clientID); err != nil {
		return nil, err
	}
	mainSession, err := repository.NewMainSessionRepository(tx).ShiftCreatedBack(ctx, clientID, trialExpiryShiftDays)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return mainSession, nil
}

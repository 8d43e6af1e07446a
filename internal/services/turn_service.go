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

const (
	// historyMessageLimit and historyCharBudget bound the conversation
	// history sent per turn: at most the last N messages, trimmed further
	// from the oldest end to fit the character budget.
	historyMessageLimit = 30
	historyCharBudget   = 8000

	// priorSummaryLimit caps how many earlier-session summaries are rendered
	// into the turn prompt.
	priorSummaryLimit = 12
)

type TurnInput struct {
	SessionID string
	Audio     []byte
	Filename  string
	MimeType  string
	Language  string
}

type TurnResult struct {
	SessionID     string
	UserMessageID *string
	AIMessageID   string
	Transcript    string
	AIText        string
	Audio         []byte
	Fallback      bool
}

type TurnService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
	transcriber Transcriber
	completer   Completer
	synthesizer Synthesizer
}

func NewTurnService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	transcriber Transcriber,
	completer Completer,
	synthesizer Synthesizer,
) *TurnService {
	return &TurnService{
		db:          db,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		transcriber: transcriber,
		completer:   completer,
		synthesizer: synthesizer,
	}
}

// ListMessages returns the chronological history of a session.
func (s *TurnService) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	if _, err := s.sessionRepo.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s.messageRepo.ListBySession(ctx, sessionID)
}

// ProcessAudioTurn runs one spoken exchange: transcribe the upload, persist
// the user message, complete the reply against bounded history and prior
// summaries, persist it, then synthesize speech.
//
// A failed or empty transcription is not an error: the reply becomes a
// spoken "please repeat" utterance, stored as an assistant message with no
// user message. A synthesis failure degrades to text only. Only persistence
// and completion failures surface as errors.
func (s *TurnService) ProcessAudioTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	tc, err := s.sessionRepo.GetTurnContext(ctx, input.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	language := utils.NormalizeLanguage(utils.FirstNonEmpty("tr", input.Language, tc.Session.Language))

	transcript, err := s.transcriber.Transcribe(ctx, input.Audio, input.Filename, input.MimeType, language)
	if err != nil {
		log.Printf("session %s: transcription: %v", input.SessionID, err)
		transcript = ""
	}
	transcript = strings.TrimSpace(transcript)

	if transcript == "" {
		return s.fallbackTurn(ctx, tc, language)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	txMessages := repository.NewMessageRepository(tx)

	userMsg, err := txMessages.Insert(ctx, input.SessionID, language, true, transcript)
	if err != nil {
		return nil, err
	}

	history, err := txMessages.ListBySession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	priorSummaries, err := repository.NewSessionRepository(tx).
		ListPriorSummaries(ctx, tc.Session.MainSessionID, tc.Session.Number, priorSummaryLimit)
	if err != nil {
		return nil, err
	}

	messages := s.buildTurnMessages(tc, language, history, priorSummaries)
	reply, err := s.completer.Complete(ctx, CompletionRequest{
		Temperature: 0.2,
		TopP:        0.8,
		Messages:    messages,
	})
	if err != nil {
		return nil, fmt.Errorf("turn completion: %w", err)
	}

	aiMsg, err := txMessages.Insert(ctx, input.SessionID, language, false, reply)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := &TurnResult{
		SessionID:     input.SessionID,
		UserMessageID: &userMsg.ID,
		AIMessageID:   aiMsg.ID,
		Transcript:    transcript,
		AIText:        reply,
	}

	audio, err := s.synthesizer.Synthesize(ctx, reply, tc.VoiceID)
	if err != nil {
		log.Printf("session %s: synthesis: %v", input.SessionID, err)
		return result, nil
	}
	result.Audio = audio
	return result, nil
}

// fallbackTurn stores and voices a "please repeat" line when nothing usable
// was heard. No user message is recorded for the silent upload.
func (s *TurnService) fallbackTurn(ctx context.Context, tc *repository.TurnContext, language string) (*TurnResult, error) {
	text := prompts.FallbackUtterance(language)

	aiMsg, err := s.messageRepo.Insert(ctx, tc.Session.ID, language, false, text)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{
		SessionID:   tc.Session.ID,
		AIMessageID: aiMsg.ID,
		AIText:      text,
		Fallback:    true,
	}

	audio, err := s.synthesizer.Synthesize(ctx, text, tc.VoiceID)
	if err != nil {
		log.Printf("session %s: fallback synthesis: %v", tc.Session.ID, err)
		return result, nil
	}
	result.Audio = audio
	return result, nil
}

// buildTurnMessages assembles the completion input: persona system prompt,
// developer state, past-session summaries, then bounded history.
func (s *TurnService) buildTurnMessages(tc *repository.TurnContext, language string, history []models.Message, priorSummaries []repository.PriorSummary) []ChatMessage {
	past := make([]prompts.PastSummary, 0, len(priorSummaries))
	for _, ps := range priorSummaries {
		past = append(past, prompts.PastSummary{
			Number:  ps.Number,
			Created: ps.Created,
			Text:    models.DecodeSummary(ps.Summary).Public,
		})
	}

	messages := []ChatMessage{
		{Role: "system", Content: prompts.SystemPrompt(language)},
		{Role: "system", Content: prompts.DeveloperMessage(prompts.DeveloperState{
			Username:      tc.Username,
			GenderSpoken:  tc.ClientGender.Spoken(),
			TherapistName: tc.TherapistName,
			Language:      language,
		})},
		{Role: "system", Content: prompts.PastSummariesBlock(past)},
	}

	return append(messages, boundedHistory(history, historyMessageLimit, historyCharBudget)...)
}

// boundedHistory keeps the last maxMessages entries, then trims from the
// oldest end until the total content fits charBudget. The newest message
// always survives.
func boundedHistory(history []models.Message, maxMessages, charBudget int) []ChatMessage {
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	start := len(history)
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		size := len(history[i].Content)
		if used+size > charBudget && start < len(history) {
			break
		}
		used += size
		start = i
	}

	bounded := make([]ChatMessage, 0, len(history)-start)
	for _, m := range history[start:] {
		role := "assistant"
		if m.IsClient {
			role = "user"
		}
		bounded = append(bounded, ChatMessage{Role: role, Content: m.Content})
	}
	return bounded
}

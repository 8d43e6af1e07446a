package services

import (
	"strings"
	"testing"

	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/prompts"
	"github.com/kddeniz/ai-therapist/internal/repository"
)

func TestBoundedHistoryKeepsMostRecent(t *testing.T) {
	history := make([]models.Message, 40)
	for i := range history {
		history[i] = models.Message{Content: strings.Repeat("x", 10), IsClient: i%2 == 0}
	}

	bounded := boundedHistory(history, historyMessageLimit, historyCharBudget)
	if len(bounded) != historyMessageLimit {
		t.Fatalf("expected %d messages, got %d", historyMessageLimit, len(bounded))
	}
}

func TestBoundedHistoryCharBudget(t *testing.T) {
	history := []models.Message{
		{Content: strings.Repeat("a", 5000), IsClient: true},
		{Content: strings.Repeat("b", 5000), IsClient: false},
		{Content: strings.Repeat("c", 5000), IsClient: true},
	}

	bounded := boundedHistory(history, historyMessageLimit, 8000)
	if len(bounded) != 1 {
		t.Fatalf("expected only the newest message to fit, got %d", len(bounded))
	}
	if !strings.HasPrefix(bounded[0].Content, "c") {
		t.Fatalf("expected the newest message to survive, got %q prefix", bounded[0].Content[:1])
	}
}

func TestBoundedHistoryNewestAlwaysSurvives(t *testing.T) {
	history := []models.Message{
		{Content: strings.Repeat("z", 20000), IsClient: true},
	}
	bounded := boundedHistory(history, historyMessageLimit, 8000)
	if len(bounded) != 1 {
		t.Fatalf("expected the oversized newest message to survive, got %d", len(bounded))
	}
}

func TestBoundedHistoryRoles(t *testing.T) {
	history := []models.Message{
		{Content: "hello", IsClient: true},
		{Content: "hi there", IsClient: false},
	}
	bounded := boundedHistory(history, historyMessageLimit, historyCharBudget)
	if bounded[0].Role != "user" || bounded[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s, %s", bounded[0].Role, bounded[1].Role)
	}
}

func TestBuildTurnMessagesOrder(t *testing.T) {
	svc := &TurnService{}
	tc := &repository.TurnContext{
		Username:      "zeynep",
		ClientGender:  models.GenderFemale,
		TherapistName: "Elif",
	}
	history := []models.Message{
		{Content: "merhaba", IsClient: true},
	}
	priors := []repository.PriorSummary{
		{Number: 1, Summary: "===PUBLIC_BEGIN===\nslept badly\n===PUBLIC_END===\n===COACH_BEGIN===\nprivate\n===COACH_END==="},
	}

	messages := svc.buildTurnMessages(tc, "tr", history, priors)
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	for i := 0; i < 3; i++ {
		if messages[i].Role != "system" {
			t.Fatalf("message %d should be system, got %s", i, messages[i].Role)
		}
	}
	if !strings.Contains(messages[1].Content, "Elif") {
		t.Fatal("developer message should carry the therapist name")
	}
	if !strings.Contains(messages[2].Content, "slept badly") {
		t.Fatal("past summaries block should carry the public summary text")
	}
	if strings.Contains(messages[2].Content, "private") {
		t.Fatal("coach notes must not enter the turn prompt")
	}
	if messages[3].Role != "user" || messages[3].Content != "merhaba" {
		t.Fatalf("unexpected history message: %+v", messages[3])
	}
}

func TestBuildTurnMessagesNoPriorSummaries(t *testing.T) {
	svc := &TurnService{}
	messages := svc.buildTurnMessages(&repository.TurnContext{}, "en", nil, nil)
	if !strings.Contains(messages[2].Content, "PAST_SESSIONS: none.") {
		t.Fatalf("expected explicit none marker, got %q", messages[2].Content)
	}
}

func TestFallbackUtterancePerLanguage(t *testing.T) {
	tr := prompts.FallbackUtterance("tr-TR")
	if tr == "" {
		t.Fatal("expected a Turkish fallback utterance")
	}
	unknown := prompts.FallbackUtterance("xx")
	if unknown == "" {
		t.Fatal("expected the English pool for unknown languages")
	}
}

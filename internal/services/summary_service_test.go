package services

import (
	"strings"
	"testing"

	"github.com/kddeniz/ai-therapist/internal/models"
)

func TestBoundedTranscriptRoleTags(t *testing.T) {
	messages := []models.Message{
		{Content: "I slept badly", IsClient: true},
		{Content: "Tell me more", IsClient: false},
	}
	transcript := boundedTranscript(messages, transcriptCharBudget)
	want := "User: I slept badly\nAssistant: Tell me more\n"
	if transcript != want {
		t.Fatalf("unexpected transcript:\n%q\nwant:\n%q", transcript, want)
	}
}

func TestBoundedTranscriptCutsOldestFirst(t *testing.T) {
	messages := []models.Message{
		{Content: strings.Repeat("a", 9000), IsClient: true},
		{Content: strings.Repeat("b", 5000), IsClient: false},
		{Content: "latest", IsClient: true},
	}
	transcript := boundedTranscript(messages, 6000)
	if strings.Contains(transcript, "a") {
		t.Fatal("oldest message should have been cut")
	}
	if !strings.Contains(transcript, "latest") {
		t.Fatal("newest message must survive")
	}
	if !strings.Contains(transcript, "b") {
		t.Fatal("middle message fits the budget and should survive")
	}
	// Chronological order is preserved after the cut.
	if strings.Index(transcript, "b") > strings.Index(transcript, "latest") {
		t.Fatal("transcript order should stay chronological")
	}
}

func TestBoundedTranscriptEmpty(t *testing.T) {
	if got := boundedTranscript(nil, transcriptCharBudget); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestEffectiveLanguagePrefersSessionThenLastClientMessage(t *testing.T) {
	session := &models.Session{Language: "en-US"}
	if got := effectiveLanguage(session, nil); got != "en" {
		t.Fatalf("expected en, got %q", got)
	}

	session.Language = ""
	messages := []models.Message{
		{Language: "de", IsClient: true},
		{Language: "en", IsClient: false},
		{Language: "tr", IsClient: true},
	}
	if got := effectiveLanguage(session, messages); got != "tr" {
		t.Fatalf("expected last client message language, got %q", got)
	}

	if got := effectiveLanguage(session, nil); got != "tr" {
		t.Fatalf("expected default tr, got %q", got)
	}
}

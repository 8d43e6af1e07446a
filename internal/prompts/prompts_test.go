package prompts

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPastSummariesBlock(t *testing.T) {
	if got := PastSummariesBlock(nil); got != "PAST_SESSIONS: none." {
		t.Fatalf("expected explicit none marker, got %q", got)
	}

	long := strings.Repeat("x", 2000)
	block := PastSummariesBlock([]PastSummary{
		{Number: 3, Created: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), Text: long},
	})
	if !strings.HasPrefix(block, "PAST_SESSIONS_SUMMARIES:") {
		t.Fatalf("unexpected header: %q", block)
	}
	if !strings.Contains(block, "#3 (2026-04-01T09:00:00Z):") {
		t.Fatalf("missing session line: %q", block)
	}
	if len(block) > PastSummariesClampLen+200 {
		t.Fatalf("summary text not clamped, block is %d bytes", len(block))
	}
}

func TestSummaryUserPromptDuration(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	prompt := SummaryUserPrompt(SummaryMeta{
		SessionNumber: 2,
		StartedAt:     start,
		EndedAt:       start.Add(10 * time.Second),
	}, "User: hi\n", "en")

	if !strings.Contains(prompt, "duration_min: 1") {
		t.Fatal("sub-minute sessions should report one minute")
	}
	if !strings.Contains(prompt, "session_number: 2") {
		t.Fatal("missing session number")
	}
	if !strings.Contains(prompt, "User: hi") {
		t.Fatal("transcript missing from prompt")
	}
	if !strings.Contains(prompt, "===PUBLIC_BEGIN===") || !strings.Contains(prompt, "===COACH_END===") {
		t.Fatal("marker contract missing from prompt")
	}
}

func TestSummaryUserPromptNoneSentinelInEverySection(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	prompt := SummaryUserPrompt(SummaryMeta{
		SessionNumber: 1,
		StartedAt:     start,
		EndedAt:       start.Add(20 * time.Minute),
	}, "User: hi\n", "en")

	if strings.Contains(prompt, "(MISSING)") {
		t.Fatalf("format verbs and arguments disagree: %q", prompt)
	}
	// TASK, Homework, and the coach-note section each instruct the sentinel.
	if got := strings.Count(prompt, `"None"`); got != 3 {
		t.Fatalf("expected the quoted sentinel 3 times, got %d", got)
	}
}

func TestNoneSentinelPerLanguage(t *testing.T) {
	if NoneSentinel("tr-TR") != "Yok" {
		t.Fatal("expected Turkish sentinel")
	}
	if NoneSentinel("en") != "None" || NoneSentinel("de") != "None" {
		t.Fatal("expected English sentinel for non-Turkish")
	}
}

func TestDeveloperMessageState(t *testing.T) {
	msg := DeveloperMessage(DeveloperState{
		Username:      "zeynep",
		GenderSpoken:  "female",
		TherapistName: "Elif",
		Language:      "tr-TR",
	})
	for _, want := range []string{"name=zeynep", "gender=female", "language=tr", "your name is Elif"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("developer message missing %q", want)
		}
	}
}

func TestMinimalSummaryLocalized(t *testing.T) {
	tr := MinimalSummaryPublic("tr")
	if !strings.Contains(tr, "Seans Özeti") {
		t.Fatalf("expected Turkish minimal summary, got %q", tr)
	}
	en := MinimalSummaryPublic("en")
	if !strings.Contains(en, "Session Summary") {
		t.Fatalf("expected English minimal summary, got %q", en)
	}
}

func TestFallbackUtteranceDrawsFromPool(t *testing.T) {
	got := FallbackUtterance("tr")
	found := false
	for _, candidate := range fallbackPools["tr"] {
		if got == candidate {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("utterance %q not in the Turkish pool", got)
	}
}

func TestFallbackUtteranceConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if FallbackUtterance("en") == "" {
					t.Error("empty utterance")
					return
				}
			}
		}()
	}
	wg.Wait()
}

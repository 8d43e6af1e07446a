package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/services"
)

type stubTurnService struct {
	result    *services.TurnResult
	err       error
	messages  []models.Message
	listErr   error
	lastInput services.TurnInput
}

func (s *stubTurnService) ProcessAudioTurn(_ context.Context, input services.TurnInput) (*services.TurnResult, error) {
	s.lastInput = input
	return s.result, s.err
}

func (s *stubTurnService) ListMessages(_ context.Context, _ string) ([]models.Message, error) {
	return s.messages, s.listErr
}

func newMessageTestApp(turns turnApplicationService) *fiber.App {
	handler := &MessageHandler{turns: turns}
	app := fiber.New()
	app.Post("/api/sessions/:id/messages/audio", handler.PostAudio)
	app.Get("/api/sessions/:id/messages", handler.ListMessages)
	return app
}

func audioTurnRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "turn.ogg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake-ogg-bytes")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages/audio", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestPostAudioJSONEnvelope(t *testing.T) {
	userID := "m1"
	turns := &stubTurnService{
		result: &services.TurnResult{
			SessionID:     "s1",
			UserMessageID: &userID,
			AIMessageID:   "m2",
			Transcript:    "bugün yorgunum",
			AIText:        "anlıyorum, anlatmak ister misin?",
			Audio:         []byte{0x10, 0x20},
		},
	}
	app := newMessageTestApp(turns)

	resp, err := app.Test(audioTurnRequest(t, map[string]string{"language": "tr"}))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if turns.lastInput.SessionID != "s1" || turns.lastInput.Language != "tr" {
		t.Fatalf("input not forwarded: %+v", turns.lastInput)
	}
	if len(turns.lastInput.Audio) == 0 {
		t.Fatal("audio bytes not forwarded")
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["transcript"] != "bugün yorgunum" {
		t.Fatalf("unexpected transcript: %v", body["transcript"])
	}
	if body["fallback"] != false {
		t.Fatalf("unexpected fallback flag: %v", body["fallback"])
	}
	decoded, err := base64.StdEncoding.DecodeString(body["audio_base64"].(string))
	if err != nil || !bytes.Equal(decoded, []byte{0x10, 0x20}) {
		t.Fatalf("audio not round-tripped: %v %v", decoded, err)
	}
}

func TestPostAudioFallbackTurn(t *testing.T) {
	turns := &stubTurnService{
		result: &services.TurnResult{
			SessionID:   "s1",
			AIMessageID: "m9",
			AIText:      "seni duyamadım",
			Fallback:    true,
		},
	}
	app := newMessageTestApp(turns)

	resp, err := app.Test(audioTurnRequest(t, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fallback must answer 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["fallback"] != true {
		t.Fatalf("expected fallback flag, got %v", body["fallback"])
	}
	if _, ok := body["user_message_id"]; ok {
		t.Fatal("fallback turn must not report a user message id")
	}
}

func TestPostAudioStreamResponse(t *testing.T) {
	userID := "m1"
	turns := &stubTurnService{
		result: &services.TurnResult{
			SessionID:     "s1",
			UserMessageID: &userID,
			AIMessageID:   "m2",
			Transcript:    "hello",
			AIText:        "hi!",
			Audio:         []byte{0xff, 0xfb},
		},
	}
	app := newMessageTestApp(turns)

	resp, err := app.Test(audioTurnRequest(t, map[string]string{"stream": "1"}))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected raw audio, got %q", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(raw, []byte{0xff, 0xfb}) {
		t.Fatalf("unexpected body: %v", raw)
	}
	transcript, err := base64.StdEncoding.DecodeString(resp.Header.Get("X-Transcript-B64"))
	if err != nil || string(transcript) != "hello" {
		t.Fatalf("transcript header mismatch: %q %v", transcript, err)
	}
	if resp.Header.Get("X-Ai-Message-Id") != "m2" {
		t.Fatalf("missing ai message header")
	}
}

func TestPostAudioMissingFile(t *testing.T) {
	app := newMessageTestApp(&stubTurnService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages/audio", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPostAudioSessionNotFound(t *testing.T) {
	app := newMessageTestApp(&stubTurnService{err: services.ErrSessionNotFound})

	resp, err := app.Test(audioTurnRequest(t, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListMessages(t *testing.T) {
	turns := &stubTurnService{
		messages: []models.Message{
			{ID: "m1", IsClient: true, Content: "hi"},
			{ID: "m2", IsClient: false, Content: "hello"},
		},
	}
	app := newMessageTestApp(turns)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/sessions/s1/messages", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[0].ID != "m1" {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

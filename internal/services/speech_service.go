package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transcriber converts an uploaded audio blob to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, mimeType, language string) (string, error)
}

// Synthesizer converts reply text to spoken audio (audio/mpeg).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// ElevenLabsService implements both sides of the speech pipeline against
// the ElevenLabs HTTP API.
type ElevenLabsService struct {
	sttURL     string
	ttsURL     string
	apiKey     string
	httpClient *http.Client
}

func NewElevenLabsService(sttURL, ttsURL, apiKey string) *ElevenLabsService {
	return &ElevenLabsService{
		sttURL: strings.TrimRight(sttURL, "/"),
		ttsURL: strings.TrimRight(ttsURL, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *ElevenLabsService) Transcribe(ctx context.Context, audio []byte, filename, mimeType, language string) (string, error) {
	if filename == "" {
		filename = "audio.ogg"
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build stt form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write stt audio: %w", err)
	}

	fields := map[string]string{
		"model_id":               "scribe_v1",
		"diarize":                "false",
		"num_speakers":           "1",
		"timestamps_granularity": "none",
		"tag_audio_events":       "false",
	}
	if language != "" {
		fields["language_code"] = language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", fmt.Errorf("write stt field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close stt form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sttURL, &body)
	if err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech to text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("speech to text: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	if result.Text != "" {
		return result.Text, nil
	}
	return result.Transcript, nil
}

func (s *ElevenLabsService) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload := map[string]any{
		"text":          text,
		"model_id":      "eleven_flash_v2_5",
		"output_format": "mp3_22050_32",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tts payload: %w", err)
	}

	endpoint := s.ttsURL + "/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text to speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("text to speech: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	return audio, nil
}

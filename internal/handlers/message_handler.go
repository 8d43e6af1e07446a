package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/services"
)

// maxAudioUploadBytes bounds a single voice turn upload.
const maxAudioUploadBytes = 20 << 20

type turnApplicationService interface {
	ProcessAudioTurn(ctx context.Context, input services.TurnInput) (*services.TurnResult, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

type MessageHandler struct {
	turns turnApplicationService
}

func NewMessageHandler(turns *services.TurnService) *MessageHandler {
	return &MessageHandler{turns: turns}
}

// PostAudio accepts a multipart voice recording and runs one conversation
// turn. With stream=1 the reply audio is the response body and the text
// travels in headers; otherwise everything is a JSON envelope with the
// audio base64-encoded.
func (h *MessageHandler) PostAudio(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		fileHeader, err = c.FormFile("file")
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "audio file is required"})
	}
	if fileHeader.Size > maxAudioUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "audio file is too large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read audio file"})
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUploadBytes+1))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read audio file"})
	}
	if len(audio) > maxAudioUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "audio file is too large"})
	}

	result, err := h.turns.ProcessAudioTurn(c.Context(), services.TurnInput{
		SessionID: c.Params("id"),
		Audio:     audio,
		Filename:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		Language:  c.FormValue("language"),
	})
	if err != nil {
		return mapTurnError(c, err)
	}

	if c.FormValue("stream") == "1" && len(result.Audio) > 0 {
		c.Set(fiber.HeaderContentType, "audio/mpeg")
		c.Set("X-Session-Id", result.SessionID)
		c.Set("X-Ai-Message-Id", result.AIMessageID)
		if result.UserMessageID != nil {
			c.Set("X-User-Message-Id", *result.UserMessageID)
		}
		// Header values must stay ASCII, the texts often are not.
		c.Set("X-Transcript-B64", base64.StdEncoding.EncodeToString([]byte(result.Transcript)))
		c.Set("X-Ai-Text-B64", base64.StdEncoding.EncodeToString([]byte(result.AIText)))
		if result.Fallback {
			c.Set("X-Fallback", "1")
		}
		return c.Send(result.Audio)
	}

	response := fiber.Map{
		"session_id":    result.SessionID,
		"ai_message_id": result.AIMessageID,
		"transcript":    result.Transcript,
		"ai_text":       result.AIText,
		"fallback":      result.Fallback,
	}
	if result.UserMessageID != nil {
		response["user_message_id"] = *result.UserMessageID
	}
	if len(result.Audio) > 0 {
		response["audio_base64"] = base64.StdEncoding.EncodeToString(result.Audio)
		response["audio_mime"] = "audio/mpeg"
	}
	return c.JSON(response)
}

func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	messages, err := h.turns.ListMessages(c.Context(), c.Params("id"))
	if err != nil {
		return mapTurnError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func mapTurnError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process message"})
	}
}

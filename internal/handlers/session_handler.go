package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kddeniz/ai-therapist/internal/services"
)

type sessionApplicationService interface {
	CreateSession(ctx context.Context, input services.CreateSessionInput) (*services.CreateSessionResult, error)
}

type summaryApplicationService interface {
	EndSession(ctx context.Context, sessionID string, force bool) (*services.EndSessionResult, error)
	GetSummary(ctx context.Context, sessionID string, includeCoach bool) (*services.SummaryView, error)
}

type SessionHandler struct {
	sessions  sessionApplicationService
	summaries summaryApplicationService
}

func NewSessionHandler(sessions *services.SessionService, summaries *services.SummaryService) *SessionHandler {
	return &SessionHandler{sessions: sessions, summaries: summaries}
}

type createSessionRequest struct {
	ClientID    string `json:"client_id"`
	TherapistID string `json:"therapist_id"`
	Language    string `json:"language"`
	Intent      string `json:"intent"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := h.sessions.CreateSession(c.Context(), services.CreateSessionInput{
		ClientID:    req.ClientID,
		TherapistID: req.TherapistID,
		Language:    req.Language,
		Intent:      req.Intent,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	response := fiber.Map{
		"session": result.Session,
		"trial":   result.Trial,
	}
	if result.IntroURL != "" {
		response["intro_url"] = result.IntroURL
	}
	if result.OpeningText != "" {
		opening := fiber.Map{"text": result.OpeningText}
		if len(result.OpeningAudio) > 0 {
			opening["audio_base64"] = base64.StdEncoding.EncodeToString(result.OpeningAudio)
			opening["audio_mime"] = "audio/mpeg"
		}
		response["opening"] = opening
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

type endSessionRequest struct {
	Force bool `json:"force"`
}

func (h *SessionHandler) EndSession(c *fiber.Ctx) error {
	var req endSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	force := req.Force || c.Query("force") == "1" || c.Query("force") == "true"

	result, err := h.summaries.EndSession(c.Context(), c.Params("id"), force)
	if err != nil {
		return mapSessionError(c, err)
	}
	if result.AlreadyEnded {
		return c.JSON(fiber.Map{"session": result, "already_ended": true})
	}
	return c.JSON(fiber.Map{"session": result})
}

func (h *SessionHandler) GetSummary(c *fiber.Ctx) error {
	includeCoach := c.Query("coach") == "1"
	format := strings.TrimSpace(c.Query("format"))
	if format != "" && format != "json" && format != "html" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "format must be json or html"})
	}

	view, err := h.summaries.GetSummary(c.Context(), c.Params("id"), includeCoach)
	if err != nil {
		return mapSessionError(c, err)
	}

	etag := summaryETag(view, includeCoach, format)
	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && match == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	c.Set(fiber.HeaderETag, etag)

	if format == "html" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(renderSummaryHTML(view))
	}
	return c.JSON(fiber.Map{"summary": view})
}

// summaryETag derives a strong validator from the summary content and the
// requested representation.
func summaryETag(view *services.SummaryView, includeCoach bool, format string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%v|%s|%s|", view.ID, includeCoach, format, view.Public)
	if view.Coach != nil {
		h.Write([]byte(*view.Coach))
	}
	return `"` + hex.EncodeToString(h.Sum(nil))[:32] + `"`
}

// renderSummaryHTML converts the summary's plain Markdown subset (headings
// and bullets) into a minimal standalone page.
func renderSummaryHTML(view *services.SummaryView) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Session Summary</title></head><body>\n")
	writeMarkdownSection(&b, view.Public)
	if view.Coach != nil {
		b.WriteString("<hr>\n")
		writeMarkdownSection(&b, *view.Coach)
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func writeMarkdownSection(b *strings.Builder, markdown string) {
	inList := false
	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			closeList()
		case strings.HasPrefix(trimmed, "## "):
			closeList()
			fmt.Fprintf(b, "<h2>%s</h2>\n", html.EscapeString(strings.TrimPrefix(trimmed, "## ")))
		case strings.HasPrefix(trimmed, "# "):
			closeList()
			fmt.Fprintf(b, "<h1>%s</h1>\n", html.EscapeString(strings.TrimPrefix(trimmed, "# ")))
		case strings.HasPrefix(trimmed, "- "):
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(strings.TrimPrefix(trimmed, "- ")))
		default:
			closeList()
			fmt.Fprintf(b, "<p>%s</p>\n", html.EscapeString(trimmed))
		}
	}
	closeList()
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPaymentRequired):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Payment required"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, services.ErrTherapistNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Therapist not found"})
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrSummaryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Summary not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}

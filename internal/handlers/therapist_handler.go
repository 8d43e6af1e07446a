package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/internal/services"
)

type therapistApplicationService interface {
	List(ctx context.Context, filter repository.TherapistListFilter) ([]models.Therapist, error)
	Get(ctx context.Context, id string) (*models.Therapist, error)
	VoicePreview(ctx context.Context, id, language string) (*services.VoicePreviewResult, error)
}

type TherapistHandler struct {
	therapists therapistApplicationService
}

func NewTherapistHandler(therapists *services.TherapistService) *TherapistHandler {
	return &TherapistHandler{therapists: therapists}
}

func (h *TherapistHandler) List(c *fiber.Ctx) error {
	filter := repository.TherapistListFilter{
		Query: strings.TrimSpace(c.Query("q")),
	}
	if raw := strings.TrimSpace(c.Query("gender")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < int(models.GenderUnknown) || value > int(models.GenderFemale) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "gender must be 0, 1 or 2"})
		}
		gender := models.Gender(value)
		filter.Gender = &gender
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	therapists, err := h.therapists.List(c.Context(), filter)
	if err != nil {
		return mapTherapistError(c, err)
	}
	return c.JSON(fiber.Map{"therapists": therapists})
}

func (h *TherapistHandler) Get(c *fiber.Ctx) error {
	therapist, err := h.therapists.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapTherapistError(c, err)
	}
	return c.JSON(fiber.Map{"therapist": therapist})
}

// VoicePreview serves a short sample of the therapist's voice, redirecting
// to a pre-rendered clip when one exists.
func (h *TherapistHandler) VoicePreview(c *fiber.Ctx) error {
	result, err := h.therapists.VoicePreview(c.Context(), c.Params("id"), c.Query("language"))
	if err != nil {
		return mapTherapistError(c, err)
	}
	if result.RedirectURL != "" {
		return c.Redirect(result.RedirectURL, fiber.StatusFound)
	}
	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(result.Audio)
}

func mapTherapistError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrTherapistNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Therapist not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process therapist request"})
	}
}

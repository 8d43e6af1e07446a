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

type clientApplicationService interface {
	Register(ctx context.Context, input services.RegisterClientInput) (*models.Client, error)
	Get(ctx context.Context, clientID string) (*services.ClientProfile, error)
	List(ctx context.Context) ([]models.Client, error)
}

type clientSessionService interface {
	ListSessions(ctx context.Context, clientID string, filter repository.SessionListFilter) (*services.SessionPage, error)
	ResetClient(ctx context.Context, clientID string) (int64, error)
	MockExpireTrial(ctx context.Context, clientID string) (*models.MainSession, error)
}

type ClientHandler struct {
	clients  clientApplicationService
	sessions clientSessionService
}

func NewClientHandler(clients *services.ClientService, sessions *services.SessionService) *ClientHandler {
	return &ClientHandler{clients: clients, sessions: sessions}
}

type registerClientRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Gender   int    `json:"gender"`
	Language string `json:"language"`
}

func (h *ClientHandler) Register(c *fiber.Ctx) error {
	var req registerClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	client, err := h.clients.Register(c.Context(), services.RegisterClientInput{
		ID:       req.ID,
		Username: req.Username,
		Gender:   req.Gender,
		Language: req.Language,
	})
	if err != nil {
		return mapClientError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"client": client})
}

func (h *ClientHandler) List(c *fiber.Ctx) error {
	clients, err := h.clients.List(c.Context())
	if err != nil {
		return mapClientError(c, err)
	}
	return c.JSON(fiber.Map{"clients": clients})
}

func (h *ClientHandler) Get(c *fiber.Ctx) error {
	profile, err := h.clients.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapClientError(c, err)
	}
	return c.JSON(fiber.Map{
		"client": profile.Client,
		"trial":  profile.Trial,
	})
}

func (h *ClientHandler) ListSessions(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && status != "active" && status != "ended" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be active or ended"})
	}
	sort := strings.TrimSpace(c.Query("sort"))
	if sort != "" && sort != "created_asc" && sort != "created_desc" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sort must be created_asc or created_desc"})
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.sessions.ListSessions(c.Context(), c.Params("id"), repository.SessionListFilter{
		Status: status,
		Sort:   sort,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return mapClientError(c, err)
	}
	return c.JSON(fiber.Map{
		"sessions": page.Items,
		"total":    page.Total,
	})
}

func (h *ClientHandler) Reset(c *fiber.Ctx) error {
	deleted, err := h.sessions.ResetClient(c.Context(), c.Params("id"))
	if err != nil {
		return mapClientError(c, err)
	}
	return c.JSON(fiber.Map{"deleted_sessions": deleted})
}

// MockExpireTrial is the admin-only trial-expiry shortcut used while
// testing the paywall.
func (h *ClientHandler) MockExpireTrial(c *fiber.Ctx) error {
	mainSession, err := h.sessions.MockExpireTrial(c.Context(), c.Params("id"))
	if err != nil {
		return mapClientError(c, err)
	}
	return c.JSON(fiber.Map{"main_session": mainSession})
}

func mapClientError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process client request"})
	}
}

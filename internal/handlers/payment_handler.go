package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/internal/services"
)

type paymentApplicationService interface {
	RecordPayment(ctx context.Context, input services.RecordPaymentInput) (*models.ClientPayment, error)
	ListPayments(ctx context.Context, filter repository.PaymentListFilter) ([]models.ClientPayment, error)
	HandleRevenueCatWebhook(ctx context.Context, body json.RawMessage) (*models.ClientPayment, error)
}

type PaymentHandler struct {
	payments paymentApplicationService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type recordPaymentRequest struct {
	ClientID      string          `json:"client_id"`
	SessionID     *string         `json:"session_id"`
	Provider      any             `json:"provider"`
	TransactionID string          `json:"transaction_id"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	Status        any             `json:"status"`
	PaidAt        *string         `json:"paid_at"`
	RawPayload    json.RawMessage `json:"raw_payload"`
	Note          *string         `json:"note"`
}

func (h *PaymentHandler) RecordPayment(c *fiber.Ctx) error {
	var req recordPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var paidAt *time.Time
	if req.PaidAt != nil && strings.TrimSpace(*req.PaidAt) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.PaidAt))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "paid_at must be a valid RFC3339 timestamp"})
		}
		paidAt = &parsed
	}

	payment, err := h.payments.RecordPayment(c.Context(), services.RecordPaymentInput{
		ClientID:      req.ClientID,
		SessionID:     req.SessionID,
		Provider:      req.Provider,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        req.Status,
		PaidAt:        paidAt,
		RawPayload:    req.RawPayload,
		Note:          req.Note,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	filter := repository.PaymentListFilter{
		ClientID: strings.TrimSpace(c.Query("client_id")),
	}
	if raw := strings.TrimSpace(c.Query("provider")); raw != "" {
		provider, err := models.ParseProvider(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		filter.Provider = &provider
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := models.ParsePaymentStatus(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	payments, err := h.payments.ListPayments(c.Context(), filter)
	if err != nil {
		return mapPaymentError(c, err)
	}

	items := make([]listedPayment, 0, len(payments))
	for _, p := range payments {
		items = append(items, listedPayment{
			ClientPayment: p,
			ProviderLabel: p.Provider.Label(),
			StatusLabel:   p.Status.Label(),
		})
	}
	return c.JSON(fiber.Map{"payments": items})
}

// listedPayment adds the human-readable enum labels to a listed payment row.
type listedPayment struct {
	models.ClientPayment
	ProviderLabel string `json:"providerLabel"`
	StatusLabel   string `json:"statusLabel"`
}

// RevenueCatWebhook ingests store events. The raw body is logged before any
// interpretation, and unknown-client events still answer 200 so the sender
// does not retry forever.
func (h *PaymentHandler) RevenueCatWebhook(c *fiber.Ctx) error {
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	// Even an empty delivery goes through the service so it leaves an audit
	// row before being rejected.
	payment, err := h.payments.HandleRevenueCatWebhook(c.Context(), body)
	if err != nil {
		if len(body) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "empty webhook body"})
		}
		if errors.Is(err, services.ErrClientNotFound) || errors.Is(err, services.ErrInvalidInput) {
			return c.JSON(fiber.Map{"received": true, "applied": false})
		}
		return mapPaymentError(c, err)
	}
	return c.JSON(fiber.Map{"received": true, "applied": true, "payment_id": payment.ID})
}

func mapPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process payment request"})
	}
}

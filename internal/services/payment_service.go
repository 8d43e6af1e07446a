package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/repository"
)

type PaymentService struct {
	clientRepo  *repository.ClientRepository
	paymentRepo *repository.PaymentRepository
	webhookLogs *repository.WebhookLogRepository
}

func NewPaymentService(
	clientRepo *repository.ClientRepository,
	paymentRepo *repository.PaymentRepository,
	webhookLogs *repository.WebhookLogRepository,
) *PaymentService {
	return &PaymentService{
		clientRepo:  clientRepo,
		paymentRepo: paymentRepo,
		webhookLogs: webhookLogs,
	}
}

type RecordPaymentInput struct {
	ClientID      string
	SessionID     *string
	Provider      any
	TransactionID string
	Amount        float64
	Currency      string
	Status        any
	PaidAt        *time.Time
	RawPayload    json.RawMessage
	Note          *string
}

// RecordPayment validates and upserts a client-reported payment. Redelivery
// of the same (provider, transaction_id) is an update, not a duplicate.
func (s *PaymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.ClientPayment, error) {
	if input.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.TransactionID) == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", ErrInvalidInput)
	}
	if input.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}

	provider, err := models.ParseProvider(input.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	status := models.PaymentCompleted
	if input.Status != nil {
		status, err = models.ParsePaymentStatus(input.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	if _, err := s.clientRepo.GetByID(ctx, input.ClientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return s.paymentRepo.Upsert(ctx, repository.UpsertPaymentInput{
		ClientID:      input.ClientID,
		SessionID:     input.SessionID,
		Provider:      provider,
		TransactionID: strings.TrimSpace(input.TransactionID),
		Amount:        input.Amount,
		Currency:      currency,
		Status:        status,
		PaidAt:        input.PaidAt,
		RawPayload:    input.RawPayload,
		Note:          input.Note,
	})
}

func (s *PaymentService) ListPayments(ctx context.Context, filter repository.PaymentListFilter) ([]models.ClientPayment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.paymentRepo.List(ctx, filter)
}

// revenueCatEvent is the subset of the RevenueCat webhook envelope the
// backend interprets. Everything else rides along in the raw payload.
type revenueCatEvent struct {
	Event struct {
		ID                    string  `json:"id"`
		Type                  string  `json:"type"`
		AppUserID             string  `json:"app_user_id"`
		TransactionID         string  `json:"transaction_id"`
		OriginalTransactionID string  `json:"original_transaction_id"`
		ProductID             string  `json:"product_id"`
		Store                 string  `json:"store"`
		Price                 float64 `json:"price"`
		Currency              string  `json:"currency"`
		PurchasedAtMs         int64   `json:"purchased_at_ms"`
	} `json:"event"`
}

func revenueCatProvider(store string) models.Provider {
	switch strings.ToUpper(strings.TrimSpace(store)) {
	case "APP_STORE", "APPSTORE", "APPLE":
		return models.ProviderIOS
	case "PLAY_STORE", "GOOGLE_PLAY", "PLAYSTORE":
		return models.ProviderAndroid
	default:
		return models.ProviderWeb
	}
}

func revenueCatStatus(eventType string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "INITIAL_PURCHASE", "RENEWAL", "PRODUCT_CHANGE":
		return models.PaymentCompleted
	case "CANCELLATION", "EXPIRATION":
		return models.PaymentRevoked
	case "PENDING", "BILLING_ISSUE":
		return models.PaymentPending
	default:
		return models.PaymentCompleted
	}
}

// HandleRevenueCatWebhook logs the raw delivery first, then interprets the
// event into a payment upsert. Interpretation failures are recorded on the
// log row and returned; the raw body is never lost.
func (s *PaymentService) HandleRevenueCatWebhook(ctx context.Context, body json.RawMessage) (*models.ClientPayment, error) {
	logID, err := s.webhookLogs.InsertRaw(ctx, "revenuecat", body)
	if err != nil {
		return nil, err
	}

	payment, err := s.applyRevenueCatEvent(ctx, body)
	if err != nil {
		if logErr := s.webhookLogs.SetError(ctx, logID, err.Error()); logErr != nil {
			return nil, fmt.Errorf("%w (log update failed: %v)", err, logErr)
		}
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) applyRevenueCatEvent(ctx context.Context, body json.RawMessage) (*models.ClientPayment, error) {
	var envelope revenueCatEvent
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", ErrInvalidInput, err)
	}
	event := envelope.Event

	if event.AppUserID == "" {
		return nil, fmt.Errorf("%w: event.app_user_id is missing", ErrInvalidInput)
	}
	transactionID := event.TransactionID
	if transactionID == "" {
		transactionID = event.OriginalTransactionID
	}
	if transactionID == "" {
		transactionID = event.ID
	}
	if transactionID == "" {
		return nil, fmt.Errorf("%w: event carries no transaction id", ErrInvalidInput)
	}

	if _, err := s.clientRepo.GetByID(ctx, event.AppUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrClientNotFound, event.AppUserID)
		}
		return nil, err
	}

	var paidAt *time.Time
	if event.PurchasedAtMs > 0 {
		t := time.UnixMilli(event.PurchasedAtMs).UTC()
		paidAt = &t
	}

	currency := strings.ToUpper(strings.TrimSpace(event.Currency))
	if len(currency) != 3 {
		currency = "USD"
	}
	amount := event.Price
	if amount < 0 {
		amount = 0
	}

	note := fmt.Sprintf("RC product_id=%s; type=%s", event.ProductID, event.Type)

	return s.paymentRepo.Upsert(ctx, repository.UpsertPaymentInput{
		ClientID:      event.AppUserID,
		Provider:      revenueCatProvider(event.Store),
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      currency,
		Status:        revenueCatStatus(event.Type),
		PaidAt:        paidAt,
		RawPayload:    body,
		Note:          &note,
	})
}

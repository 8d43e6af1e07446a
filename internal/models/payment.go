package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Provider and PaymentStatus are stored as small integers; the API accepts
// either the symbolic name or the integer code.
type Provider int

const (
	ProviderIOS     Provider = 1
	ProviderAndroid Provider = 2
	ProviderWeb     Provider = 3
)

func (p Provider) Label() string {
	switch p {
	case ProviderIOS:
		return "ios"
	case ProviderAndroid:
		return "android"
	case ProviderWeb:
		return "web"
	default:
		return ""
	}
}

// ParseProvider accepts "ios"/"android"/"web" or their codes 1/2/3.
func ParseProvider(v any) (Provider, error) {
	switch t := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "ios":
			return ProviderIOS, nil
		case "android":
			return ProviderAndroid, nil
		case "web":
			return ProviderWeb, nil
		}
	case float64:
		return ParseProvider(int(t))
	case int:
		if t >= 1 && t <= 3 {
			return Provider(t), nil
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return ParseProvider(int(n))
		}
	}
	return 0, fmt.Errorf("provider must be ios|android|web or 1|2|3")
}

type PaymentStatus int

const (
	PaymentPending   PaymentStatus = 0
	PaymentCompleted PaymentStatus = 1
	PaymentRefunded  PaymentStatus = 2
	PaymentRevoked   PaymentStatus = 3
)

func (s PaymentStatus) Label() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentCompleted:
		return "completed"
	case PaymentRefunded:
		return "refunded"
	case PaymentRevoked:
		return "revoked"
	default:
		return ""
	}
}

// ParsePaymentStatus accepts symbolic names or the codes 0..3.
func ParsePaymentStatus(v any) (PaymentStatus, error) {
	switch t := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "pending":
			return PaymentPending, nil
		case "completed":
			return PaymentCompleted, nil
		case "refunded":
			return PaymentRefunded, nil
		case "revoked":
			return PaymentRevoked, nil
		}
	case float64:
		return ParsePaymentStatus(int(t))
	case int:
		if t >= 0 && t <= 3 {
			return PaymentStatus(t), nil
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return ParsePaymentStatus(int(n))
		}
	}
	return 0, fmt.Errorf("status must be pending|completed|refunded|revoked or 0|1|2|3")
}

type ClientPayment struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"clientId"`
	SessionID     *string         `json:"sessionId"`
	Provider      Provider        `json:"provider"`
	TransactionID string          `json:"transactionId"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	Status        PaymentStatus   `json:"status"`
	PaidAt        time.Time       `json:"paidAt"`
	RawPayload    json.RawMessage `json:"rawPayload,omitempty"`
	Note          *string         `json:"note"`
	Created       time.Time       `json:"created"`
}

// WebhookRawLog is the append-only audit row written before any webhook
// interpretation happens, so malformed deliveries stay recoverable.
type WebhookRawLog struct {
	ID      string          `json:"id"`
	Source  string          `json:"source"`
	Body    json.RawMessage `json:"body"`
	Error   *string         `json:"error"`
	Created time.Time       `json:"created"`
}

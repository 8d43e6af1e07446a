package services

import (
	"testing"

	"github.com/kddeniz/ai-therapist/internal/models"
)

func TestRevenueCatProvider(t *testing.T) {
	cases := map[string]models.Provider{
		"APP_STORE":   models.ProviderIOS,
		"app_store":   models.ProviderIOS,
		"appstore":    models.ProviderIOS,
		"APPLE":       models.ProviderIOS,
		"PLAY_STORE":  models.ProviderAndroid,
		"google_play": models.ProviderAndroid,
		"playstore":   models.ProviderAndroid,
		"STRIPE":      models.ProviderWeb,
		"":            models.ProviderWeb,
	}
	for store, want := range cases {
		if got := revenueCatProvider(store); got != want {
			t.Fatalf("revenueCatProvider(%q) = %d, want %d", store, got, want)
		}
	}
}

func TestRevenueCatStatus(t *testing.T) {
	cases := map[string]models.PaymentStatus{
		"INITIAL_PURCHASE": models.PaymentCompleted,
		"RENEWAL":          models.PaymentCompleted,
		"PRODUCT_CHANGE":   models.PaymentCompleted,
		"CANCELLATION":     models.PaymentRevoked,
		"EXPIRATION":       models.PaymentRevoked,
		"PENDING":          models.PaymentPending,
		"BILLING_ISSUE":    models.PaymentPending,
		"SOMETHING_NEW":    models.PaymentCompleted,
	}
	for eventType, want := range cases {
		if got := revenueCatStatus(eventType); got != want {
			t.Fatalf("revenueCatStatus(%q) = %d, want %d", eventType, got, want)
		}
	}
}
